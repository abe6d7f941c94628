package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stlalpha/qwk/internal/container"
	"github.com/stlalpha/qwk/internal/qwk"
)

func dumpControl(w io.Writer, c *qwk.Control) {
	fmt.Fprintf(w, "BBS:      %s (%s)\n", c.BBSName, c.BBSID)
	fmt.Fprintf(w, "Location: %s, %s\n", c.City, c.Phone)
	fmt.Fprintf(w, "Sysop:    %s\n", c.Sysop)
	if !c.Created.IsZero() {
		fmt.Fprintf(w, "Created:  %s\n", c.Created.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "User:     %s\n", c.Username)
	for _, conf := range c.Conferences() {
		fmt.Fprintf(w, "  conf %5d  %s\n", conf.Number, conf.Name)
	}
}

func dumpMessage(w io.Writer, m *qwk.Message, headersOnly bool) {
	h := m.Header
	var flags []string
	if h.IsPrivate() {
		flags = append(flags, "private")
	}
	if h.IsRead() {
		flags = append(flags, "read")
	}
	if h.IsKilled() {
		flags = append(flags, "killed")
	}
	if m.Truncated {
		flags = append(flags, "truncated")
	}

	fmt.Fprintf(w, "--- #%d conf %d record %d %s %s", h.Number, m.Conference, m.Offset, h.Date, h.Time)
	if len(flags) > 0 {
		fmt.Fprintf(w, " [%s]", strings.Join(flags, ","))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "From: %s\nTo:   %s\nSubj: %s\n", m.From(), m.To(), m.Subject())
	if h.Reference != 0 {
		fmt.Fprintf(w, "Re:   #%d\n", h.Reference)
	}
	if headersOnly {
		return
	}
	fmt.Fprintln(w)
	for _, line := range m.Lines {
		fmt.Fprintln(w, line)
	}
}

var dumpCmd = &cobra.Command{
	Use:   "dump PATH",
	Short: "Print the headers and bodies of a QWK or REP packet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		headersOnly, _ := cmd.Flags().GetBool("headers")
		opts, err := readOptions("salvage")
		if err != nil {
			return err
		}
		src, err := container.DefaultRegistry().Open(args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		w := cmd.OutOrStdout()
		if isReplyPacket(args[0], src) {
			rep, _, err := qwk.ReadReply(cmd.Context(), src, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Reply packet %s (%s), %d messages\n", rep.File, rep.BBSID, len(rep.Messages))
			for _, m := range rep.Messages {
				dumpMessage(w, m, headersOnly)
			}
			return nil
		}

		pkt, _, err := qwk.ReadPacket(cmd.Context(), src, opts)
		if err != nil {
			return err
		}
		dumpControl(w, pkt.Control)
		fmt.Fprintf(w, "%d messages\n", len(pkt.Messages))
		for _, m := range pkt.Messages {
			dumpMessage(w, m, headersOnly)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().Bool("headers", false, "print headers only")
}
