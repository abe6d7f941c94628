package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/stlalpha/qwk/internal/container"
	"github.com/stlalpha/qwk/internal/qwk"
	"github.com/stlalpha/qwk/internal/validation"
)

var errInvalidPacket = errors.New("packet failed validation")

// CheckResult is the outcome of validating one packet.
type CheckResult struct {
	RunID     string             `json:"run_id" yaml:"run_id"`
	Path      string             `json:"path" yaml:"path"`
	Kind      string             `json:"kind" yaml:"kind"` // qwk or rep
	CheckedAt time.Time          `json:"checked_at" yaml:"checked_at"`
	BBSID     string             `json:"bbs_id,omitempty" yaml:"bbs_id,omitempty"`
	Messages  int                `json:"messages" yaml:"messages"`
	Aborted   string             `json:"aborted,omitempty" yaml:"aborted,omitempty"`
	// Redelivered counts messages already seen in an earlier packet.
	Redelivered int                `json:"redelivered,omitempty" yaml:"redelivered,omitempty"`
	Report      *validation.Report `json:"report" yaml:"report"`

	messages []*qwk.Message
}

// Valid is false when the report has errors or warnings, or a Strict-mode
// read stopped early.
func (r *CheckResult) Valid() bool {
	return r.Aborted == "" && r.Report.IsValid()
}

// checkPacket opens path through the container registry and validates it
// as a QWK or REP packet. Validation failures land in the result; only
// I/O and container errors are returned.
func checkPacket(ctx context.Context, reg *container.Registry, path string, opts qwk.ReadOptions) (*CheckResult, error) {
	src, err := reg.Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	res := &CheckResult{RunID: uuid.New().String(), Path: path, Kind: "qwk", CheckedAt: time.Now().UTC()}
	if isReplyPacket(path, src) {
		res.Kind = "rep"
		rep, report, err := qwk.ReadReply(ctx, src, opts)
		res.Report = report
		if err = abortReason(err, res); err != nil {
			return nil, err
		}
		if rep != nil {
			res.BBSID = rep.BBSID
			res.Messages = len(rep.Messages)
			res.messages = rep.Messages
		}
		return res, nil
	}

	pkt, report, err := qwk.ReadPacket(ctx, src, opts)
	res.Report = report
	if err = abortReason(err, res); err != nil {
		return nil, err
	}
	if pkt != nil {
		res.BBSID = pkt.Control.BBSID
		res.Messages = len(pkt.Messages)
		res.messages = pkt.Messages
	}
	return res, nil
}

// abortReason records a validation abort on res and passes other errors
// through.
func abortReason(err error, res *CheckResult) error {
	if err == nil {
		return nil
	}
	var verr *validation.Error
	if errors.As(err, &verr) {
		res.Aborted = verr.Error()
		return nil
	}
	return err
}

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	validStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	headingStyle = lipgloss.NewStyle().Bold(true)
)

func styleFor(s validation.Severity) lipgloss.Style {
	switch s {
	case validation.SeverityError:
		return errorStyle
	case validation.SeverityWarning:
		return warningStyle
	}
	return infoStyle
}

// writeText renders res for a human. Styles are applied only when color
// is set.
func writeText(w io.Writer, res *CheckResult, color bool) error {
	paint := func(st lipgloss.Style, s string) string {
		if !color {
			return s
		}
		return st.Render(s)
	}

	fmt.Fprintln(w, paint(headingStyle, fmt.Sprintf("%s (%s, %s mode)", res.Path, res.Kind, res.Report.Mode())))
	for _, issue := range res.Report.Issues() {
		fmt.Fprintln(w, "  "+paint(styleFor(issue.Severity), issue.String()))
	}
	if res.Aborted != "" {
		fmt.Fprintln(w, "  "+paint(errorStyle, "aborted: "+res.Aborted))
	}

	s := res.Report.Summary()
	status := paint(validStyle, "VALID")
	if !res.Valid() {
		status = paint(errorStyle, "INVALID")
	}
	_, err := fmt.Fprintf(w, "%s: %d messages, %d errors, %d warnings, %d infos\n",
		status, res.Messages, s.Errors, s.Warnings, s.Infos)
	return err
}

func writeResult(w io.Writer, res *CheckResult, format string, color bool) error {
	switch format {
	case "json":
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case "yaml":
		b, err := yaml.Marshal(res)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case "text", "":
		return writeText(w, res, color)
	}
	return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
}

var checkCmd = &cobra.Command{
	Use:   "check PATH",
	Short: "Validate a QWK or REP packet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		format, _ := cmd.Flags().GetString("format")
		bbsID, _ := cmd.Flags().GetString("bbsid")

		opts, err := readOptions(mode)
		if err != nil {
			return err
		}
		opts.BBSID = bbsID

		res, err := checkPacket(cmd.Context(), container.DefaultRegistry(), args[0], opts)
		if err != nil {
			return err
		}
		color := format == "text" && term.IsTerminal(int(os.Stdout.Fd()))
		if err := writeResult(cmd.OutOrStdout(), res, format, color); err != nil {
			return err
		}
		if !res.Valid() {
			return errInvalidPacket
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringP("mode", "m", "", "validation mode: strict, lenient or salvage (default from config)")
	checkCmd.Flags().StringP("format", "f", "text", "output format: text, json or yaml")
	checkCmd.Flags().String("bbsid", "", "BBS id selecting the reply member of a REP packet")
}
