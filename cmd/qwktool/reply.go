package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"

	"github.com/stlalpha/qwk/internal/container"
	"github.com/stlalpha/qwk/internal/qwk"
)

// ReplyDescription is the JSON (comments allowed) input to `qwktool reply`.
type ReplyDescription struct {
	BBSID    string         `json:"bbs_id"`
	Messages []ReplyMessage `json:"messages"`
}

// ReplyMessage describes one outgoing reply.
type ReplyMessage struct {
	Conference int       `json:"conference"`
	Reference  int       `json:"reference"`
	Date       time.Time `json:"date"` // RFC 3339; now when omitted
	To         string    `json:"to"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Password   string    `json:"password"`
	Private    bool      `json:"private"`
	Lines      []string  `json:"lines"`
}

func parseReplyDescription(data []byte) (*ReplyDescription, error) {
	var d ReplyDescription
	if err := json.Unmarshal(jsonc.ToJSON(data), &d); err != nil {
		return nil, fmt.Errorf("parse reply description: %w", err)
	}
	if len(d.Messages) == 0 {
		return nil, fmt.Errorf("reply description has no messages")
	}
	return &d, nil
}

// buildReply composes every described message into w. now stamps
// messages without a date.
func buildReply(d *ReplyDescription, w *qwk.ReplyWriter, now time.Time) error {
	for i, m := range d.Messages {
		date := m.Date
		if date.IsZero() {
			date = now
		}
		_, err := w.AddMessage(qwk.HeaderFields{
			Conference: m.Conference,
			Reference:  m.Reference,
			Date:       date,
			To:         m.To,
			From:       m.From,
			Subject:    m.Subject,
			Password:   m.Password,
			Private:    m.Private,
		}, m.Lines)
		if err != nil {
			return fmt.Errorf("message %d: %w", i+1, err)
		}
	}
	return nil
}

var replyCmd = &cobra.Command{
	Use:   "reply DESCRIPTION.json",
	Short: "Write a REP packet from a JSON description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bbsID, _ := cmd.Flags().GetString("bbsid")
		out, _ := cmd.Flags().GetString("out")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		desc, err := parseReplyDescription(data)
		if err != nil {
			return err
		}
		if bbsID != "" {
			desc.BBSID = bbsID
		}
		if strings.TrimSpace(desc.BBSID) == "" {
			return qwk.ErrEmptyBBSID
		}
		if out == "" {
			out = strings.ToUpper(desc.BBSID) + ".REP"
		}

		text, err := cfg.TextCodec()
		if err != nil {
			return err
		}
		w := &qwk.ReplyWriter{BBSID: desc.BBSID, Body: qwk.BodyCodec{Text: text}}
		if err := buildReply(desc, w, time.Now()); err != nil {
			return err
		}

		zw := container.NewZipWriter()
		if err := w.Write(zw); err != nil {
			return err
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := zw.Save(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Printf("INFO: Wrote %d replies to %s", len(desc.Messages), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replyCmd)
	replyCmd.Flags().String("bbsid", "", "BBS id (overrides the description)")
	replyCmd.Flags().StringP("out", "o", "", "output file (default BBSID.REP)")
}
