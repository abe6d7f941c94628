package qwk

import (
	"fmt"
	"strings"

	"github.com/stlalpha/qwk/internal/validation"
)

// The Check functions append to a shared context and never stop early on
// their own. Each returns the Strict-mode abort error from AddError, which
// the caller must return.

// RequiredPacketFiles are the members every QWK packet must carry.
var RequiredPacketFiles = []string{ControlFile, MessagesFile}

// CheckRequiredFiles verifies that every required name is present in
// names, ignoring case.
func CheckRequiredFiles(names, required []string, ctx *validation.Context) error {
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[strings.ToUpper(n)] = true
	}
	for _, r := range required {
		if !have[strings.ToUpper(r)] {
			if err := ctx.AddError(validation.KindStructural, r, "required file is missing"); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckControl checks the control metadata for plausibility.
func CheckControl(c *Control, ctx *validation.Context) error {
	required := []struct {
		line int
		name string
		val  string
	}{
		{1, "BBS name", c.BBSName},
		{4, "sysop", c.Sysop},
		{5, "BBS id", c.BBSID},
	}
	for _, r := range required {
		if r.val == "" {
			if err := ctx.AddError(validation.KindStructural, controlLoc(r.line), "%s is empty", r.name); err != nil {
				return err
			}
		}
	}
	if len(c.conferences) == 0 {
		if err := ctx.AddError(validation.KindStructural, ControlFile, "no conferences declared"); err != nil {
			return err
		}
	}
	if c.Created.IsZero() {
		ctx.AddWarning(controlLoc(6), "packet creation time is unset")
	}
	return nil
}

// CheckMessageCount compares the declared message total with the number
// of messages read.
func CheckMessageCount(c *Control, n int, ctx *validation.Context) {
	if c.TotalMessages != n {
		ctx.AddWarning(controlLoc(10), "declares %d messages, packet holds %d", c.TotalMessages, n)
	}
}

// CheckHeader checks one message header for plausibility.
func CheckHeader(h *Header, loc string, ctx *validation.Context) error {
	if h.To == "" {
		if err := ctx.AddError(validation.KindStructural, loc, "recipient is empty"); err != nil {
			return err
		}
	}
	if h.From == "" {
		if err := ctx.AddError(validation.KindStructural, loc, "sender is empty"); err != nil {
			return err
		}
	}
	if _, ok := h.TryDateTime(); !ok {
		if err := ctx.AddError(validation.KindFormat, loc, "date %q is not a recognised date", h.Date); err != nil {
			return err
		}
	}
	if _, _, _, ok := parseClock(strings.TrimSpace(h.Time)); !ok {
		if err := ctx.AddError(validation.KindFormat, loc, "time %q is not HH:MM", h.Time); err != nil {
			return err
		}
	}
	if h.Number < 0 {
		if err := ctx.AddError(validation.KindRange, loc, "message number %d is negative", h.Number); err != nil {
			return err
		}
	}
	if h.Reference < 0 {
		if err := ctx.AddError(validation.KindRange, loc, "reference %d is negative", h.Reference); err != nil {
			return err
		}
	}
	if h.Blocks == 0 {
		if err := ctx.AddError(validation.KindRange, loc, "block count is outside [1, %d]", MaxBlocks); err != nil {
			return err
		}
	}
	if h.Alive != AliveActive && h.Alive != AliveKilled {
		ctx.AddWarning(loc, "alive flag is 0x%02X", h.Alive)
	}
	return nil
}

func messageLoc(file string, m *Message) string {
	return fmt.Sprintf("%s record %d", file, m.Offset)
}

// CheckConferenceMembership requires every message's conference to be
// declared in the control metadata. Conference 0 is always declared.
func CheckConferenceMembership(msgs []*Message, c *Control, ctx *validation.Context) error {
	for _, m := range msgs {
		if !c.HasConference(m.Conference) {
			if err := ctx.AddError(validation.KindConsistency, messageLoc(MessagesFile, m),
				"conference %d is not declared", m.Conference); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckIndexConsistency cross-checks index files against the messages:
// every entry must point at a message header of its conference, and
// every live message should be indexed when its conference has an index.
func CheckIndexConsistency(indexes []*IndexFile, msgs []*Message, ctx *validation.Context) error {
	if len(indexes) == 0 {
		if len(msgs) > 0 {
			ctx.AddInfo(MessagesFile, "packet has no index files")
		}
		return nil
	}

	byOffset := make(map[int64]*Message, len(msgs))
	for _, m := range msgs {
		byOffset[m.Offset] = m
	}
	byConf := make(map[int]*IndexFile, len(indexes))
	for _, f := range indexes {
		byConf[f.Conference] = f
		for _, e := range f.Entries {
			loc := fmt.Sprintf("%s entry %d", IndexFileName(f.Conference), e.MessageNumber)
			m, ok := byOffset[e.RecordOffset]
			if !ok {
				if err := ctx.AddError(validation.KindConsistency, loc,
					"record %d is not a message header", e.RecordOffset); err != nil {
					return err
				}
				continue
			}
			if m.Conference != f.Conference {
				if err := ctx.AddError(validation.KindConsistency, loc,
					"record %d belongs to conference %d", e.RecordOffset, m.Conference); err != nil {
					return err
				}
			}
		}
	}

	for _, m := range msgs {
		if m.Header.IsKilled() {
			continue
		}
		f, ok := byConf[m.Conference]
		if !ok {
			ctx.AddWarning(messageLoc(MessagesFile, m), "conference %d has no index file", m.Conference)
			continue
		}
		if !f.Offsets()[m.Offset] {
			ctx.AddWarning(messageLoc(MessagesFile, m), "message is missing from %s", IndexFileName(f.Conference))
		}
	}
	return nil
}

// CheckDuplicateNumbers warns about message numbers repeated within a
// conference.
func CheckDuplicateNumbers(msgs []*Message, ctx *validation.Context) {
	type key struct{ conf, num int }
	seen := make(map[key]*Message)
	for _, m := range msgs {
		k := key{m.Conference, m.Header.Number}
		if prev, ok := seen[k]; ok {
			ctx.AddWarning(messageLoc(MessagesFile, m), "message number %d repeats record %d", k.num, prev.Offset)
			continue
		}
		seen[k] = m
	}
}

// CheckDuplicates warns about messages with identical content.
func CheckDuplicates(msgs []*Message, file string, ctx *validation.Context) {
	seen := make(map[Fingerprint]*Message)
	for _, m := range msgs {
		fp := m.Fingerprint()
		if prev, ok := seen[fp]; ok {
			ctx.AddWarning(messageLoc(file, m), "duplicate of record %d", prev.Offset)
			continue
		}
		seen[fp] = m
	}
}
