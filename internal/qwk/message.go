package qwk

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/stlalpha/qwk/internal/logging"
	"github.com/stlalpha/qwk/internal/validation"
)

// Message is one header plus its decoded body.
type Message struct {
	Header *Header
	// Conference is the header's conference field in QWK packets and its
	// number field in REP packets.
	Conference int
	Lines      []string
	Extended   ExtendedHeader
	// Offset is the record number of the header in the data file.
	Offset int64
	// Truncated is set when the data file ended inside the body.
	Truncated bool
}

// To returns the recipient, preferring the extended header.
func (m *Message) To() string {
	if m.Extended.To != "" {
		return m.Extended.To
	}
	return m.Header.To
}

// From returns the sender, preferring the extended header.
func (m *Message) From() string {
	if m.Extended.From != "" {
		return m.Extended.From
	}
	return m.Header.From
}

// Subject returns the subject, preferring the extended header.
func (m *Message) Subject() string {
	if m.Extended.Subject != "" {
		return m.Extended.Subject
	}
	return m.Header.Subject
}

// Fingerprint identifies message content independent of its number or
// position.
type Fingerprint [32]byte

func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// Fingerprint hashes the conference, addressing, subject and body text.
func (m *Message) Fingerprint() Fingerprint {
	h := blake3.New()
	var conf [2]byte
	binary.LittleEndian.PutUint16(conf[:], uint16(m.Conference))
	h.Write(conf[:])
	for _, s := range []string{m.From(), m.To(), m.Subject()} {
		h.Write([]byte(strings.ToUpper(s)))
		h.Write([]byte{0})
	}
	for _, l := range m.Lines {
		h.Write([]byte(strings.TrimRight(l, " ")))
		h.Write([]byte{'\n'})
	}
	var f Fingerprint
	copy(f[:], h.Sum(nil))
	return f
}

// ReadMessages reads every message from a MESSAGES.DAT stream.
func ReadMessages(ctx context.Context, rs io.ReadSeeker, body BodyCodec, vctx *validation.Context) ([]*Message, error) {
	_, msgs, err := readMessages(ctx, rs, body, vctx, MessagesFile, false)
	return msgs, err
}

// ReadReplyMessages reads a BBSID.MSG stream. The first record holds the
// BBS id, which is returned trimmed.
func ReadReplyMessages(ctx context.Context, rs io.ReadSeeker, body BodyCodec, vctx *validation.Context, name string) (string, []*Message, error) {
	return readMessages(ctx, rs, body, vctx, name, true)
}

func readMessages(ctx context.Context, rs io.ReadSeeker, body BodyCodec, vctx *validation.Context, name string, reply bool) (string, []*Message, error) {
	rr, err := NewRecordReader(rs, true)
	if err != nil {
		return "", nil, err
	}
	if !rr.ValidateLength() {
		vctx.AddWarning(name, "length %d is not a multiple of %d", rr.Length(), RecordSize)
	}
	total := rr.RecordCount()
	if total < 1 {
		if err := vctx.AddError(validation.KindStructural, name, "no leading record"); err != nil {
			return "", nil, err
		}
		return "", nil, nil
	}

	buf := make([]byte, RecordSize)
	if _, err := rr.ReadRecordContext(ctx, buf); err != nil {
		return "", nil, fmt.Errorf("qwk: read %s record 0: %w", name, err)
	}
	lead := strings.TrimRight(string(buf), " \x00")

	var msgs []*Message
	for pos := int64(1); pos < total; {
		loc := fmt.Sprintf("%s record %d", name, pos)
		if err := rr.SeekToRecord(pos); err != nil {
			return lead, msgs, err
		}
		if _, err := rr.ReadRecordContext(ctx, buf); err != nil {
			return lead, msgs, fmt.Errorf("qwk: read %s: %w", loc, err)
		}
		h, err := ParseHeader(buf)
		if err != nil {
			return lead, msgs, err
		}
		if h.Blocks == 0 {
			if err := vctx.AddError(validation.KindFormat, loc, "header has no valid block count"); err != nil {
				return lead, msgs, err
			}
			if vctx.Salvaging() {
				pos++
				continue
			}
			break
		}

		m := &Message{Header: h, Offset: pos, Conference: int(h.Conference)}
		if reply {
			m.Conference = h.Number
		}

		bodyRecs := int64(h.BodyBlocks())
		if avail := total - pos - 1; bodyRecs > avail {
			if err := vctx.AddError(validation.KindConsistency, loc,
				"message claims %d body records, only %d remain", bodyRecs, avail); err != nil {
				return lead, msgs, err
			}
			if !vctx.Salvaging() {
				break
			}
			bodyRecs = avail
			m.Truncated = true
		}

		raw := make([]byte, bodyRecs*RecordSize)
		if _, err := io.ReadFull(rs, raw); err != nil {
			return lead, msgs, fmt.Errorf("qwk: read body at %s: %w", loc, err)
		}
		lines, err := body.ParseLines(raw)
		if err != nil {
			if err := vctx.AddError(validation.KindFormat, loc, "body text: %v", err); err != nil {
				return lead, msgs, err
			}
			lines = nil
		}
		m.Extended, m.Lines = ExtractKludges(lines)
		msgs = append(msgs, m)

		if m.Truncated {
			break
		}
		pos += int64(h.Blocks)
	}
	logging.Debug("%s: %d messages in %d records", name, len(msgs), total)
	return lead, msgs, nil
}

// encodeMessage renders m's header and body records. The header's block
// count must already match the body.
func encodeMessage(m *Message, body BodyCodec) ([]byte, error) {
	recs, err := body.EncodeLines(PrependKludges(m.Extended, m.Lines), true)
	if err != nil {
		return nil, err
	}
	hdr, err := m.Header.MarshalRecord()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(hdr[:])
	for _, r := range recs {
		buf.Write(r)
	}
	return buf.Bytes(), nil
}
