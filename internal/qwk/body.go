package qwk

import (
	"bytes"
	"strings"

	"github.com/stlalpha/qwk/internal/validation"
)

// TextCodec converts between text and the packet's 8-bit character set.
// It is applied per line, never inside the byte scanner.
type TextCodec interface {
	Encode(s string) ([]byte, error)
	Decode(b []byte) (string, error)
}

// BodyCodec splits and joins message bodies.
type BodyCodec struct {
	Text TextCodec
	// AutoDetect switches ParseLines to the CR/LF dialect when IsQWKE
	// says so.
	AutoDetect bool
}

// SplitLines scans body bytes: the terminator ends a line (an empty line
// is kept), NUL becomes a space, and a trailing partial line is kept only
// if something other than padding remains after trimming trailing spaces.
func SplitLines(b []byte) [][]byte {
	return splitBody(b, Terminator, false)
}

// SplitQWKELines is SplitLines for the CR-terminated dialect; an LF
// directly after a CR is absorbed.
func SplitQWKELines(b []byte) [][]byte {
	return splitBody(b, '\r', true)
}

func splitBody(b []byte, term byte, absorbLF bool) [][]byte {
	var lines [][]byte
	cur := []byte{}
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case c == term:
			lines = append(lines, cur)
			cur = []byte{}
			if absorbLF && i+1 < len(b) && b[i+1] == '\n' {
				i++
			}
		case c == 0:
			cur = append(cur, ' ')
		default:
			cur = append(cur, c)
		}
	}
	if tail := bytes.TrimRight(cur, " "); len(tail) > 0 {
		lines = append(lines, tail)
	}
	return lines
}

// IsQWKE reports whether the first 512 bytes look like the CR/CRLF
// dialect: at least one CR and no terminator bytes.
func IsQWKE(b []byte) bool {
	if len(b) > qwkeSniffLen {
		b = b[:qwkeSniffLen]
	}
	return bytes.IndexByte(b, '\r') >= 0 && bytes.IndexByte(b, Terminator) < 0
}

// ParseLines decodes body bytes into lines.
func (c BodyCodec) ParseLines(b []byte) ([]string, error) {
	if c.AutoDetect && IsQWKE(b) {
		return c.ParseQWKELines(b)
	}
	return c.decodeLines(SplitLines(b))
}

// ParseQWKELines decodes a CR/CRLF-terminated body.
func (c BodyCodec) ParseQWKELines(b []byte) ([]string, error) {
	return c.decodeLines(SplitQWKELines(b))
}

func (c BodyCodec) decodeLines(raw [][]byte) ([]string, error) {
	lines := make([]string, 0, len(raw))
	for _, r := range raw {
		s, err := c.Text.Decode(r)
		if err != nil {
			return nil, err
		}
		lines = append(lines, s)
	}
	return lines, nil
}

// EncodeLines joins lines with the terminator, optionally terminating the
// last line too, then space-pads to a record boundary and splits into
// records. No lines produce no records.
func (c BodyCodec) EncodeLines(lines []string, finalTerminator bool) ([][]byte, error) {
	var buf bytes.Buffer
	for i, line := range lines {
		enc, err := c.Text.Encode(line)
		if err != nil {
			return nil, err
		}
		if bytes.IndexByte(enc, Terminator) >= 0 {
			return nil, validation.Errorf(validation.KindRange, "",
				"line %d encodes to the line terminator byte", i+1)
		}
		buf.Write(enc)
		if i < len(lines)-1 || finalTerminator {
			buf.WriteByte(Terminator)
		}
	}
	data := buf.Bytes()
	records := make([][]byte, 0, (len(data)+RecordSize-1)/RecordSize)
	for off := 0; off < len(data); off += RecordSize {
		end := off + RecordSize
		if end > len(data) {
			end = len(data)
		}
		records = append(records, padRecord(data[off:end]))
	}
	return records, nil
}

// ExtendedHeader carries header values that did not fit their 25-byte
// slots, taken from kludge lines at the top of the body.
type ExtendedHeader struct {
	To      string `json:"to,omitempty"`
	From    string `json:"from,omitempty"`
	Subject string `json:"subject,omitempty"`
}

func (e ExtendedHeader) IsZero() bool {
	return e == ExtendedHeader{}
}

var kludgePrefixes = []string{"to:", "from:", "subject:"}

// ExtractKludges removes leading "To:", "From:" and "Subject:" lines and
// returns their values with the remaining lines.
func ExtractKludges(lines []string) (ExtendedHeader, []string) {
	var ext ExtendedHeader
	i := 0
	for ; i < len(lines); i++ {
		key, val, ok := kludge(lines[i])
		if !ok {
			break
		}
		switch key {
		case "to:":
			ext.To = val
		case "from:":
			ext.From = val
		case "subject:":
			ext.Subject = val
		}
	}
	return ext, lines[i:]
}

func kludge(line string) (key, val string, ok bool) {
	for _, p := range kludgePrefixes {
		if len(line) >= len(p) && strings.EqualFold(line[:len(p)], p) {
			return p, strings.TrimSpace(line[len(p):]), true
		}
	}
	return "", "", false
}

// PrependKludges is the inverse of ExtractKludges for the non-empty fields
// of ext.
func PrependKludges(ext ExtendedHeader, lines []string) []string {
	var out []string
	if ext.To != "" {
		out = append(out, "To: "+ext.To)
	}
	if ext.From != "" {
		out = append(out, "From: "+ext.From)
	}
	if ext.Subject != "" {
		out = append(out, "Subject: "+ext.Subject)
	}
	return append(out, lines...)
}
