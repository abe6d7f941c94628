// Package textcodec converts between Go strings and the legacy 8-bit
// character sets found in QWK packets (CP437 by default).
package textcodec

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Fallback decides what happens to characters the charset cannot represent.
type Fallback int

const (
	// FallbackReplace substitutes ReplacementByte on encode.
	FallbackReplace Fallback = iota
	// FallbackError fails the whole conversion.
	FallbackError
)

// ReplacementByte is written for unmappable runes under FallbackReplace.
const ReplacementByte = '?'

// ParseFallback maps "replace" or "error" to a Fallback.
func ParseFallback(s string) (Fallback, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "replace":
		return FallbackReplace, nil
	case "error", "strict":
		return FallbackError, nil
	}
	return FallbackReplace, fmt.Errorf("textcodec: unknown fallback %q", s)
}

// Codec encodes and decodes one 8-bit charset.
type Codec struct {
	name     string
	cm       *charmap.Charmap
	fallback Fallback
}

var charsets = map[string]*charmap.Charmap{
	"cp437":       charmap.CodePage437,
	"ibm437":      charmap.CodePage437,
	"cp850":       charmap.CodePage850,
	"cp1252":      charmap.Windows1252,
	"windows1252": charmap.Windows1252,
	"latin1":      charmap.ISO8859_1,
	"iso88591":    charmap.ISO8859_1,
}

// New returns a Codec for the named charset. Names are matched
// case-insensitively with '-' and '_' ignored.
func New(name string, fallback Fallback) (*Codec, error) {
	key := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(name))
	if key == "" {
		key = "cp437"
	}
	cm, ok := charsets[key]
	if !ok {
		return nil, fmt.Errorf("textcodec: unsupported charset %q", name)
	}
	return &Codec{name: key, cm: cm, fallback: fallback}, nil
}

// CP437 returns the default codec.
func CP437(fallback Fallback) *Codec {
	return &Codec{name: "cp437", cm: charmap.CodePage437, fallback: fallback}
}

func (c *Codec) Name() string { return c.name }

// Encode converts text to charset bytes, one byte per rune.
func (c *Codec) Encode(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				if c.fallback == FallbackError {
					return nil, fmt.Errorf("textcodec: invalid UTF-8 at byte %d", i)
				}
				out = append(out, ReplacementByte)
				continue
			}
		}
		b, ok := c.cm.EncodeRune(r)
		if !ok {
			if c.fallback == FallbackError {
				return nil, fmt.Errorf("textcodec: %U not representable in %s", r, c.name)
			}
			b = ReplacementByte
		}
		out = append(out, b)
	}
	return out, nil
}

// Decode converts charset bytes to text. Every byte value is mapped, so
// decoding only fails on transformer errors.
func (c *Codec) Decode(b []byte) (string, error) {
	out, _, err := transform.Bytes(c.cm.NewDecoder(), b)
	if err != nil {
		return "", fmt.Errorf("textcodec: decode %s: %w", c.name, err)
	}
	return string(out), nil
}
