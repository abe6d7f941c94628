package qwk

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/stlalpha/qwk/internal/textcodec"
	"github.com/stlalpha/qwk/internal/validation"
)

func testBody() BodyCodec {
	return BodyCodec{Text: textcodec.CP437(textcodec.FallbackReplace)}
}

func TestParseLinesTerminated(t *testing.T) {
	b := []byte("Line 1\xe3Line 2\xe3")
	got, err := testBody().ParseLines(b)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Line 1", "Line 2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseLines = %q, want %q", got, want)
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"blank lines kept", "a\xe3\xe3b\xe3", []string{"a", "", "b"}},
		{"unterminated tail", "a\xe3tail", []string{"a", "tail"}},
		{"padding dropped", "a\xe3" + strings.Repeat(" ", 40), []string{"a"}},
		{"nul padding dropped", "a\xe3\x00\x00\x00", []string{"a"}},
		{"nul inside line", "a\x00b\xe3", []string{"a b"}},
		{"tail right-trimmed", "a\xe3 b  ", []string{"a", " b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, l := range SplitLines([]byte(tt.in)) {
				got = append(got, string(l))
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitLines(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsQWKE(t *testing.T) {
	tests := []struct {
		in   []byte
		want bool
	}{
		{[]byte("one\r\ntwo\r\n"), true},
		{[]byte("one\rtwo"), true},
		{[]byte("one\xe3two\r"), false},
		{[]byte("no breaks"), false},
		// a CR past the sniff window does not count
		{append(bytes.Repeat([]byte{'x'}, 600), '\r'), false},
	}
	for _, tt := range tests {
		if got := IsQWKE(tt.in); got != tt.want {
			t.Errorf("IsQWKE(%.20q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseQWKELines(t *testing.T) {
	c := testBody()
	c.AutoDetect = true
	got, err := c.ParseLines([]byte("first\r\nsecond\rthird\r\n\r\nlast"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"first", "second", "third", "", "last"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseLines = %q, want %q", got, want)
	}

	// without auto-detection CR is ordinary text
	c.AutoDetect = false
	got, err = c.ParseLines([]byte("a\rb"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "a\rb" {
		t.Errorf("ParseLines without detection = %q", got)
	}
}

func TestParseLinesDecodesCP437(t *testing.T) {
	got, err := testBody().ParseLines([]byte("\xb0\xb1\xb2 caf\x82\xe3"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "░▒▓ café" {
		t.Errorf("ParseLines = %q, want %q", got, "░▒▓ café")
	}
}

func TestEncodeLines(t *testing.T) {
	c := testBody()

	recs, err := c.EncodeLines(nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("EncodeLines(nil) = %d records, want 0", len(recs))
	}

	recs, err = c.EncodeLines([]string{"Line 1", "Line 2"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || len(recs[0]) != RecordSize {
		t.Fatalf("got %d records", len(recs))
	}
	want := "Line 1\xe3Line 2\xe3"
	if !bytes.HasPrefix(recs[0], []byte(want)) {
		t.Errorf("record starts %q, want %q", recs[0][:len(want)], want)
	}
	if rest := recs[0][len(want):]; len(bytes.TrimRight(rest, " ")) != 0 {
		t.Errorf("padding is not spaces: %q", rest)
	}

	recs, err = c.EncodeLines([]string{"only"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.IndexByte(recs[0], Terminator) >= 0 {
		t.Error("final terminator written when not requested")
	}
}

func TestEncodeLinesSpansRecords(t *testing.T) {
	c := testBody()
	lines := []string{strings.Repeat("a", 100), strings.Repeat("b", 100), "", "tail"}
	recs, err := c.EncodeLines(lines, true)
	if err != nil {
		t.Fatal(err)
	}
	// 100+1 + 100+1 + 1 + 4+1 = 208 bytes
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	got, err := c.ParseLines(bytes.Join(recs, nil))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, lines) {
		t.Errorf("round trip = %q, want %q", got, lines)
	}
}

func TestEncodeLinesRejectsTerminator(t *testing.T) {
	// pi encodes to 0xE3 in CP437
	_, err := testBody().EncodeLines([]string{"ok", "π"}, true)
	if !errors.Is(err, validation.ErrRange) {
		t.Errorf("err = %v, want range error", err)
	}
}

func TestKludges(t *testing.T) {
	lines := []string{"To: A Very Long Recipient Name Indeed", "subject:  Re: things ", "Body", "To: not a kludge"}
	ext, rest := ExtractKludges(lines)
	if ext.To != "A Very Long Recipient Name Indeed" || ext.Subject != "Re: things" || ext.From != "" {
		t.Errorf("ext = %+v", ext)
	}
	if !reflect.DeepEqual(rest, []string{"Body", "To: not a kludge"}) {
		t.Errorf("rest = %q", rest)
	}

	back := PrependKludges(ext, rest)
	ext2, rest2 := ExtractKludges(back)
	if ext2 != ext || !reflect.DeepEqual(rest2, rest) {
		t.Errorf("PrependKludges round trip: %+v %q", ext2, rest2)
	}

	if ext, _ := ExtractKludges([]string{"hello"}); !ext.IsZero() {
		t.Errorf("ExtractKludges found %+v in plain text", ext)
	}
}
