package textcodec

import "testing"

func TestCP437RoundTrip(t *testing.T) {
	c := CP437(FallbackError)
	in := "Hello ░▒▓ │┤ é ß"
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(b) != len([]rune(in)) {
		t.Errorf("encoded %d bytes, want %d", len(b), len([]rune(in)))
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out != in {
		t.Errorf("round trip: got %q, want %q", out, in)
	}
}

func TestCP437HighBytes(t *testing.T) {
	c := CP437(FallbackReplace)
	// 0xE3 is the QWK line terminator and decodes to pi in CP437.
	s, err := c.Decode([]byte{0xE3, 0xB0})
	if err != nil {
		t.Fatal(err)
	}
	if s != "π░" {
		t.Errorf("Decode = %q, want %q", s, "π░")
	}
}

func TestFallback(t *testing.T) {
	in := "snow ☃ man"

	b, err := CP437(FallbackReplace).Encode(in)
	if err != nil {
		t.Fatalf("replace: unexpected error %v", err)
	}
	if string(b) != "snow ? man" {
		t.Errorf("replace: got %q", b)
	}

	if _, err := CP437(FallbackError).Encode(in); err == nil {
		t.Error("error fallback: expected error for unmappable rune")
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"CP437", "ibm-437", "cp850", "Windows-1252", "latin1", ""} {
		if _, err := New(name, FallbackReplace); err != nil {
			t.Errorf("New(%q): %v", name, err)
		}
	}
	if _, err := New("ebcdic", FallbackReplace); err == nil {
		t.Error("expected error for unsupported charset")
	}
}

func TestParseFallback(t *testing.T) {
	if f, _ := ParseFallback("ERROR"); f != FallbackError {
		t.Errorf("ParseFallback(ERROR) = %v", f)
	}
	if f, _ := ParseFallback(""); f != FallbackReplace {
		t.Errorf("ParseFallback(\"\") = %v", f)
	}
	if _, err := ParseFallback("drop"); err == nil {
		t.Error("expected error")
	}
}
