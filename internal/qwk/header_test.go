package qwk

import (
	"errors"
	"testing"
	"time"

	"github.com/stlalpha/qwk/internal/validation"
)

// buildHeaderRecord returns a space-filled record with the given fields
// copied in at their offsets.
func buildHeaderRecord(status byte, fields map[int]string) []byte {
	rec := make([]byte, RecordSize)
	for i := range rec {
		rec[i] = ' '
	}
	rec[offStatus] = status
	for off, s := range fields {
		copy(rec[off:], s)
	}
	rec[offAlive] = AliveActive
	for i := offConference; i < offNetTag; i++ {
		rec[i] = 0
	}
	return rec
}

func TestParseHeaderRejectsWrongLength(t *testing.T) {
	for _, n := range []int{0, 127, 129, 256} {
		_, err := ParseHeader(make([]byte, n))
		if !errors.Is(err, validation.ErrFormat) {
			t.Errorf("ParseHeader(%d bytes) err = %v, want format error", n, err)
		}
	}
}

func TestParseHeaderFields(t *testing.T) {
	rec := buildHeaderRecord(' ', map[int]string{
		offNumber:    "42",
		offDate:      "03-15-94",
		offTime:      "21:07",
		offTo:        "ALL",
		offFrom:      "Sysop",
		offSubject:   "Welcome aboard",
		offReference: "40",
		offBlocks:    "3",
	})
	rec[offConference] = 0x2C
	rec[offConference+1] = 0x01
	rec[offLogical] = 7
	rec[offNetTag] = NetTagPresent

	h, err := ParseHeader(rec)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.Number != 42 {
		t.Errorf("Number = %d, want 42", h.Number)
	}
	if h.To != "ALL" || h.From != "Sysop" || h.Subject != "Welcome aboard" {
		t.Errorf("names = %q/%q/%q", h.To, h.From, h.Subject)
	}
	if h.Reference != 40 {
		t.Errorf("Reference = %d, want 40", h.Reference)
	}
	if h.Blocks != 3 || h.BodyBlocks() != 2 {
		t.Errorf("Blocks = %d, BodyBlocks = %d, want 3 and 2", h.Blocks, h.BodyBlocks())
	}
	if h.Conference != 300 {
		t.Errorf("Conference = %d, want 300", h.Conference)
	}
	if h.Logical != 7 {
		t.Errorf("Logical = %d, want 7", h.Logical)
	}
	if !h.HasNetTag() {
		t.Error("HasNetTag = false, want true")
	}
	if h.IsKilled() {
		t.Error("IsKilled = true, want false")
	}
}

func TestParseHeaderPreservesHighBytes(t *testing.T) {
	rec := buildHeaderRecord(' ', map[int]string{offFrom: "Jos\xe9"})
	h, err := ParseHeader(rec)
	if err != nil {
		t.Fatal(err)
	}
	if h.From != "José" {
		t.Errorf("From = %q, want %q", h.From, "José")
	}
}

func TestParseHeaderNumericFallback(t *testing.T) {
	tests := []struct {
		name   string
		blocks string
		want   int
	}{
		{"garbage", "abc", 0},
		{"zero", "0", 0},
		{"negative", "-4", 0},
		{"in range", "12", 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := buildHeaderRecord(' ', map[int]string{offBlocks: tt.blocks, offNumber: "x1"})
			h, err := ParseHeader(rec)
			if err != nil {
				t.Fatal(err)
			}
			if h.Blocks != tt.want {
				t.Errorf("Blocks = %d, want %d", h.Blocks, tt.want)
			}
			if h.Number != 0 {
				t.Errorf("Number = %d, want 0", h.Number)
			}
		})
	}
}

func TestHeaderStatusFlags(t *testing.T) {
	tests := []struct {
		status   byte
		private  bool
		read     bool
		password bool
		sysop    bool
	}{
		{0x01, true, false, false, false},
		{0x04, false, true, false, false},
		{0x05, true, true, false, false},
		{' ', false, false, false, false},
		{'-', false, true, false, false},
		{'+', true, false, false, false},
		{'*', true, true, false, false},
		{'~', false, false, false, true},
		{'`', false, true, false, true},
		{'%', false, false, true, false},
		{'^', false, true, true, false},
	}
	for _, tt := range tests {
		h, err := ParseHeader(buildHeaderRecord(tt.status, nil))
		if err != nil {
			t.Fatal(err)
		}
		if h.IsPrivate() != tt.private || h.IsRead() != tt.read ||
			h.IsPasswordProtected() != tt.password || h.IsCommentToSysop() != tt.sysop {
			t.Errorf("status %q: private=%v read=%v password=%v sysop=%v",
				tt.status, h.IsPrivate(), h.IsRead(), h.IsPasswordProtected(), h.IsCommentToSysop())
		}
	}
}

func TestHeaderTryDateTime(t *testing.T) {
	tests := []struct {
		date, clock string
		want        time.Time
		ok          bool
	}{
		{"12-25-24", "14:30", time.Date(2024, 12, 25, 14, 30, 0, 0, time.UTC), true},
		{"01/02/95", "08:00", time.Date(1995, 1, 2, 8, 0, 0, 0, time.UTC), true},
		{"25-12-24", "14:30", time.Date(2024, 12, 25, 14, 30, 0, 0, time.UTC), true},
		{"31/01/99", "", time.Date(1999, 1, 31, 0, 0, 0, 0, time.UTC), true},
		{"12-25-24", "99:99", time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC), true},
		{"13-13-24", "10:00", time.Time{}, false},
		{"", "", time.Time{}, false},
		{"12.25.24", "10:00", time.Time{}, false},
	}
	for _, tt := range tests {
		h := &Header{Date: tt.date, Time: tt.clock}
		got, ok := h.TryDateTime()
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Errorf("TryDateTime(%q, %q) = %v, %v; want %v, %v", tt.date, tt.clock, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHeaderMarshalRoundTrip(t *testing.T) {
	h, err := NewHeader(HeaderFields{
		Number:     1234,
		Conference: 17,
		Logical:    3,
		Reference:  1200,
		Blocks:     4,
		Date:       time.Date(2023, 7, 4, 9, 5, 0, 0, time.UTC),
		To:         "All",
		From:       "Zoë",
		Subject:    "Fireworks",
		Private:    true,
		NetTag:     true,
	})
	if err != nil {
		t.Fatalf("NewHeader: %v", err)
	}
	rec, err := h.MarshalRecord()
	if err != nil {
		t.Fatalf("MarshalRecord: %v", err)
	}
	got, err := ParseHeader(rec[:])
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if *got != *h {
		t.Errorf("round trip:\n got %+v\nwant %+v", *got, *h)
	}
	if got.Date != "07-04-23" || got.Time != "09:05" {
		t.Errorf("date/time = %q %q", got.Date, got.Time)
	}
	if !got.IsPrivate() || got.IsRead() || !got.HasNetTag() {
		t.Errorf("flags lost: private=%v read=%v nettag=%v", got.IsPrivate(), got.IsRead(), got.HasNetTag())
	}
}

func TestNewHeaderRejects(t *testing.T) {
	base := HeaderFields{
		Number: 1, Blocks: 1, To: "All", From: "Me", Subject: "Hi",
		Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	tests := []struct {
		name   string
		modify func(*HeaderFields)
		want   error
	}{
		{"conference", func(f *HeaderFields) { f.Conference = 70000 }, validation.ErrRange},
		{"negative number", func(f *HeaderFields) { f.Number = -1 }, validation.ErrRange},
		{"blocks zero", func(f *HeaderFields) { f.Blocks = 0 }, validation.ErrRange},
		{"blocks clamp", func(f *HeaderFields) { f.Blocks = MaxBlocks + 1 }, validation.ErrRange},
		{"long subject", func(f *HeaderFields) { f.Subject = "this subject is far too long to fit" }, validation.ErrRange},
		{"wide rune", func(f *HeaderFields) { f.To = "日本" }, validation.ErrRange},
		{"old date", func(f *HeaderFields) { f.Date = time.Date(1979, 1, 1, 0, 0, 0, 0, time.UTC) }, validation.ErrRange},
		{"year 2080", func(f *HeaderFields) { f.Date = time.Date(2080, 1, 1, 0, 0, 0, 0, time.UTC) }, validation.ErrRange},
		{"no date", func(f *HeaderFields) { f.Date = time.Time{} }, validation.ErrStructural},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base
			tt.modify(&f)
			if _, err := NewHeader(f); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewHeaderYearWindow(t *testing.T) {
	for _, year := range []int{MinYear, MaxTwoDigitYear} {
		want := time.Date(year, 12, 31, 23, 59, 0, 0, time.UTC)
		h, err := NewHeader(HeaderFields{Number: 1, Blocks: 1, To: "All", From: "Me", Subject: "Hi", Date: want})
		if err != nil {
			t.Fatalf("%d: NewHeader: %v", year, err)
		}
		rec, err := h.MarshalRecord()
		if err != nil {
			t.Fatalf("%d: MarshalRecord: %v", year, err)
		}
		got, err := ParseHeader(rec[:])
		if err != nil {
			t.Fatalf("%d: ParseHeader: %v", year, err)
		}
		if dt, ok := got.TryDateTime(); !ok || !dt.Equal(want) {
			t.Errorf("%d: read back as %v, %v", year, dt, ok)
		}
	}
}

func TestMarshalRecordLocatesField(t *testing.T) {
	h := &Header{Number: 1, Blocks: 1, Password: "much-too-long-password"}
	_, err := h.MarshalRecord()
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *validation.Error", err)
	}
	if verr.Location != "password" {
		t.Errorf("Location = %q, want %q", verr.Location, "password")
	}
}

func TestStatusChar(t *testing.T) {
	for _, tt := range []struct {
		private, read, password bool
	}{
		{false, false, false}, {true, false, false}, {false, true, false},
		{true, true, false}, {false, false, true}, {false, true, true},
	} {
		h := &Header{Status: StatusChar(tt.private, tt.read, tt.password)}
		if h.IsPrivate() != tt.private || h.IsRead() != tt.read || h.IsPasswordProtected() != tt.password {
			t.Errorf("StatusChar(%v, %v, %v) = %q does not decode back", tt.private, tt.read, tt.password, h.Status)
		}
	}
}
