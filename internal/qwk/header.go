package qwk

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stlalpha/qwk/internal/validation"
)

// Header field offsets and widths within the 128-byte header record.
const (
	offStatus     = 0
	offNumber     = 1
	lenNumber     = 7
	offDate       = 8
	lenDate       = 8
	offTime       = 16
	lenTime       = 5
	offTo         = 21
	offFrom       = 46
	offSubject    = 71
	lenName       = 25 // To, From and Subject share a width
	offPassword   = 96
	lenPassword   = 12
	offReference  = 108
	lenReference  = 8
	offBlocks     = 116
	lenBlocks     = 6
	offAlive      = 122
	offConference = 123
	offLogical    = 125
	offNetTag     = 127
)

// NetTagPresent is written at offset 127 when the message carries a
// network tag line.
const NetTagPresent = '*'

// Status flag bits used when the status byte is not a legacy status
// character.
const (
	StatusPrivateBit = 0x01
	StatusReadBit    = 0x04
)

type statusInfo struct {
	private  bool
	read     bool
	password bool
	sysop    bool
}

// legacyStatus maps the traditional status characters.
var legacyStatus = map[byte]statusInfo{
	' ': {},
	'-': {read: true},
	'+': {private: true},
	'*': {private: true, read: true},
	'~': {sysop: true},
	'`': {sysop: true, read: true},
	'%': {password: true},
	'^': {password: true, read: true},
	'!': {password: true},
	'#': {password: true, read: true},
	'$': {password: true},
}

// Header is one parsed message header record. Numeric fields that did not
// parse are zero; Blocks is zero when outside [1, MaxBlocks].
type Header struct {
	Status     byte
	Number     int    // message number; the conference number in REP packets
	Date       string // raw MM-DD-YY as stored
	Time       string // raw HH:MM as stored
	To         string
	From       string
	Subject    string
	Password   string
	Reference  int
	Blocks     int // record count including the header itself
	Alive      byte
	Conference uint16
	Logical    uint16
	NetTag     byte
}

// ParseHeader decodes a 128-byte header record. Only a wrong input length
// is an error; field-level problems are left for the validator.
func ParseHeader(rec []byte) (*Header, error) {
	if len(rec) != RecordSize {
		return nil, validation.Errorf(validation.KindFormat, "",
			"header record is %d bytes, want %d", len(rec), RecordSize)
	}
	h := &Header{
		Status:     rec[offStatus],
		Number:     parseNumeric(rec[offNumber : offNumber+lenNumber]),
		Date:       rawField(rec[offDate : offDate+lenDate]),
		Time:       rawField(rec[offTime : offTime+lenTime]),
		To:         rawField(rec[offTo : offTo+lenName]),
		From:       rawField(rec[offFrom : offFrom+lenName]),
		Subject:    rawField(rec[offSubject : offSubject+lenName]),
		Password:   rawField(rec[offPassword : offPassword+lenPassword]),
		Reference:  parseNumeric(rec[offReference : offReference+lenReference]),
		Blocks:     parseNumeric(rec[offBlocks : offBlocks+lenBlocks]),
		Alive:      rec[offAlive],
		Conference: binary.LittleEndian.Uint16(rec[offConference:]),
		Logical:    binary.LittleEndian.Uint16(rec[offLogical:]),
		NetTag:     rec[offNetTag],
	}
	if h.Blocks < 1 || h.Blocks > MaxBlocks {
		h.Blocks = 0
	}
	return h, nil
}

// rawField decodes bytes one-to-one into runes (high bytes kept as
// U+0080-U+00FF) and trims trailing spaces and NULs.
func rawField(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return strings.TrimRight(string(r), " \x00")
}

func parseNumeric(b []byte) int {
	s := strings.Trim(string(b), " \x00")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func (h *Header) status() statusInfo {
	if st, ok := legacyStatus[h.Status]; ok {
		return st
	}
	return statusInfo{
		private: h.Status&StatusPrivateBit != 0,
		read:    h.Status&StatusReadBit != 0,
	}
}

func (h *Header) IsPrivate() bool           { return h.status().private }
func (h *Header) IsRead() bool              { return h.status().read }
func (h *Header) IsPasswordProtected() bool { return h.status().password }
func (h *Header) IsCommentToSysop() bool    { return h.status().sysop }

// IsKilled reports whether the alive flag marks the message deleted.
func (h *Header) IsKilled() bool { return h.Alive == AliveKilled }

func (h *Header) HasNetTag() bool { return h.NetTag == NetTagPresent }

// BodyBlocks returns the number of body records following the header.
func (h *Header) BodyBlocks() int {
	if h.Blocks < 1 {
		return 0
	}
	return h.Blocks - 1
}

// TryDateTime parses Date and Time. Date patterns are tried in order:
// MM-DD-YY, MM/DD/YY, DD-MM-YY, DD/MM/YY. A missing or bad time still
// yields the date at midnight.
func (h *Header) TryDateTime() (time.Time, bool) {
	date := strings.TrimSpace(h.Date)
	for _, p := range headerDatePatterns {
		d, ok := parseDate(date, p)
		if !ok {
			continue
		}
		if hour, minute, sec, ok := parseClock(strings.TrimSpace(h.Time)); ok {
			return withClock(d, hour, minute, sec), true
		}
		return d, true
	}
	return time.Time{}, false
}

// MarshalRecord encodes the header into a 128-byte record.
func (h *Header) MarshalRecord() ([RecordSize]byte, error) {
	var rec [RecordSize]byte
	for i := range rec {
		rec[i] = ' '
	}
	rec[offStatus] = h.Status

	fields := []struct {
		name  string
		off   int
		width int
		val   string
	}{
		{"number", offNumber, lenNumber, strconv.Itoa(h.Number)},
		{"date", offDate, lenDate, h.Date},
		{"time", offTime, lenTime, h.Time},
		{"to", offTo, lenName, h.To},
		{"from", offFrom, lenName, h.From},
		{"subject", offSubject, lenName, h.Subject},
		{"password", offPassword, lenPassword, h.Password},
		{"reference", offReference, lenReference, strconv.Itoa(h.Reference)},
		{"blocks", offBlocks, lenBlocks, strconv.Itoa(h.Blocks)},
	}
	for _, f := range fields {
		if err := putField(rec[f.off:f.off+f.width], f.val); err != nil {
			return rec, validation.Errorf(validation.KindRange, f.name, "%v", err)
		}
	}

	rec[offAlive] = h.Alive
	if rec[offAlive] == 0 {
		rec[offAlive] = AliveActive
	}
	binary.LittleEndian.PutUint16(rec[offConference:], h.Conference)
	binary.LittleEndian.PutUint16(rec[offLogical:], h.Logical)
	rec[offNetTag] = h.NetTag
	if rec[offNetTag] == 0 {
		rec[offNetTag] = ' '
	}
	return rec, nil
}

// putField writes s left-justified into dst. dst is already space-filled.
func putField(dst []byte, s string) error {
	runes := []rune(s)
	if len(runes) > len(dst) {
		return fmt.Errorf("%q is longer than %d bytes", s, len(dst))
	}
	for i, r := range runes {
		if r > 0xFF {
			return fmt.Errorf("%q contains %U, not a single byte", s, r)
		}
		dst[i] = byte(r)
	}
	return nil
}

// HeaderFields is the input to NewHeader.
type HeaderFields struct {
	Number     int
	Conference int
	Logical    int
	Reference  int
	Blocks     int
	Date       time.Time
	To         string
	From       string
	Subject    string
	Password   string
	Private    bool
	Read       bool
	Killed     bool
	NetTag     bool
}

// NewHeader validates f and builds a Header. It rejects values that would
// not fit their fixed-width slots.
func NewHeader(f HeaderFields) (*Header, error) {
	checks := []struct {
		name          string
		val, min, max int
	}{
		{"number", f.Number, 0, 9_999_999},
		{"conference", f.Conference, 0, 0xFFFF},
		{"logical number", f.Logical, 0, 0xFFFF},
		{"reference", f.Reference, 0, 99_999_999},
		{"blocks", f.Blocks, 1, MaxBlocks},
	}
	for _, c := range checks {
		if c.val < c.min || c.val > c.max {
			return nil, validation.Errorf(validation.KindRange, c.name,
				"%d is outside [%d, %d]", c.val, c.min, c.max)
		}
	}
	if f.Date.IsZero() {
		return nil, validation.Errorf(validation.KindStructural, "date", "date is required")
	}
	if y := f.Date.Year(); y < MinYear || y > MaxTwoDigitYear {
		return nil, validation.Errorf(validation.KindRange, "date",
			"year %d is outside [%d, %d]", y, MinYear, MaxTwoDigitYear)
	}

	h := &Header{
		Status:     StatusChar(f.Private, f.Read, f.Password != ""),
		Number:     f.Number,
		Date:       f.Date.Format("01-02-06"),
		Time:       f.Date.Format("15:04"),
		To:         f.To,
		From:       f.From,
		Subject:    f.Subject,
		Password:   f.Password,
		Reference:  f.Reference,
		Blocks:     f.Blocks,
		Alive:      AliveActive,
		Conference: uint16(f.Conference),
		Logical:    uint16(f.Logical),
		NetTag:     ' ',
	}
	if f.Killed {
		h.Alive = AliveKilled
	}
	if f.NetTag {
		h.NetTag = NetTagPresent
	}
	if _, err := h.MarshalRecord(); err != nil {
		return nil, err
	}
	return h, nil
}

// StatusChar returns the legacy status character for the given flags.
func StatusChar(private, read, password bool) byte {
	switch {
	case password && read:
		return '^'
	case password:
		return '%'
	case private && read:
		return '*'
	case private:
		return '+'
	case read:
		return '-'
	}
	return ' '
}
