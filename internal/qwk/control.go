package qwk

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stlalpha/qwk/internal/logging"
	"github.com/stlalpha/qwk/internal/validation"
)

// controlRequiredLines is the number of positional lines before the
// conference list.
const controlRequiredLines = 11

// maxConferences is the number of distinct 16-bit conference numbers.
const maxConferences = 0x10000

// Conference is one declared conference in CONTROL.DAT.
type Conference struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

// Control is the parsed CONTROL.DAT. It is not modified after parsing;
// the conference list is only reachable through copies.
type Control struct {
	BBSName           string
	City              string
	Phone             string
	Sysop             string
	Registration      string
	BBSID             string
	Created           time.Time // zero when the date line did not parse
	Username          string
	MenuFile          string
	NetmailConference int
	TotalMessages     int
	Welcome           string
	News              string
	Goodbye           string

	conferences []Conference
}

// NewControl returns a copy of base carrying confs, for authoring packets.
func NewControl(base Control, confs ...Conference) *Control {
	c := base
	c.conferences = append([]Conference(nil), confs...)
	return &c
}

// Conferences returns a copy of the declared conference list.
func (c *Control) Conferences() []Conference {
	return append([]Conference(nil), c.conferences...)
}

// Conference looks up a declared conference by number.
func (c *Control) Conference(n int) (Conference, bool) {
	for _, conf := range c.conferences {
		if conf.Number == n {
			return conf, true
		}
	}
	return Conference{}, false
}

// HasConference reports whether n is declared. Conference 0 always is.
func (c *Control) HasConference(n int) bool {
	if n == 0 {
		return true
	}
	_, ok := c.Conference(n)
	return ok
}

// splitTextLines splits on CRLF or bare LF and drops a DOS EOF marker.
func splitTextLines(s string) []string {
	s = strings.TrimRight(s, "\x1a")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}

func controlLoc(line int) string {
	return fmt.Sprintf("%s line %d", ControlFile, line)
}

// ParseControl parses CONTROL.DAT. Missing positional lines are a
// structural error; outside Strict mode they read as empty and parsing
// continues. A malformed conference entry ends the conference list in
// Lenient mode and is skipped in Salvage mode.
func ParseControl(data []byte, text TextCodec, ctx *validation.Context) (*Control, error) {
	decoded, err := text.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("qwk: decode %s: %w", ControlFile, err)
	}
	lines := splitTextLines(decoded)
	logging.Debug("%s: %d lines", ControlFile, len(lines))

	if len(lines) < controlRequiredLines {
		if err := ctx.AddError(validation.KindStructural, ControlFile,
			"has %d lines, need at least %d", len(lines), controlRequiredLines); err != nil {
			return nil, err
		}
	}
	line := func(n int) string {
		if n-1 < len(lines) {
			return strings.TrimSpace(lines[n-1])
		}
		return ""
	}
	number := func(n int) (int, error) {
		s := line(n)
		v, err := strconv.Atoi(s)
		if err != nil {
			if n-1 >= len(lines) {
				// already reported as a missing line
				return 0, nil
			}
			return 0, ctx.AddError(validation.KindFormat, controlLoc(n), "%q is not a number", s)
		}
		return v, nil
	}

	c := &Control{
		BBSName:  line(1),
		City:     line(2),
		Phone:    line(3),
		Sysop:    line(4),
		Username: line(7),
		MenuFile: line(8),
	}

	if id := line(5); id != "" {
		reg, bbsid, ok := strings.Cut(id, ",")
		if !ok {
			if err := ctx.AddError(validation.KindFormat, controlLoc(5),
				"%q is not registration,BBSID", id); err != nil {
				return nil, err
			}
			bbsid, reg = reg, ""
		}
		c.Registration = strings.TrimSpace(reg)
		c.BBSID = strings.TrimSpace(bbsid)
	}

	if stamp := line(6); stamp != "" {
		date, clock, _ := strings.Cut(stamp, ",")
		created, err := ParseControlDate(date, clock)
		if err != nil {
			if err := ctx.AddError(validation.KindFormat, controlLoc(6), "%v", err); err != nil {
				return nil, err
			}
		}
		c.Created = created
	}

	if c.NetmailConference, err = number(9); err != nil {
		return nil, err
	}
	if c.TotalMessages, err = number(10); err != nil {
		return nil, err
	}
	highest, err := number(11)
	if err != nil {
		return nil, err
	}
	if highest < -1 {
		if err := ctx.AddError(validation.KindRange, controlLoc(11),
			"conference count %d is negative", highest+1); err != nil {
			return nil, err
		}
		highest = -1
	}
	if highest >= maxConferences {
		if err := ctx.AddError(validation.KindRange, controlLoc(11),
			"conference count %d exceeds %d", uint64(highest)+1, maxConferences); err != nil {
			return nil, err
		}
		highest = maxConferences - 1
	}
	count := highest + 1
	if avail := max((len(lines)-controlRequiredLines)/2, 0); count > avail {
		if err := ctx.AddError(validation.KindRange, controlLoc(11),
			"declares %d conferences, only %d fit in the remaining lines", count, avail); err != nil {
			return nil, err
		}
		count = avail
	}

	next := controlRequiredLines + 1
	seen := make(map[int]bool, count)
	for i := 0; i < count; i++ {
		numLine, nameLine := next, next+1
		next += 2
		s := line(numLine)
		n, convErr := strconv.Atoi(s)
		if convErr != nil || n < 0 || n > 0xFFFF {
			if err := ctx.AddError(validation.KindFormat, controlLoc(numLine),
				"conference number %q is not in [0, 65535]", s); err != nil {
				return nil, err
			}
			if ctx.Salvaging() {
				continue
			}
			next = nameLine + 1 + 2*(count-i-1)
			break
		}
		if seen[n] {
			ctx.AddWarning(controlLoc(numLine), "conference %d declared more than once", n)
		}
		seen[n] = true
		c.conferences = append(c.conferences, Conference{Number: n, Name: line(nameLine)})
	}

	c.Welcome = line(next)
	c.News = line(next + 1)
	c.Goodbye = line(next + 2)
	return c, nil
}

// ParseControlDate parses the CONTROL.DAT creation stamp. The date is
// MM-DD-YY, MM-DD-YYYY or the same with '/', one separator throughout.
// clock is HH:MM or HH:MM:SS and may be empty. Failures return the zero
// time and a format error.
func ParseControlDate(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)

	var sep byte
	switch {
	case strings.Contains(date, "-") && strings.Contains(date, "/"):
		return time.Time{}, validation.Errorf(validation.KindFormat, "", "date %q mixes separators", date)
	case strings.Contains(date, "-"):
		sep = '-'
	case strings.Contains(date, "/"):
		sep = '/'
	default:
		return time.Time{}, validation.Errorf(validation.KindFormat, "", "date %q has no separator", date)
	}
	d, ok := parseDate(date, datePattern{monthFirst, sep})
	if !ok {
		return time.Time{}, validation.Errorf(validation.KindFormat, "", "date %q is not MM%cDD%cYY", date, sep, sep)
	}
	if y := d.Year(); y < MinYear || y > MaxYear {
		return time.Time{}, validation.Errorf(validation.KindFormat, "",
			"year %d is outside [%d, %d]", y, MinYear, MaxYear)
	}
	if clock == "" {
		return d, nil
	}
	hour, minute, sec, ok := parseClock(clock)
	if !ok {
		return time.Time{}, validation.Errorf(validation.KindFormat, "", "time %q is not HH:MM[:SS]", clock)
	}
	return withClock(d, hour, minute, sec), nil
}

// Marshal renders c as CONTROL.DAT with CRLF line endings.
func (c *Control) Marshal(text TextCodec) ([]byte, error) {
	var stamp string
	if !c.Created.IsZero() {
		stamp = c.Created.Format("01-02-2006,15:04:05")
	}
	lines := []string{
		c.BBSName,
		c.City,
		c.Phone,
		c.Sysop,
		c.Registration + "," + c.BBSID,
		stamp,
		c.Username,
		c.MenuFile,
		strconv.Itoa(c.NetmailConference),
		strconv.Itoa(c.TotalMessages),
		strconv.Itoa(len(c.conferences) - 1),
	}
	for _, conf := range c.conferences {
		lines = append(lines, strconv.Itoa(conf.Number), conf.Name)
	}
	tail := []string{c.Welcome, c.News, c.Goodbye}
	for len(tail) > 0 && tail[len(tail)-1] == "" {
		tail = tail[:len(tail)-1]
	}
	lines = append(lines, tail...)

	out, err := text.Encode(strings.Join(lines, "\r\n") + "\r\n")
	if err != nil {
		return nil, fmt.Errorf("qwk: encode %s: %w", ControlFile, err)
	}
	return out, nil
}
