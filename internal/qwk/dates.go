package qwk

import (
	"strconv"
	"strings"
	"time"
)

// Two-digit years are resolved into a window: 80-99 become 1980-1999
// and 00-79 become 2000-2079. The window is a convention, not part of any
// format definition. MaxYear bounds four-digit years.
const (
	MinYear = 1980
	MaxYear = 2099

	// MaxTwoDigitYear is the last year a two-digit year reads back as.
	MaxTwoDigitYear = 2079
)

type dateOrder int

const (
	monthFirst dateOrder = iota
	dayFirst
)

type datePattern struct {
	order dateOrder
	sep   byte
}

// headerDatePatterns is the order in which header dates are tried.
var headerDatePatterns = []datePattern{
	{monthFirst, '-'},
	{monthFirst, '/'},
	{dayFirst, '-'},
	{dayFirst, '/'},
}

// ExpandYear maps a two-digit year into the 1980-2079 window and passes
// four-digit years through.
func ExpandYear(y int) int {
	if y >= 100 {
		return y
	}
	if y >= MinYear%100 {
		return 1900 + y
	}
	return 2000 + y
}

// parseDate splits s on sep into three numeric parts and builds a date.
// The year part may have two or four digits.
func parseDate(s string, p datePattern) (time.Time, bool) {
	parts := strings.Split(s, string(p.sep))
	if len(parts) != 3 {
		return time.Time{}, false
	}
	nums := make([]int, 3)
	for i, part := range parts {
		if part == "" || len(part) > 4 || !allDigits(part) {
			return time.Time{}, false
		}
		nums[i], _ = strconv.Atoi(part)
	}
	if l := len(parts[2]); l != 2 && l != 4 {
		return time.Time{}, false
	}
	month, day := nums[0], nums[1]
	if p.order == dayFirst {
		month, day = day, month
	}
	year := ExpandYear(nums[2])
	return makeDate(year, month, day, 0, 0, 0)
}

// makeDate rejects out-of-range components instead of letting time.Date
// normalise them.
func makeDate(year, month, day, hour, minute, sec int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || sec < 0 || sec > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// parseClock parses HH:MM or HH:MM:SS.
func parseClock(s string) (hour, minute, sec int, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, 0, false
	}
	vals := make([]int, 3)
	for i, part := range parts {
		if part == "" || len(part) > 2 || !allDigits(part) {
			return 0, 0, 0, false
		}
		vals[i], _ = strconv.Atoi(part)
	}
	if vals[0] > 23 || vals[1] > 59 || vals[2] > 59 {
		return 0, 0, 0, false
	}
	return vals[0], vals[1], vals[2], true
}

func withClock(d time.Time, hour, minute, sec int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, sec, 0, time.UTC)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
