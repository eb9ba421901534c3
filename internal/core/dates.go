package core

import (
	"strings"
	"time"
)

// DateLayout is the DD-MM-YYYY form used for every agreement date.
const DateLayout = "02-01-2006"

// ParseDate reads a DD-MM-YYYY date. Single-digit day or month is accepted.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{DateLayout, "2-1-2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders t as DD-MM-YYYY.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// AddMonths adds n calendar months, clamping the day to the length of the
// target month: 31-01-2024 plus one month is 29-02-2024.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// MonthsBetween counts the whole calendar months from start to end, the
// largest n such that AddMonths(start, n) does not pass end. It is 0 when end
// is not after start. Only the calendar date takes part in the comparison.
func MonthsBetween(start, end time.Time) int {
	s := dateOnly(start)
	e := dateOnly(end)
	if !e.After(s) {
		return 0
	}
	n := (e.Year()-s.Year())*12 + int(e.Month()) - int(s.Month())
	for n > 0 && AddMonths(s, n).After(e) {
		n--
	}
	return n
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
