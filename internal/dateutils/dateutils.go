// Package dateutils recognizes the timestamp forms printed on receipts.
package dateutils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Common layouts for rendering timestamps.
const (
	DateLayoutISO      = "2006-01-02"
	DateLayoutRussian  = "02.01.2006"
	DateTimeLayoutFull = "02.01.2006 15:04:05"
)

// Moscow is the fixed UTC+3 zone receipts are printed in.
var Moscow = time.FixedZone("MSK", 3*60*60)

var russianMonths = map[string]time.Month{
	"января": time.January, "февраля": time.February, "марта": time.March,
	"апреля": time.April, "мая": time.May, "июня": time.June,
	"июля": time.July, "августа": time.August, "сентября": time.September,
	"октября": time.October, "ноября": time.November, "декабря": time.December,
}

type timestampRule struct {
	name string
	re   *regexp.Regexp
	// indexes of year, month, day, hour, minute, second groups; 0 = absent
	y, m, d, hh, mm, ss int
	monthName            bool
}

// Rules are tried in order; the most permissive is last.
var timestampRules = []timestampRule{
	{
		name: "numeric-seconds",
		re:   regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})[\s,в]+(\d{1,2}):(\d{2}):(\d{2})`),
		d:    1, m: 2, y: 3, hh: 4, mm: 5, ss: 6,
	},
	{
		name: "numeric-minutes",
		re:   regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})[\s,в]+(\d{1,2}):(\d{2})`),
		d:    1, m: 2, y: 3, hh: 4, mm: 5,
	},
	{
		name:      "month-name",
		re:        regexp.MustCompile(`(?i)(\d{1,2})\s+(января|февраля|марта|апреля|мая|июня|июля|августа|сентября|октября|ноября|декабря)\s+(\d{4})(?:\s*г\.?)?(?:[\s,в]+(\d{1,2}):(\d{2})(?::(\d{2}))?)?`),
		d:         1, m: 2, y: 3, hh: 4, mm: 5, ss: 6,
		monthName: true,
	},
	{
		name: "iso",
		re:   regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})[T ](\d{2}):(\d{2})(?::(\d{2}))?`),
		y:    1, m: 2, d: 3, hh: 4, mm: 5, ss: 6,
	},
	{
		name: "date-only",
		re:   regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})`),
		d:    1, m: 2, y: 3,
	},
}

// FindTimestamp returns the first timestamp found in lines, trying each
// rule over the whole transcript before moving on to the next rule.
func FindTimestamp(lines []string) (time.Time, bool) {
	for _, rule := range timestampRules {
		for _, line := range lines {
			if t, ok := rule.parse(line); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// ParseTimestamp parses a single line.
func ParseTimestamp(line string) (time.Time, bool) {
	return FindTimestamp([]string{line})
}

func (r timestampRule) parse(line string) (time.Time, bool) {
	for _, m := range r.re.FindAllStringSubmatch(line, -1) {
		if t, ok := r.build(m); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func (r timestampRule) build(m []string) (time.Time, bool) {
	num := func(idx int) int {
		if idx == 0 || idx >= len(m) || m[idx] == "" {
			return 0
		}
		n, _ := strconv.Atoi(m[idx])
		return n
	}

	var month time.Month
	if r.monthName {
		var ok bool
		month, ok = russianMonths[strings.ToLower(m[r.m])]
		if !ok {
			return time.Time{}, false
		}
	} else {
		month = time.Month(num(r.m))
	}

	year, day := num(r.y), num(r.d)
	hour, minute, second := num(r.hh), num(r.mm), num(r.ss)
	if month < time.January || month > time.December || day < 1 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}

	t := time.Date(year, month, day, hour, minute, second, 0, Moscow)
	// time.Date normalizes 31.02 into March; reject it.
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// FormatTimestamp renders t in Moscow time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(Moscow).Format(DateTimeLayoutFull)
}
