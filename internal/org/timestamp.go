package org

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Timestamp is an org timestamp such as "<2024-01-02 Tue 10:00>".
type Timestamp struct {
	Span
	Active  bool
	HasTime bool
	Time    time.Time
}

var timestampRe = regexp.MustCompile(
	`[<\[](\d{4})-(\d{2})-(\d{2})(?:[ \t]+[^ \t\d>\]+-]+)?(?:[ \t]+(\d{1,2}):(\d{2}))?[^>\]\n]*[>\]]`,
)

// ParseTimestamp parses a single timestamp at the start of s. Times
// carry no zone and are interpreted in the local zone.
func ParseTimestamp(s string) (*Timestamp, bool) {
	m := timestampRe.FindStringSubmatchIndex(s)
	if m == nil || m[0] != 0 {
		return nil, false
	}
	return timestampFromMatch(s, m, 0)
}

// FindTimestamps returns every timestamp in s, with spans shifted by base.
func FindTimestamps(s string, base int) []Timestamp {
	var out []Timestamp
	for _, m := range timestampRe.FindAllStringSubmatchIndex(s, -1) {
		if ts, ok := timestampFromMatch(s, m, base); ok {
			out = append(out, *ts)
		}
	}
	return out
}

func timestampFromMatch(s string, m []int, base int) (*Timestamp, bool) {
	num := func(i int) int {
		if m[2*i] < 0 {
			return 0
		}
		v, _ := strconv.Atoi(s[m[2*i]:m[2*i+1]])
		return v
	}
	year, month, day := num(1), num(2), num(3)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil, false
	}
	ts := &Timestamp{
		Span:    Span{Start: base + m[0], End: base + m[1]},
		Active:  s[m[0]] == '<',
		HasTime: m[8] >= 0,
	}
	ts.Time = time.Date(year, time.Month(month), day, num(4), num(5), 0, 0, time.Local)
	return ts, true
}

// FormatInactive renders t as "[2006-01-02 Mon 15:04]".
func FormatInactive(t time.Time) string {
	return fmt.Sprintf("[%s]", t.Format("2006-01-02 Mon 15:04"))
}

// FormatActive renders t as "<2006-01-02 Mon 15:04>".
func FormatActive(t time.Time) string {
	return fmt.Sprintf("<%s>", t.Format("2006-01-02 Mon 15:04"))
}
