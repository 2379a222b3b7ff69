package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeFormat is the clock format used for query times and departures alike.
const timeFormat = "3:04PM"

var ErrTimeNotFound = errors.New("time not found")

// ParseClock parses "H:MMAM" or "H:MMPM" onto the zero date.
func ParseClock(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

// NextTimes returns the first departure at or after cur followed by the next
// n-1 in timetable order, wrapping past the last departure to the first.
// A departure exactly at cur is included.
func NextTimes(times []string, cur time.Time, n int) ([]string, error) {
	for i, t := range times {
		tm, err := ParseClock(t)
		if err != nil {
			return nil, fmt.Errorf("bad departure %q: %w", t, err)
		}
		if tm.Before(cur) {
			continue
		}

		out := make([]string, 0, n)
		for j := 0; j < n; j++ {
			out = append(out, times[(i+j)%len(times)])
		}
		return out, nil
	}
	return nil, ErrTimeNotFound
}

// MinutesLeft renders each departure as "H:MMPM,<mins> mins left;". A
// departure earlier than cur is taken to be on the following day.
func MinutesLeft(times []string, cur time.Time) (string, error) {
	var b strings.Builder
	for _, t := range times {
		tm, err := ParseClock(t)
		if err != nil {
			return "", fmt.Errorf("bad departure %q: %w", t, err)
		}
		diff := tm.Sub(cur)
		if tm.Before(cur) {
			diff = tm.Add(24 * time.Hour).Sub(cur)
		}
		b.WriteString(t)
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(int(diff.Minutes())))
		b.WriteString(" mins left;")
	}
	return b.String(), nil
}
