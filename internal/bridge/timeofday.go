package bridge

import (
	"strconv"
	"time"
)

// FormatTimeOfDay renders t as H:MM followed by AM or PM.
//
// Only hours past 12 are shifted and tagged PM: noon prints as "12:MMAM" and
// midnight as "0:MMAM". Deployed watch apps depend on this exact output.
func FormatTimeOfDay(t time.Time) string {
	hours, mins := t.Hour(), t.Minute()

	ampm := "AM"
	if hours > 12 {
		ampm = "PM"
		hours -= 12
	}

	m := strconv.Itoa(mins)
	if mins < 10 {
		m = "0" + m
	}
	return strconv.Itoa(hours) + ":" + m + ampm
}
