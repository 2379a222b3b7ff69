package types

import "time"

// Timetable is one direction's published schedule: stations in page column
// order and each station's departures as "H:MMAM"/"H:MMPM" strings.
type Timetable struct {
	Direction string
	SourceURL string
	Stations  []string
	Times     map[string][]string
	FetchedAt time.Time
}

// Fresh reports whether t was fetched less than ttl before now.
func (t Timetable) Fresh(now time.Time, ttl time.Duration) bool {
	return !t.FetchedAt.IsZero() && now.Sub(t.FetchedAt) < ttl
}
