package bridge

import (
	"strings"
	"time"
)

const (
	schedKey  = "sched"
	schedSep  = ";"
	undefined = "undefined"
)

// Payload is the application-defined data carried inside a device message.
type Payload map[string]any

// IncomingMessage is an app message received from the device.
type IncomingMessage struct {
	Payload Payload
}

// Sched returns the "sched" field. Missing and non-string values both report false.
func (m IncomingMessage) Sched() (string, bool) {
	v, ok := m.Payload[schedKey]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// OutgoingMessage is the reply sent back to the device.
type OutgoingMessage struct {
	Sched string `json:"sched"`
}

// ScheduleQuery is what the bridge asks the schedule service for.
type ScheduleQuery struct {
	Station   string
	Direction string
	TimeOfDay string
}

// ParseQuery splits a "<station>;<direction>" string and stamps it with now.
// A missing direction becomes the literal "undefined"; extra segments are ignored.
func ParseQuery(sched string, now time.Time) ScheduleQuery {
	parts := strings.Split(sched, schedSep)
	q := ScheduleQuery{
		Station:   parts[0],
		Direction: undefined,
		TimeOfDay: FormatTimeOfDay(now),
	}
	if len(parts) > 1 {
		q.Direction = parts[1]
	}
	return q
}
