package bridge

import (
	"net/url"
	"strings"
)

// BuildURL returns <base>/p/<station>/<direction>/<time>/ with every dynamic
// segment escaped on its own, so "/" and ";" inside a value cannot add segments.
func BuildURL(base string, q ScheduleQuery) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(base, "/"))
	sb.WriteString("/p/")
	for _, seg := range []string{q.Station, q.Direction, q.TimeOfDay} {
		sb.WriteString(url.PathEscape(seg))
		sb.WriteByte('/')
	}
	return sb.String()
}
