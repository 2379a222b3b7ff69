// Package metrics holds the Prometheus collectors shared by the bridge and the
// schedule server. Collectors register with the default registry at init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DeviceEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_device_events_total",
		Help: "Device events received by the bridge, by event type",
	}, []string{"type"})

	DroppedMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_dropped_messages_total",
		Help: "App messages that did not produce a reply, by reason",
	}, []string{"reason"})

	ScheduleRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_schedule_requests_total",
		Help: "Outbound schedule requests, by outcome",
	}, []string{"outcome"})

	ScheduleRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bridge_schedule_request_seconds",
		Help:    "Round trip time of outbound schedule requests",
		Buckets: prometheus.DefBuckets,
	})

	RepliesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_replies_sent_total",
		Help: "Replies handed to the device transport",
	})

	TimetableLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_timetable_loads_total",
		Help: "Timetable lookups by the schedule server, by source (memory, db, scrape, stale, error)",
	}, []string{"source"})

	TimesRequests = prometheus.NewSummary(prometheus.SummaryOpts{
		Name:        "schedule_req_times",
		Help:        "Summary for serving next-departure requests",
		ConstLabels: prometheus.Labels{"endpoint_type": "times"},
	})
)

func init() {
	prometheus.MustRegister(
		DeviceEvents,
		DroppedMessages,
		ScheduleRequests,
		ScheduleRequestDuration,
		RepliesSent,
		TimetableLoads,
		TimesRequests,
	)
}
