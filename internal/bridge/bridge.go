// Package bridge relays schedule queries from a paired watch to the schedule
// service and sends the answer back to the watch.
//
// Each app message is an independent transaction: validate, parse, format the
// wall clock, issue one GET, then reply on 200 or drop. Transactions are not
// coordinated with each other and replies carry no correlation id, so a device
// firing two queries may see the answers in either order.
package bridge

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"pathbridge/internal/metrics"
)

// Sender delivers a reply to a device.
type Sender interface {
	SendAppMessage(ctx context.Context, deviceID string, msg OutgoingMessage) error
}

type Options struct {
	BaseURL string
	Fetcher Fetcher
	Sender  Sender
	Logger  *slog.Logger
	// Now defaults to time.Now; the local wall clock is what gets formatted.
	Now func() time.Time
}

type Bridge struct {
	baseURL string
	fetcher Fetcher
	sender  Sender
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

func New(opts Options) *Bridge {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Fetcher == nil {
		opts.Fetcher = NewHTTPFetcher(0)
	}
	return &Bridge{
		baseURL: opts.BaseURL,
		fetcher: opts.Fetcher,
		sender:  opts.Sender,
		logger:  opts.Logger,
		now:     opts.Now,
	}
}

// Register wires the bridge handlers into r.
func (b *Bridge) Register(r *Registry) {
	r.On(EventReady, b.HandleReady)
	r.On(EventAppMessage, b.HandleAppMessage)
}

func (b *Bridge) HandleReady(_ context.Context, ev Event) {
	metrics.DeviceEvents.WithLabelValues(EventReady.String()).Inc()
	b.logger.Info("connected", "ready", ev.Ready, "type", ev.Type, "device", ev.DeviceID)
}

// HandleAppMessage validates the message and starts its schedule request. It
// returns as soon as the request is issued; the reply is sent from the
// request goroutine.
func (b *Bridge) HandleAppMessage(ctx context.Context, ev Event) {
	metrics.DeviceEvents.WithLabelValues(EventAppMessage.String()).Inc()

	msg := IncomingMessage{Payload: ev.Payload}
	sched, ok := msg.Sched()
	if !ok {
		metrics.DroppedMessages.WithLabelValues("missing_sched").Inc()
		b.logger.Warn("cannot understand payload", "device", ev.DeviceID, "payload", ev.Payload)
		return
	}

	txID := uuid.NewString()
	logger := b.logger.With("tx", txID, "device", ev.DeviceID)
	logger.Info("payload", "sched", sched)

	q := ParseQuery(sched, b.now())
	url := BuildURL(b.baseURL, q)
	logger.Debug("requesting schedule",
		"station", q.Station,
		"direction", q.Direction,
		"time", q.TimeOfDay,
		"url", url,
	)

	if !b.begin(ctx) {
		metrics.DroppedMessages.WithLabelValues("shutting_down").Inc()
		logger.Warn("bridge shutting down; message dropped")
		return
	}
	go func() {
		defer b.inflight.Done()
		b.complete(ctx, logger, ev.DeviceID, url)
	}()
}

func (b *Bridge) complete(ctx context.Context, logger *slog.Logger, deviceID, url string) {
	status, body, err := b.fetcher.Fetch(ctx, url)
	if err != nil {
		metrics.DroppedMessages.WithLabelValues("request_failed").Inc()
		logger.Warn("schedule request failed", "url", url, "error", err)
		return
	}
	if status != http.StatusOK {
		metrics.DroppedMessages.WithLabelValues("non_200").Inc()
		logger.Warn("schedule request rejected", "status", status, "body", body)
		return
	}
	logger.Info("success!", "body", body)

	if b.sender == nil {
		metrics.DroppedMessages.WithLabelValues("no_sender").Inc()
		logger.Error("no device sender configured; reply dropped")
		return
	}
	if err := b.sender.SendAppMessage(ctx, deviceID, OutgoingMessage{Sched: body}); err != nil {
		metrics.DroppedMessages.WithLabelValues("send_failed").Inc()
		logger.Warn("failed to send reply to device", "error", err)
		return
	}
	metrics.RepliesSent.Inc()
	logger.Info("sent data to device")
}

// begin registers a transaction unless the bridge is draining or ctx is done.
func (b *Bridge) begin(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.draining || ctx.Err() != nil {
		return false
	}
	b.inflight.Add(1)
	return true
}

// Wait stops accepting new transactions and blocks until every in-flight
// transaction has finished. Messages handled after Wait starts are dropped.
func (b *Bridge) Wait() {
	b.mu.Lock()
	b.draining = true
	b.mu.Unlock()
	b.inflight.Wait()
}
