package bridge

import (
	"context"
	"log/slog"
	"sync"
)

// EventKind identifies the device events the bridge reacts to.
type EventKind int

const (
	EventReady EventKind = iota
	EventAppMessage
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventAppMessage:
		return "appmessage"
	default:
		return "unknown"
	}
}

// Event is a single event delivered by a device transport.
type Event struct {
	Kind     EventKind
	Type     string
	Ready    bool
	DeviceID string
	Payload  Payload
}

// Handler reacts to one event. Handlers run synchronously on the dispatching goroutine.
type Handler func(ctx context.Context, ev Event)

// Registry maps event kinds to their handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[EventKind][]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[EventKind][]Handler)}
}

// On appends h to the handlers of kind. Handlers fire in registration order.
func (r *Registry) On(kind EventKind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = append(r.handlers[kind], h)
}

// Dispatch runs every handler registered for ev.Kind.
func (r *Registry) Dispatch(ctx context.Context, ev Event) {
	r.mu.RLock()
	hs := r.handlers[ev.Kind]
	r.mu.RUnlock()

	if len(hs) == 0 {
		slog.Debug("no handler for event", "kind", ev.Kind.String(), "device", ev.DeviceID)
		return
	}
	for _, h := range hs {
		h(ctx, ev)
	}
}
