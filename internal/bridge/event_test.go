package bridge

import (
	"context"
	"testing"
)

func TestRegistry_DispatchInOrder(t *testing.T) {
	r := NewRegistry()
	var calls []string
	r.On(EventAppMessage, func(_ context.Context, ev Event) { calls = append(calls, "first:"+ev.DeviceID) })
	r.On(EventAppMessage, func(_ context.Context, ev Event) { calls = append(calls, "second:"+ev.DeviceID) })
	r.On(EventReady, func(_ context.Context, _ Event) { calls = append(calls, "ready") })

	r.Dispatch(context.Background(), Event{Kind: EventAppMessage, DeviceID: "w"})

	if len(calls) != 2 || calls[0] != "first:w" || calls[1] != "second:w" {
		t.Errorf("calls = %v, want [first:w second:w]", calls)
	}
}

func TestRegistry_DispatchWithoutHandler(t *testing.T) {
	r := NewRegistry()
	// Must not panic.
	r.Dispatch(context.Background(), Event{Kind: EventReady})
}

func TestEventKind_String(t *testing.T) {
	tests := map[EventKind]string{
		EventReady:      "ready",
		EventAppMessage: "appmessage",
		EventKind(99):   "unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("EventKind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}
