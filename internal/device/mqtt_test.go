package device

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"pathbridge/internal/bridge"
	"pathbridge/internal/config"
)

func TestDeviceFromTopic(t *testing.T) {
	tests := []struct {
		name   string
		topic  string
		want   string
		wantOK bool
	}{
		{name: "events topic", topic: "pebble/watch-1/events", want: "watch-1", wantOK: true},
		{name: "other prefix", topic: "other/watch-1/events", wantOK: false},
		{name: "outbox topic", topic: "pebble/watch-1/outbox", wantOK: false},
		{name: "empty device", topic: "pebble//events", wantOK: false},
		{name: "nested device", topic: "pebble/a/b/events", wantOK: false},
		{name: "prefix only", topic: "pebble", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := deviceFromTopic("pebble", tt.topic)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("deviceFromTopic(%q) = (%q, %v), want (%q, %v)", tt.topic, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTopics(t *testing.T) {
	if got := EventsTopic("pebble", "w1"); got != "pebble/w1/events" {
		t.Errorf("EventsTopic = %q", got)
	}
	if got := OutboxTopic("pebble", "w1"); got != "pebble/w1/outbox" {
		t.Errorf("OutboxTopic = %q", got)
	}
}

func testConfig() config.Config {
	return config.Config{
		MQTTBroker:      "127.0.0.1",
		MQTTPort:        1,
		MQTTClientID:    "test",
		MQTTTopicPrefix: "pebble",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMQTTTransport_SendWhileDisconnected(t *testing.T) {
	tr := NewMQTTTransport(testConfig(), discardLogger())

	err := tr.SendAppMessage(context.Background(), "w1", bridge.OutgoingMessage{Sched: "x"})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
	if tr.IsConnected() {
		t.Error("IsConnected() = true before connect")
	}
}

func TestMQTTTransport_HandleMessageDispatches(t *testing.T) {
	tr := NewMQTTTransport(testConfig(), discardLogger())

	var mu sync.Mutex
	var got []bridge.Event
	tr.dispatch = func(_ context.Context, ev bridge.Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	}

	tr.handleMessage("pebble/w1/events", []byte(`{"type":"appmessage","payload":{"sched":"JSQ;jsq_33rd"}}`))
	tr.handleMessage("pebble/w1/events", []byte(`not json`))
	tr.handleMessage("elsewhere/w1/events", []byte(`{"type":"ready"}`))
	tr.handleMessage("pebble/w2/events", []byte(`{"type":"ready"}`))

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("dispatched %d events, want 2: %+v", len(got), got)
	}
	if got[0].Kind != bridge.EventAppMessage || got[0].DeviceID != "w1" || got[0].Payload["sched"] != "JSQ;jsq_33rd" {
		t.Errorf("first event = %+v", got[0])
	}
	if got[1].Kind != bridge.EventReady || got[1].DeviceID != "w2" {
		t.Errorf("second event = %+v", got[1])
	}
}

func TestMQTTTransport_ConnectAfterDisconnect(t *testing.T) {
	tr := NewMQTTTransport(testConfig(), discardLogger())
	tr.Disconnect()
	tr.Disconnect() // idempotent

	if err := tr.Connect(context.Background()); err == nil {
		t.Fatal("Connect after Disconnect: err = nil")
	}
}
