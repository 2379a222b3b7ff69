package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
)

// envelope is the JSON frame exchanged with devices over every transport:
//
//	{"type":"appmessage","payload":{"sched":"JSQ;jsq_33rd"}}
type envelope struct {
	Type    string  `json:"type"`
	Ready   *bool   `json:"ready,omitempty"`
	Payload Payload `json:"payload,omitempty"`
}

var ErrUnknownEventType = errors.New("unknown event type")

// DecodeEvent parses one device frame.
func DecodeEvent(deviceID string, data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode envelope: %w", err)
	}

	ev := Event{
		Type:     env.Type,
		DeviceID: deviceID,
		Payload:  env.Payload,
	}
	switch env.Type {
	case EventReady.String():
		ev.Kind = EventReady
		ev.Ready = env.Ready == nil || *env.Ready
	case EventAppMessage.String():
		ev.Kind = EventAppMessage
		if ev.Payload == nil {
			ev.Payload = Payload{}
		}
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}
	return ev, nil
}

// EncodeReply frames an outgoing message for the device.
func EncodeReply(msg OutgoingMessage) ([]byte, error) {
	return json.Marshal(envelope{
		Type:    EventAppMessage.String(),
		Payload: Payload{schedKey: msg.Sched},
	})
}

// EncodeAppMessage frames a device-side app message. Used by device simulators and tests.
func EncodeAppMessage(p Payload) ([]byte, error) {
	return json.Marshal(envelope{Type: EventAppMessage.String(), Payload: p})
}

// ReadyEvent is the synthetic event a transport dispatches once its device link is up.
func ReadyEvent(deviceID string) Event {
	return Event{Kind: EventReady, Type: EventReady.String(), Ready: true, DeviceID: deviceID}
}
