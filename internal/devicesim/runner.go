// Package devicesim plays the watch side of the MQTT link: it publishes one
// schedule query and prints the reply the bridge sends back.
package devicesim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jessevdk/go-flags"

	"pathbridge/internal/bridge"
	"pathbridge/internal/device"
)

var ErrNoReply = errors.New("no reply before timeout")

func Run(ctx context.Context, args []string, out io.Writer) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}
	return Query(ctx, options, out)
}

// Query sends one app message and writes the reply's sched string to out.
func Query(ctx context.Context, o *Options, out io.Writer) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", o.Broker, o.Port))
	opts.SetClientID("devicesim-" + o.Device)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(o.Timeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(o.Timeout) {
		return fmt.Errorf("mqtt connect: timeout after %v", o.Timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer client.Disconnect(250)

	replies := make(chan string, 1)
	outbox := device.OutboxTopic(o.Prefix, o.Device)
	token = client.Subscribe(outbox, 1, func(_ mqtt.Client, msg mqtt.Message) {
		sched, err := decodeReply(msg.Payload())
		if err != nil {
			return
		}
		select {
		case replies <- sched:
		default:
		}
	})
	if !token.WaitTimeout(o.Timeout) {
		return fmt.Errorf("subscribe timeout for topic %s", outbox)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", outbox, err)
	}

	events := device.EventsTopic(o.Prefix, o.Device)
	frames, err := buildFrames(o)
	if err != nil {
		return err
	}
	for _, frame := range frames {
		token := client.Publish(events, 1, false, frame)
		if !token.WaitTimeout(o.Timeout) {
			return fmt.Errorf("publish timeout for topic %s", events)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}

	timer := time.NewTimer(o.Timeout)
	defer timer.Stop()
	select {
	case sched := <-replies:
		_, err := fmt.Fprintln(out, sched)
		return err
	case <-timer.C:
		return ErrNoReply
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildFrames(o *Options) ([][]byte, error) {
	var frames [][]byte
	if o.Ready {
		ready, err := json.Marshal(map[string]any{"type": "ready", "ready": true})
		if err != nil {
			return nil, err
		}
		frames = append(frames, ready)
	}

	sched := o.Station
	if o.Direction != "" {
		sched += ";" + o.Direction
	}
	msg, err := bridge.EncodeAppMessage(bridge.Payload{"sched": sched})
	if err != nil {
		return nil, err
	}
	return append(frames, msg), nil
}

func decodeReply(data []byte) (string, error) {
	var env struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	sched, ok := env.Payload["sched"]
	if !ok {
		return "", errors.New("reply has no sched")
	}
	return sched, nil
}
