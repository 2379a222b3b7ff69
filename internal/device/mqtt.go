package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"pathbridge/internal/bridge"
	"pathbridge/internal/config"
)

const (
	eventsSuffix = "events"
	outboxSuffix = "outbox"
)

var ErrNotConnected = errors.New("mqtt client not connected")

// MQTTTransport exchanges envelopes with watches through a broker. Watches
// publish to <prefix>/<device>/events and read replies from <prefix>/<device>/outbox.
type MQTTTransport struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	dispatchMu sync.RWMutex
	dispatch   DispatchFunc
	ctx        context.Context

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMQTTTransport(cfg config.Config, logger *slog.Logger) *MQTTTransport {
	if logger == nil {
		logger = slog.Default()
	}
	t := &MQTTTransport{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		ctx:    context.Background(),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Subscriptions are dropped with a clean session, so resubscribe on every (re)connect.
	// The link only reports connected once the events subscription is live.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		if err := t.subscribe(c); err != nil {
			logger.Error("mqtt subscribe failed", "error", err)
			return
		}
		t.setConnected(true)
		t.emit(bridge.ReadyEvent(""))
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		t.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	t.client = mqtt.NewClient(opts)
	return t
}

// Run connects to the broker and serves device events until ctx is done.
func (t *MQTTTransport) Run(ctx context.Context, dispatch DispatchFunc) error {
	t.dispatchMu.Lock()
	t.dispatch = dispatch
	t.ctx = ctx
	t.dispatchMu.Unlock()

	if err := t.Connect(ctx); err != nil {
		return err
	}
	defer t.Disconnect()

	select {
	case <-ctx.Done():
		return nil
	case <-t.stopCh:
		return nil
	}
}

// Connect establishes connection to the MQTT broker.
// This function waits for the initial connection, and respects ctx and Disconnect().
func (t *MQTTTransport) Connect(ctx context.Context) error {
	// Fail fast if already stopped.
	select {
	case <-t.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	// Fast path.
	if t.IsConnected() {
		return nil
	}

	// Start connect attempt. With ConnectRetry(true), it may keep retrying internally.
	token := t.client.Connect()

	// Wait in a ctx/stop-aware loop.
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// OnConnectHandler sets connected=true.
			return nil
		}

		select {
		case <-ctx.Done():
			t.client.Disconnect(0)
			return ctx.Err()
		case <-t.stopCh:
			t.client.Disconnect(0)
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

func (t *MQTTTransport) subscribe(c mqtt.Client) error {
	topic := t.eventsFilter()
	qos := byte(1) // At least once delivery

	token := c.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		t.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}

	t.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	return nil
}

func (t *MQTTTransport) handleMessage(topic string, payload []byte) {
	t.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	deviceID, ok := deviceFromTopic(t.cfg.MQTTTopicPrefix, topic)
	if !ok {
		t.logger.Warn("ignoring message on unexpected topic", "topic", topic)
		return
	}

	ev, err := bridge.DecodeEvent(deviceID, payload)
	if err != nil {
		t.logger.Warn("failed to parse device message",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}
	t.emit(ev)
}

func (t *MQTTTransport) emit(ev bridge.Event) {
	t.dispatchMu.RLock()
	dispatch, ctx := t.dispatch, t.ctx
	t.dispatchMu.RUnlock()
	if dispatch != nil {
		dispatch(ctx, ev)
	}
}

// SendAppMessage publishes a reply to the device's outbox topic.
func (t *MQTTTransport) SendAppMessage(_ context.Context, deviceID string, msg bridge.OutgoingMessage) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}
	if deviceID == "" {
		return fmt.Errorf("reply has no device id")
	}

	data, err := bridge.EncodeReply(msg)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}

	topic := OutboxTopic(t.cfg.MQTTTopicPrefix, deviceID)
	token := t.client.Publish(topic, 1, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if token.Error() != nil {
		t.logger.Error("failed to publish reply", "topic", topic, "error", token.Error())
		return fmt.Errorf("publish reply: %w", token.Error())
	}

	t.logger.Debug("published reply", "topic", topic, "device", deviceID)
	return nil
}

// IsConnected returns whether the client is connected.
func (t *MQTTTransport) IsConnected() bool {
	t.mu.RLock()
	connected := t.connected
	t.mu.RUnlock()
	return connected && t.client.IsConnected()
}

// Disconnect stops the transport and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (t *MQTTTransport) Disconnect() {
	// Signal shutdown once (unblocks any Connect loops).
	t.stopOnce.Do(func() { close(t.stopCh) })

	if t.client != nil && t.IsConnected() {
		token := t.client.Unsubscribe(t.eventsFilter())
		token.WaitTimeout(2 * time.Second)
	}

	// Disconnect without holding t.mu to avoid lock contention/deadlocks.
	if t.client != nil {
		t.client.Disconnect(250)
	}

	t.setConnected(false)
	t.logger.Info("mqtt disconnected")
}

func (t *MQTTTransport) setConnected(v bool) {
	t.mu.Lock()
	t.connected = v
	t.mu.Unlock()
}

func (t *MQTTTransport) eventsFilter() string {
	return t.cfg.MQTTTopicPrefix + "/+/" + eventsSuffix
}

// EventsTopic is where a device publishes its events.
func EventsTopic(prefix, deviceID string) string {
	return prefix + "/" + deviceID + "/" + eventsSuffix
}

// OutboxTopic is where the bridge publishes replies for a device.
func OutboxTopic(prefix, deviceID string) string {
	return prefix + "/" + deviceID + "/" + outboxSuffix
}

func deviceFromTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", false
	}
	deviceID, ok := strings.CutSuffix(rest, "/"+eventsSuffix)
	if !ok || deviceID == "" || strings.Contains(deviceID, "/") {
		return "", false
	}
	return deviceID, true
}
