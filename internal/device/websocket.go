package device

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pathbridge/internal/bridge"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = (wsPongWait * 9) / 10
	wsMaxFrameSize = 8 << 10
)

// WebSocketTransport accepts companion-app connections on GET /ws/{device}.
// One connection per device id; a newer connection replaces the older one.
type WebSocketTransport struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*wsConn

	dispatchMu sync.RWMutex
	dispatch   DispatchFunc
	ctx        context.Context
	running    bool
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func NewWebSocketTransport(logger *slog.Logger) *WebSocketTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketTransport{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Phone companion apps do not send a browser Origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*wsConn),
		ctx:   context.Background(),
	}
}

// RegisterRoutes mounts the upgrade endpoint.
func (t *WebSocketTransport) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/{device}", t.handleUpgrade)
}

// Run installs dispatch and blocks until ctx is done, then closes every connection.
func (t *WebSocketTransport) Run(ctx context.Context, dispatch DispatchFunc) error {
	t.dispatchMu.Lock()
	t.dispatch = dispatch
	t.ctx = ctx
	t.running = true
	t.dispatchMu.Unlock()

	<-ctx.Done()

	t.dispatchMu.Lock()
	t.running = false
	t.dispatchMu.Unlock()

	t.mu.Lock()
	for id, c := range t.conns {
		_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bridge shutting down"))
		_ = c.conn.Close()
		delete(t.conns, id)
	}
	t.mu.Unlock()
	t.logger.Info("websocket transport stopped")
	return nil
}

func (t *WebSocketTransport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("device")
	if deviceID == "" {
		http.Error(w, "missing device id", http.StatusBadRequest)
		return
	}

	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		t.logger.Warn("websocket upgrade failed", "device", deviceID, "error", err)
		return
	}
	c := &wsConn{conn: conn}

	t.mu.Lock()
	if old, ok := t.conns[deviceID]; ok {
		_ = old.conn.Close()
	}
	t.conns[deviceID] = c
	t.mu.Unlock()

	t.logger.Info("device connected", "device", deviceID, "remote", r.RemoteAddr)
	t.emit(bridge.ReadyEvent(deviceID))

	done := make(chan struct{})
	go t.pingLoop(c, done)
	t.readLoop(deviceID, c)
	close(done)

	t.mu.Lock()
	if t.conns[deviceID] == c {
		delete(t.conns, deviceID)
	}
	t.mu.Unlock()
	_ = conn.Close()
	t.logger.Info("device disconnected", "device", deviceID)
}

func (t *WebSocketTransport) readLoop(deviceID string, c *wsConn) {
	c.conn.SetReadLimit(wsMaxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Warn("websocket read failed", "device", deviceID, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			t.logger.Debug("ignoring non-text frame", "device", deviceID, "type", messageType)
			continue
		}

		ev, err := bridge.DecodeEvent(deviceID, data)
		if err != nil {
			t.logger.Warn("failed to parse device message",
				"device", deviceID,
				"error", err,
				"payload", string(data),
			)
			continue
		}
		t.emit(ev)
	}
}

func (t *WebSocketTransport) pingLoop(c *wsConn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (t *WebSocketTransport) emit(ev bridge.Event) {
	t.dispatchMu.RLock()
	dispatch, ctx := t.dispatch, t.ctx
	t.dispatchMu.RUnlock()
	if dispatch != nil {
		dispatch(ctx, ev)
	}
}

// SendAppMessage writes a reply frame to the device's current connection.
func (t *WebSocketTransport) SendAppMessage(_ context.Context, deviceID string, msg bridge.OutgoingMessage) error {
	t.mu.RLock()
	c, ok := t.conns[deviceID]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("device %q not connected", deviceID)
	}

	data, err := bridge.EncodeReply(msg)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	if err := c.write(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write reply to %q: %w", deviceID, err)
	}
	t.logger.Debug("sent reply", "device", deviceID)
	return nil
}

// IsConnected reports whether Run is active. Individual devices come and go.
func (t *WebSocketTransport) IsConnected() bool {
	t.dispatchMu.RLock()
	defer t.dispatchMu.RUnlock()
	return t.running
}

// Connected returns how many devices currently hold a connection.
func (t *WebSocketTransport) Connected() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}
