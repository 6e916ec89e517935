package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by Write when no connection is open.
var ErrNotConnected = errors.New("ws not connected")

// ConnState is the lifecycle state of a streaming connection.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// WebSocketHandler defines exchange-specific logic for the BaseWSWorker.
type WebSocketHandler interface {
	GetURL() string
	OnConnect(ctx context.Context, conn *websocket.Conn) error
	OnMessage(ctx context.Context, msg []byte)
	OnPing(ctx context.Context, conn *websocket.Conn) error
	ID() string
}

// BaseWSWorker manages one WebSocket connection at a time.
// It owns the read loop, the ping loop and serialized writes. A read error ends
// the connection for good; redialing is left to the caller (see engine supervisor).
type BaseWSWorker struct {
	handler WebSocketHandler
	mu      sync.RWMutex
	conn    *websocket.Conn
	state   ConnState
	done    chan struct{}
	writeMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
}

// NewBaseWSWorker creates a new generic WebSocket worker.
func NewBaseWSWorker(handler WebSocketHandler) *BaseWSWorker {
	done := make(chan struct{})
	close(done)

	return &BaseWSWorker{
		handler:          handler,
		done:             done,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     25 * time.Second,
	}
}

// Start dials the endpoint and launches the receive loop.
// It is a no-op while a connection is being established or is open.
func (w *BaseWSWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateDisconnected {
		w.mu.Unlock()
		return nil
	}
	w.state = StateConnecting
	w.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: w.HandshakeTimeout}
	header := make(http.Header)
	header.Set("User-Agent", GetUserAgent())

	conn, _, err := dialer.DialContext(ctx, w.handler.GetURL(), header)
	if err != nil {
		w.setState(StateDisconnected)
		return fmt.Errorf("%s dial failed: %w", w.handler.ID(), err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	w.mu.Lock()
	w.conn = conn
	w.state = StateConnected
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	if err := w.handler.OnConnect(loopCtx, conn); err != nil {
		w.teardown(conn, cancel)
		close(done)
		return fmt.Errorf("OnConnect failed: %w", err)
	}

	w.wg.Add(1)
	go w.readLoop(loopCtx, conn, cancel, done)

	if w.PingInterval > 0 {
		w.wg.Add(1)
		go w.pingLoop(loopCtx)
	}

	slog.Info("WS Connected", "id", w.handler.ID())
	return nil
}

// Stop closes the connection and waits until the loops have exited.
// No OnMessage call happens after Stop returns.
func (w *BaseWSWorker) Stop() {
	w.mu.RLock()
	cancel := w.cancel
	w.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

// State reports the current connection state.
func (w *BaseWSWorker) State() ConnState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Done is closed when the current receive loop exits.
// Before the first successful Start it returns an already closed channel.
func (w *BaseWSWorker) Done() <-chan struct{} {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.done
}

func (w *BaseWSWorker) readLoop(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, done chan struct{}) {
	defer w.wg.Done()
	defer close(done)
	defer w.teardown(conn, cancel)

	// ReadMessage only unblocks when the socket closes.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		if w.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(w.ReadTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("WS Read error", "id", w.handler.ID(), "err", err)
			}
			return
		}

		w.handler.OnMessage(ctx, msg)
	}
}

func (w *BaseWSWorker) pingLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.RLock()
			c := w.conn
			w.mu.RUnlock()
			if c == nil {
				return
			}
			if err := w.handler.OnPing(ctx, c); err != nil {
				slog.Warn("WS Ping error", "id", w.handler.ID(), "err", err)
			}
		}
	}
}

// Write sends one frame. Safe for concurrent use.
func (w *BaseWSWorker) Write(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.RLock()
	c := w.conn
	w.mu.RUnlock()

	if c == nil {
		return ErrNotConnected
	}

	if w.WriteTimeout > 0 {
		c.SetWriteDeadline(time.Now().Add(w.WriteTimeout))
	}
	return c.WriteMessage(msgType, data)
}

func (w *BaseWSWorker) teardown(conn *websocket.Conn, cancel context.CancelFunc) {
	cancel()
	conn.Close()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == conn {
		w.conn = nil
		w.cancel = nil
		w.state = StateDisconnected
	}
}

func (w *BaseWSWorker) setState(s ConnState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = s
}
