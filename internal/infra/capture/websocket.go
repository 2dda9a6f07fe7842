package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"live-translator/internal/application"
	"live-translator/internal/domain"
)

var ErrNoClient = errors.New("no capture client connected")

const writeWait = 5 * time.Second

// clientMessage is sent by the browser page running the speech recognizer.
type clientMessage struct {
	Type      string `json:"type"`
	Supported bool   `json:"supported,omitempty"`
	Text      string `json:"text,omitempty"`
	Listening bool   `json:"listening,omitempty"`
	Error     string `json:"error,omitempty"`
}

type serverMessage struct {
	Type       string          `json:"type"`
	Session    string          `json:"session,omitempty"`
	Continuous bool            `json:"continuous,omitempty"`
	Language   string          `json:"language,omitempty"`
	Display    *domain.Display `json:"display,omitempty"`
}

type ack struct {
	listening bool
	err       string
}

type client struct {
	conn      *websocket.Conn
	id        string
	supported bool
	writeMu   sync.Mutex
}

func (c *client) send(msg serverMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

// WebSocketCapture bridges a browser speech recognizer to the pipeline. One
// client is served at a time; a new connection replaces the previous one.
type WebSocketCapture struct {
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	ackTimeout time.Duration

	mu        sync.Mutex
	client    *client
	listening bool
	session   string
	connected chan struct{}

	signal chan domain.Transcript
	acks   chan ack
}

// NewWebSocketCapture creates a new browser capture bridge.
func NewWebSocketCapture(ackTimeout time.Duration, logger *slog.Logger) *WebSocketCapture {
	if ackTimeout <= 0 {
		ackTimeout = 5 * time.Second
	}
	return &WebSocketCapture{
		logger:     logger,
		ackTimeout: ackTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		connected: make(chan struct{}),
		signal:    make(chan domain.Transcript, 1),
		acks:      make(chan ack, 1),
	}
}

func (w *WebSocketCapture) Name() string {
	return "websocket"
}

func (w *WebSocketCapture) Signal() <-chan domain.Transcript {
	return w.signal
}

// Connected is closed once the first client has said hello.
func (w *WebSocketCapture) Connected() <-chan struct{} {
	return w.connected
}

func (w *WebSocketCapture) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	w.handleConnection(conn)
}

func (w *WebSocketCapture) handleConnection(conn *websocket.Conn) {
	c := &client{conn: conn, id: uuid.NewString()}
	defer w.disconnect(c)

	logger := w.logger.With("client", c.id, "remote", conn.RemoteAddr().String())
	logger.Info("capture client connected")

	conn.SetReadLimit(64 * 1024)
	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("capture client read error", "error", err)
			} else {
				logger.Info("capture client disconnected")
			}
			return
		}

		switch msg.Type {
		case "hello":
			w.register(c, msg.Supported)
			logger.Info("capture client ready", "supported", msg.Supported)
		case "transcript":
			w.deliver(c, domain.Transcript{Text: msg.Text, Listening: msg.Listening})
		case "ack":
			w.acknowledge(c, ack{listening: msg.Listening, err: msg.Error})
		default:
			logger.Debug("ignoring capture message", "type", msg.Type)
		}
	}
}

func (w *WebSocketCapture) register(c *client, supported bool) {
	w.mu.Lock()
	old := w.client
	lost := old != nil && old != c && w.listening
	c.supported = supported
	w.client = c
	w.listening = false
	select {
	case <-w.connected:
	default:
		close(w.connected)
	}
	w.mu.Unlock()

	if lost {
		w.push(domain.Transcript{Listening: false})
	}
	if old != nil && old != c {
		old.conn.Close()
	}
}

// disconnect forgets c. A session that was still listening is reported as
// ended so the pipeline does not keep waiting on a dead client.
func (w *WebSocketCapture) disconnect(c *client) {
	w.mu.Lock()
	lost := w.client == c && w.listening
	if w.client == c {
		w.client = nil
		w.listening = false
	}
	w.mu.Unlock()

	if lost {
		w.logger.Warn("capture client lost while listening", "client", c.id)
		w.push(domain.Transcript{Listening: false})
	}
	c.conn.Close()
}

func (w *WebSocketCapture) deliver(c *client, t domain.Transcript) {
	w.mu.Lock()
	active := w.client == c && w.listening
	if active && !t.Listening {
		w.listening = false
	}
	w.mu.Unlock()
	if !active {
		return
	}
	w.push(t)
}

// push keeps only the newest transcript: every update carries the whole
// text, so a reader that fell behind loses nothing by skipping.
func (w *WebSocketCapture) push(t domain.Transcript) {
	for {
		select {
		case w.signal <- t:
			return
		default:
		}
		select {
		case <-w.signal:
		default:
		}
	}
}

func (w *WebSocketCapture) acknowledge(c *client, a ack) {
	w.mu.Lock()
	if w.client != c {
		w.mu.Unlock()
		return
	}
	w.listening = a.listening
	w.mu.Unlock()

	// Transcripts queued before a fresh session belong to the old one.
	if a.listening {
		drain(w.signal)
	}

	select {
	case <-w.acks:
	default:
	}
	w.acks <- a
}

func (w *WebSocketCapture) current() *client {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.client
}

func (w *WebSocketCapture) Start(ctx context.Context, opts application.CaptureOptions) error {
	c := w.current()
	if c == nil {
		return ErrNoClient
	}
	if !c.supported {
		return domain.ErrCaptureUnsupported
	}

	drain(w.acks)
	drain(w.signal)

	session := uuid.NewString()
	w.mu.Lock()
	w.session = session
	w.mu.Unlock()

	err := c.send(serverMessage{
		Type:       "start",
		Session:    session,
		Continuous: opts.Continuous,
		Language:   opts.Language,
	})
	if err != nil {
		return fmt.Errorf("sending start: %w", err)
	}

	a, err := w.waitAck(ctx)
	if err != nil {
		return fmt.Errorf("waiting for start acknowledgement: %w", err)
	}
	if !a.listening {
		if a.err != "" {
			return fmt.Errorf("capture client refused to start: %s", a.err)
		}
		return fmt.Errorf("capture client did not start listening")
	}

	w.logger.Debug("capture session started", "session", session, "language", opts.Language)
	return nil
}

func (w *WebSocketCapture) Stop(ctx context.Context) error {
	c := w.current()
	if c == nil {
		return nil
	}

	w.mu.Lock()
	w.listening = false
	session := w.session
	w.mu.Unlock()

	drain(w.acks)
	if err := c.send(serverMessage{Type: "stop", Session: session}); err != nil {
		return fmt.Errorf("sending stop: %w", err)
	}

	for {
		a, err := w.waitAck(ctx)
		if err != nil {
			return fmt.Errorf("waiting for stop acknowledgement: %w", err)
		}
		if !a.listening {
			break
		}
	}

	drain(w.signal)
	w.logger.Debug("capture session stopped", "session", session)
	return nil
}

// Publish forwards the display state to the connected page.
func (w *WebSocketCapture) Publish(d domain.Display) {
	c := w.current()
	if c == nil {
		return
	}
	if err := c.send(serverMessage{Type: "display", Display: &d}); err != nil {
		w.logger.Debug("sending display update", "error", err)
	}
}

func (w *WebSocketCapture) waitAck(ctx context.Context) (ack, error) {
	timer := time.NewTimer(w.ackTimeout)
	defer timer.Stop()

	select {
	case a := <-w.acks:
		return a, nil
	case <-timer.C:
		return ack{}, fmt.Errorf("no acknowledgement after %s", w.ackTimeout)
	case <-ctx.Done():
		return ack{}, ctx.Err()
	}
}

func drain[T any](ch chan T) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
