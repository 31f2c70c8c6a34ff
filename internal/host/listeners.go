package host

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grovetools/packreload/logging"
	"github.com/grovetools/packreload/notify"
	"github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

// listener is a connected notification sink.
type listener interface {
	notify.Listener
	privileged() bool
	deliver(n notify.Notification) error
}

// Hub is the set of connected listeners. It implements notify.Listeners.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string]listener
	logger    *logrus.Entry
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		listeners: make(map[string]listener),
		logger:    logging.NewLogger("host"),
	}
}

// Connected implements notify.Listeners.
func (h *Hub) Connected() []notify.Listener {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]notify.Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		out = append(out, l)
	}
	return out
}

// IsPrivileged implements notify.Listeners.
func (h *Hub) IsPrivileged(l notify.Listener) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	known, ok := h.listeners[l.ID()]
	return ok && known.privileged()
}

// Broadcast implements notify.Listeners. Listeners that fail to receive are
// dropped.
func (h *Hub) Broadcast(n notify.Notification) {
	h.mu.RLock()
	targets := make([]listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		if l.privileged() {
			targets = append(targets, l)
		}
	}
	h.mu.RUnlock()

	for _, l := range targets {
		if err := l.deliver(n); err != nil {
			h.logger.WithError(err).WithField("listener", l.ID()).Warn("Dropping listener")
			h.remove(l.ID())
		}
	}
}

// Len returns the number of connected listeners.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (h *Hub) add(l listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[l.ID()] = l
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	l, ok := h.listeners[id]
	delete(h.listeners, id)
	h.mu.Unlock()
	if c, isConn := l.(*connListener); ok && isConn {
		_ = c.conn.Close()
	}
}

// closeConns disconnects every websocket listener.
func (h *Hub) closeConns() {
	h.mu.Lock()
	var conns []*connListener
	for id, l := range h.listeners {
		if c, ok := l.(*connListener); ok {
			conns = append(conns, c)
			delete(h.listeners, id)
		}
	}
	h.mu.Unlock()
	for _, c := range conns {
		_ = c.conn.Close()
	}
}

// consoleListener prints notifications to the host's stdout.
type consoleListener struct {
	id     string
	isPriv bool
	pretty *logging.PrettyLogger
}

// AttachConsole adds the console as a listener.
func (h *Hub) AttachConsole(pretty *logging.PrettyLogger, privileged bool) {
	h.add(&consoleListener{id: "console", isPriv: privileged, pretty: pretty})
}

func (c *consoleListener) ID() string { return c.id }
func (c *consoleListener) privileged() bool { return c.isPriv }
func (c *consoleListener) deliver(n notify.Notification) error {
	c.pretty.Notice(n.Render(), n.IsError)
	return nil
}

// wireNotification is the JSON frame sent to websocket listeners.
type wireNotification struct {
	Text     string    `json:"text"`
	Error    bool      `json:"error"`
	Rendered string    `json:"rendered"`
	Time     time.Time `json:"time"`
}

// connListener is a websocket client.
type connListener struct {
	id     string
	isPriv bool
	conn   *websocket.Conn
	mu     sync.Mutex
}

func newConnListener(conn *websocket.Conn, privileged bool) *connListener {
	return &connListener{id: uuid.NewString(), isPriv: privileged, conn: conn}
}

func (c *connListener) ID() string { return c.id }
func (c *connListener) privileged() bool { return c.isPriv }

func (c *connListener) deliver(n notify.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(wireNotification{
		Text:     n.Text,
		Error:    n.IsError,
		Rendered: n.Render(),
		Time:     time.Now(),
	})
}
