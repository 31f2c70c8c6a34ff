// Package notify delivers operator-facing messages.
//
// Messages go straight to connected privileged listeners when there is at
// least one. Otherwise they wait in a bounded FIFO backlog that is flushed
// the next time FlushBacklog finds a privileged listener. Messages that do
// not fit in the backlog end up in the operational log only.
package notify

import (
	"sync"

	"github.com/grovetools/packreload/logging"
	"github.com/sirupsen/logrus"
)

// BacklogLimit is the maximum number of queued notifications.
const BacklogLimit = 50

// Prefix marks every rendered notification.
const Prefix = "PS> "

// Notification is a single operator-facing message.
type Notification struct {
	Text    string
	IsError bool
}

// Render returns the text as shown to operators.
func (n Notification) Render() string {
	return Prefix + n.Text
}

// Listener is a connected party that may receive notifications.
type Listener interface {
	ID() string
}

// Listeners is the host capability for delivering notifications.
type Listeners interface {
	// Connected returns the listeners currently attached.
	Connected() []Listener
	// IsPrivileged reports whether l may receive operational notifications.
	IsPrivileged(l Listener) bool
	// Broadcast delivers n to every privileged listener.
	Broadcast(n Notification)
}

// Notifier routes notifications to listeners or the backlog.
type Notifier struct {
	listeners Listeners
	logger    *logrus.Entry

	mu      sync.Mutex
	backlog []Notification
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger overrides the fallback logger.
func WithLogger(l *logrus.Entry) Option {
	return func(n *Notifier) {
		n.logger = l
	}
}

// New creates a Notifier delivering through listeners.
func New(listeners Listeners, opts ...Option) *Notifier {
	n := &Notifier{listeners: listeners}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = logging.NewLogger("notify")
	}
	return n
}

// Info sends an informational notification.
func (n *Notifier) Info(text string) { n.Notify(Notification{Text: text}) }

// Error sends an error notification.
func (n *Notifier) Error(text string) { n.Notify(Notification{Text: text, IsError: true}) }

// Notify delivers msg now if a privileged listener is connected, otherwise
// queues it. A full backlog drops msg and logs it instead. Delivery happens
// outside the lock so a slow listener does not hold up other callers.
func (n *Notifier) Notify(msg Notification) {
	if n.privilegedPresent() {
		n.listeners.Broadcast(msg)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	fields := logrus.Fields{"error": msg.IsError}
	if len(n.backlog) >= BacklogLimit {
		n.logger.WithFields(fields).Warn("Backlog full, dropped: " + msg.Render())
		return
	}
	n.backlog = append(n.backlog, msg)
	n.logger.WithFields(fields).Info(msg.Render())
}

// FlushBacklog delivers every queued notification, oldest first, if a
// privileged listener is connected. It returns how many were delivered.
func (n *Notifier) FlushBacklog() int {
	if !n.privilegedPresent() {
		return 0
	}

	n.mu.Lock()
	pending := n.backlog
	n.backlog = nil
	n.mu.Unlock()

	for _, msg := range pending {
		n.listeners.Broadcast(msg)
	}
	return len(pending)
}

// Pending returns a copy of the queued notifications.
func (n *Notifier) Pending() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.backlog...)
}

func (n *Notifier) privilegedPresent() bool {
	for _, l := range n.listeners.Connected() {
		if n.listeners.IsPrivileged(l) {
			return true
		}
	}
	return false
}
