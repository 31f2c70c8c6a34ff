package orchestrator

import "time"

// EventType names a lifecycle step.
type EventType string

const (
	EventBootstrapped   EventType = "bootstrapped"
	EventCompileStarted EventType = "compile_started"
	EventCompileFailed  EventType = "compile_failed"
	EventReloadFailed   EventType = "reload_failed"
	EventReloaded       EventType = "reloaded"
)

// Event describes something the orchestrator did.
type Event struct {
	Type    EventType `json:"type"`
	Time    time.Time `json:"time"`
	Package string    `json:"package,omitempty"`
	// Ready and Version are set on EventBootstrapped.
	Ready   bool   `json:"ready,omitempty"`
	Version string `json:"version,omitempty"`
	// Watermark is set on EventCompileStarted.
	Watermark time.Time `json:"watermark,omitzero"`
	Err       string    `json:"error,omitempty"`
}

// Observer receives events synchronously on the ticking goroutine, so it
// must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) Observe(Event) {}
