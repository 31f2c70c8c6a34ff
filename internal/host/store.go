package host

import (
	"sync"
	"time"

	"github.com/grovetools/packreload/orchestrator"
)

// PackageStatus is the last compile outcome for one package.
type PackageStatus struct {
	LastEvent orchestrator.EventType `json:"last_event"`
	At        time.Time              `json:"at"`
	Error     string                 `json:"error,omitempty"`
	Compiles  int                    `json:"compiles"`
}

// State is the host's view of the orchestrator, served by /api/status.
type State struct {
	StartedAt time.Time                `json:"started_at"`
	Ready     bool                     `json:"ready"`
	Version   string                   `json:"version,omitempty"`
	Bootstrap string                   `json:"bootstrap_error,omitempty"`
	Watermark time.Time                `json:"watermark,omitzero"`
	Packages  map[string]PackageStatus `json:"packages"`
	Packs     []string                 `json:"packs"`
	Listeners int                      `json:"listeners"`
	Pending   int                      `json:"pending_notifications"`
}

// Store keeps the latest State and fans orchestrator events out to
// subscribers. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	state       State
	subscribers map[chan orchestrator.Event]struct{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		state: State{
			StartedAt: time.Now(),
			Packages:  make(map[string]PackageStatus),
		},
		subscribers: make(map[chan orchestrator.Event]struct{}),
	}
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Packages = make(map[string]PackageStatus, len(s.state.Packages))
	for k, v := range s.state.Packages {
		st.Packages[k] = v
	}
	return st
}

func (s *Store) setRuntime(packs []string, listeners, pending int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Packs = packs
	s.state.Listeners = listeners
	s.state.Pending = pending
}

// Observe implements orchestrator.Observer.
func (s *Store) Observe(e orchestrator.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Type {
	case orchestrator.EventBootstrapped:
		s.state.Ready = e.Ready
		s.state.Version = e.Version
		s.state.Bootstrap = e.Err
	default:
		ps := s.state.Packages[e.Package]
		ps.LastEvent = e.Type
		ps.At = e.Time
		ps.Error = e.Err
		if e.Type == orchestrator.EventCompileStarted {
			ps.Compiles++
			if e.Watermark.After(s.state.Watermark) {
				s.state.Watermark = e.Watermark
			}
		}
		s.state.Packages[e.Package] = ps
	}

	for ch := range s.subscribers {
		select {
		case ch <- e:
		default:
			// Slow subscribers miss events rather than stall the tick.
		}
	}
}

// Subscribe creates a buffered channel receiving every later event.
func (s *Store) Subscribe() chan orchestrator.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan orchestrator.Event, 100)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan orchestrator.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, ch)
	close(ch)
}
