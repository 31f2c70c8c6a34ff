package host

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const maxClientMessage = 512

// Server exposes host status and notification listeners over HTTP.
//
// Requests arriving on the unix socket are local and always trusted. TCP
// requests must present the operator token to read status or to receive
// notifications.
type Server struct {
	host     *Host
	token    string
	logger   *logrus.Entry
	upgrader websocket.Upgrader

	mu       sync.Mutex
	servers  []*http.Server
	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a Server for h. An empty token makes every TCP client
// unprivileged.
func NewServer(h *Host, token string, logger *logrus.Entry) *Server {
	return &Server{
		host:   h,
		token:  token,
		logger: logger,
		done:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler. local marks every request as trusted.
func (s *Server) Handler(local bool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/status", s.requireTrust(local, s.handleStatus))
	mux.HandleFunc("/api/stream", s.requireTrust(local, s.handleStream))
	mux.HandleFunc("/notifications", func(w http.ResponseWriter, r *http.Request) {
		s.handleNotifications(w, r, local || s.authorized(r))
	})
	return mux
}

// ListenAndServe serves local clients on socketPath until Shutdown.
func (s *Server) ListenAndServe(socketPath string) error {
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.WithField("socket", socketPath).Info("Listening for local clients")
	return s.serve(listener, true)
}

// ListenTCP serves remote clients on addr until Shutdown.
func (s *Server) ListenTCP(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.logger.WithField("addr", listener.Addr().String()).Info("Listening for remote clients")
	return s.serve(listener, false)
}

func (s *Server) serve(listener net.Listener, local bool) error {
	srv := &http.Server{Handler: s.Handler(local)}
	s.mu.Lock()
	s.servers = append(s.servers, srv)
	s.mu.Unlock()

	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops every listener and disconnects websocket and
// stream clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })
	s.host.Hub().closeConns()

	s.mu.Lock()
	servers := s.servers
	s.servers = nil
	s.mu.Unlock()

	var firstErr error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// authorized reports whether r carries the operator token, either as a
// bearer token or as the token query parameter.
func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return false
	}
	presented := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		presented = strings.TrimPrefix(auth, "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.token)) == 1
}

func (s *Server) requireTrust(local bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !local && !s.authorized(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// handleStatus returns the current State as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.host.Store().Get())
}

// handleStream sends orchestrator events as server-sent events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.host.Store().Subscribe()
	defer s.host.Store().Unsubscribe(ch)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.WithError(err).Error("Failed to marshal event")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleNotifications upgrades to a websocket and registers the connection
// as a listener until the client goes away.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request, privileged bool) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	l := newConnListener(conn, privileged)
	hub := s.host.Hub()
	hub.add(l)
	s.logger.WithFields(logrus.Fields{"listener": l.ID(), "privileged": privileged}).Info("Listener connected")

	// Clients only send close frames; anything else is read and discarded.
	conn.SetReadLimit(maxClientMessage)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	hub.remove(l.ID())
	s.logger.WithField("listener", l.ID()).Info("Listener disconnected")
}
