package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/dreamfocus/internal/focuser"
	"github.com/muurk/dreamfocus/internal/logging"
)

// Config holds the status feed configuration.
type Config struct {
	Host     string // Bind address (empty = all interfaces)
	Port     int    // TCP port for the feed
	Announce bool   // Advertise the feed via mDNS
}

// Server streams focuser state snapshots to websocket subscribers and
// serves the latest snapshot over plain HTTP. It observes the session,
// so each poll tick (and each completed command) fans out to every
// connected client.
type Server struct {
	config  *Config
	session *focuser.Session

	httpServer *http.Server
	listener   net.Listener

	mu      sync.Mutex
	clients map[*client]struct{}
	latest  focuser.Snapshot
	haveOne bool

	wg sync.WaitGroup
}

// New creates a feed server for the given session. The session must
// already be connected; its poll loop is driven elsewhere.
func New(config *Config, session *focuser.Session) *Server {
	s := &Server{
		config:  config,
		session: session,
		clients: make(map[*client]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	session.OnUpdate(s.broadcast)
	return s
}

// Addr returns the listener address once Start has bound it.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listener and serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind feed listener: %w", err)
	}
	s.listener = listener

	logging.Info("Status feed listening",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("announce", s.config.Announce),
	)

	var announcer *Announcer
	if s.config.Announce {
		announcer, err = Announce(s.config.Port)
		if err != nil {
			// The feed still works without mDNS; clients just have to
			// know the address.
			logging.Warn("mDNS announcement failed", zap.Error(err))
		}
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Status feed shutting down")
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("feed server failed: %w", err)
		}
	}

	if announcer != nil {
		announcer.Shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Feed shutdown incomplete", zap.Error(err))
	}

	s.closeClients()
	s.wg.Wait()
	return nil
}

// handleStatus serves the most recent snapshot as JSON. Until the first
// tick completes there is nothing to report.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	snap, ok := s.latest, s.haveOne
	s.mu.Unlock()

	if !ok {
		snap = s.session.Snapshot()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newStatusMessage(snap)); err != nil {
		logging.Error("Failed to encode status response", zap.Error(err))
	}
}

// broadcast records the snapshot and queues it on every client. A client
// whose send buffer is full is dropped rather than allowed to stall the
// poll loop.
func (s *Server) broadcast(snap focuser.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = snap
	s.haveOne = true

	msg := newStatusMessage(snap)
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			logging.Warn("Dropping slow feed client",
				zap.String("remote_addr", c.remoteAddr),
			)
			delete(s.clients, c)
			close(c.send)
		}
	}
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
	// Seed the new subscriber with the latest state so it does not have
	// to wait a full poll interval for its first message.
	if s.haveOne {
		c.send <- newStatusMessage(s.latest)
	}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}
