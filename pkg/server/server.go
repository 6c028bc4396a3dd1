// Package server implements the accepting side of the peerwire
// protocol: it authenticates named clients, relays typed payloads and
// exposes an administrative surface for banning, kicking, broadcast
// and redirect.
package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/peerwire/peerwire/pkg/banlist"
	"github.com/peerwire/peerwire/pkg/events"
	"github.com/peerwire/peerwire/pkg/identity"
	"github.com/peerwire/peerwire/pkg/transport"
)

var (
	ErrAlreadyStarted = errors.New("server already started")
	ErrNotStarted     = errors.New("server not started")
)

// Config holds server configuration.
type Config struct {
	Host string
	Port int

	// Name is the display name the server advertises to clients.
	Name string

	// AccessKey, when set, must be presented by every CONNECT.
	AccessKey string

	// TLS wraps the listener when set. Credential loading is the
	// caller's concern.
	TLS *tls.Config

	// Listener overrides Host/Port/TLS with an externally supplied
	// transport, e.g. transport.ListenWebSocket.
	Listener net.Listener

	// Registry receives server-side events. A private registry is
	// created when nil.
	Registry *events.Registry

	// Identity supplies the server's stable identity token.
	Identity identity.Provider

	// Bans persists the ban list across restarts.
	Bans banlist.Store

	Debug bool
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "0.0.0.0",
		Port:     49305,
		Name:     "server",
		Identity: identity.Hardware{},
	}
}

// Server accepts client connections and drives one read loop per
// connection. Multiple independent servers may run in one process.
type Server struct {
	config   *Config
	registry *events.Registry

	mac      string
	listener net.Listener
	table    *table
	barrier  *barrier

	bansMu sync.RWMutex
	banned map[string]struct{}

	mu        sync.Mutex
	started   bool
	closed    chan struct{}
	startTime time.Time
}

// New creates a server from config. Zero-value fields fall back to
// DefaultConfig values.
func New(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Name == "" {
		config.Name = "server"
	}
	if config.Identity == nil {
		config.Identity = identity.Hardware{}
	}

	registry := config.Registry
	if registry == nil {
		registry = events.NewRegistry()
	}

	return &Server{
		config:   config,
		registry: registry,
		table:    newTable(),
		barrier:  newBarrier(),
		banned:   make(map[string]struct{}),
		closed:   make(chan struct{}),
	}
}

// Registry returns the event registry this server dispatches to.
func (s *Server) Registry() *events.Registry { return s.registry }

// MAC returns the server's stable identity token, available after
// Start.
func (s *Server) MAC() string { return s.mac }

// Start binds the listener and launches the accept loop. A bind
// failure is returned and no loop runs.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	mac, err := s.config.Identity.MAC()
	if err != nil {
		return fmt.Errorf("failed to resolve server identity: %w", err)
	}
	s.mac = mac

	if s.config.Bans != nil {
		macs, err := s.config.Bans.Load()
		if err != nil {
			return fmt.Errorf("failed to load ban list: %w", err)
		}
		s.bansMu.Lock()
		for _, banned := range macs {
			s.banned[banned] = struct{}{}
		}
		s.bansMu.Unlock()
	}

	listener := s.config.Listener
	if listener == nil {
		addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
		if s.config.TLS != nil {
			listener, err = transport.ListenTLS(addr, s.config.TLS)
		} else {
			listener, err = transport.Listen(addr)
		}
		if err != nil {
			return fmt.Errorf("failed to bind %s: %w", addr, err)
		}
	}

	s.listener = listener
	s.started = true
	s.startTime = time.Now()

	log.Printf("Server listening on %s", listener.Addr())
	go s.acceptLoop()

	return nil
}

// Addr returns the listener address, available after Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop notifies every connected peer, stops the accept loop and
// terminates the per-connection loops.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	close(s.closed)
	listener := s.listener
	s.mu.Unlock()

	for _, peer := range s.table.snapshot() {
		s.notifyDisconnect(peer, "Server is shutting down")
		s.table.remove(addrKeyOf(peer))
	}

	return listener.Close()
}

func (s *Server) closing() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.closing() {
				log.Printf("Accept error: %v", err)
			}
			return
		}

		go s.handleConnection(conn)
	}
}

func (s *Server) debugf(format string, args ...any) {
	if s.config.Debug {
		log.Printf(format, args...)
	}
}

// isBanned checks the live ban set.
func (s *Server) isBanned(mac string) bool {
	s.bansMu.RLock()
	defer s.bansMu.RUnlock()
	_, ok := s.banned[mac]
	return ok
}

// Wait blocks until every frame read from any connection before the
// call has been fully handled. Frames read after the call do not
// extend the wait.
func (s *Server) Wait() {
	s.barrier.wait()
}

// Stats returns server statistics.
func (s *Server) Stats() map[string]any {
	s.bansMu.RLock()
	bannedCount := len(s.banned)
	s.bansMu.RUnlock()

	return map[string]any{
		"connected_clients": s.table.size(),
		"banned_identities": bannedCount,
		"frames_handled":    s.barrier.handledCount(),
		"uptime_seconds":    int64(time.Since(s.startTime).Seconds()),
	}
}
