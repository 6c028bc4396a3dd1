// Package client implements the connecting side of the peerwire
// protocol: it performs the named handshake, queues payloads written
// before the server accepts, and reports server events to observers.
package client

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/peerwire/peerwire/pkg/events"
	"github.com/peerwire/peerwire/pkg/identity"
	"github.com/peerwire/peerwire/pkg/remote"
	"github.com/peerwire/peerwire/pkg/transport"
	"github.com/peerwire/peerwire/pkg/wire"
)

var (
	ErrAlreadyConnected = errors.New("client already connected")
	ErrClosed           = errors.New("client closed")
	ErrHandshakeTimeout = errors.New("server did not answer the handshake in time")
)

// state tracks where the connection is in its lifecycle. The flag
// soup of ad-hoc booleans this replaces could express impossible
// combinations; a single enum cannot.
type state uint8

const (
	stateIdle state = iota
	stateAwaitingAccept
	stateConnected
	stateClosed
)

// Config holds client configuration.
type Config struct {
	Host string
	Port int

	// Name is the display name requested during the handshake.
	Name string

	// AccessKey is presented during the handshake when set.
	AccessKey string

	// TLS enables a TLS transport when set.
	TLS *tls.Config

	// Dialer overrides the transport, e.g. transport.WebSocket.
	Dialer transport.Dialer

	// Registry receives client-side events. A private registry is
	// created when nil.
	Registry *events.Registry

	// Identity supplies the client's stable identity token.
	Identity identity.Provider

	// ConnectTimeout bounds how long Connect waits for the server's
	// accept or decline.
	ConnectTimeout time.Duration

	// RetryInterval is how often the CONNECT frame is resent while the
	// handshake reply is outstanding.
	RetryInterval time.Duration

	Debug bool
}

// DefaultConfig returns default client configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:           "127.0.0.1",
		Port:           49305,
		Name:           "client",
		Identity:       identity.Hardware{},
		ConnectTimeout: 10 * time.Second,
		RetryInterval:  2 * time.Second,
	}
}

// Client is one connection to one server. Independent clients in one
// process share nothing.
type Client struct {
	config   *Config
	registry *events.Registry

	mu     sync.Mutex
	state  state
	conn   net.Conn
	server *remote.Server
	mac    string
	name   string

	// handshake carries the accept or decline observed by the read
	// loop back to the Connect caller.
	handshake chan error
}

// New creates a client from config. Zero-value fields fall back to
// DefaultConfig values.
func New(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Name == "" {
		config.Name = "client"
	}
	if config.Identity == nil {
		config.Identity = identity.Hardware{}
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 2 * time.Second
	}

	registry := config.Registry
	if registry == nil {
		registry = events.NewRegistry()
	}

	return &Client{
		config:   config,
		registry: registry,
		name:     config.Name,
	}
}

// Registry returns the event registry this client dispatches to.
func (c *Client) Registry() *events.Registry { return c.registry }

// Name returns the client's current display name. It changes when the
// server confirms a rename.
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// MAC returns the client's stable identity token, available after
// Connect.
func (c *Client) MAC() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mac
}

// Server returns the handle for the connected server, or nil before
// the handshake completes.
func (c *Client) Server() *remote.Server {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateConnected {
		return nil
	}
	return c.server
}

// IsConnected reports whether the handshake has completed and the
// connection is live.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateConnected
}

func (c *Client) debugf(format string, args ...any) {
	if c.config.Debug {
		log.Printf(format, args...)
	}
}

// Connect dials the server, sends the handshake and blocks until the
// server accepts, declines or the configured timeout expires. A
// decline reason is returned as an error.
func (c *Client) Connect() error {
	c.mu.Lock()
	switch c.state {
	case stateConnected, stateAwaitingAccept:
		c.mu.Unlock()
		return ErrAlreadyConnected
	case stateClosed:
		c.mu.Unlock()
		return ErrClosed
	}

	mac, err := c.config.Identity.MAC()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to resolve client identity: %w", err)
	}
	c.mac = mac

	dialer := c.config.Dialer
	if dialer == nil {
		if c.config.TLS != nil {
			dialer = transport.TLS{Config: c.config.TLS, Timeout: c.config.ConnectTimeout}
		} else {
			dialer = transport.TCP{Timeout: c.config.ConnectTimeout}
		}
	}

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	conn, err := dialer.Dial(addr)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	host, port := remoteHostPort(conn)
	c.conn = conn
	c.server = remote.NewServer("", "", host, port, conn)
	c.state = stateAwaitingAccept
	c.handshake = make(chan error, 1)
	handshake := c.handshake
	server := c.server
	c.mu.Unlock()

	hello := wire.NewControl(mac, wire.CommandConnect, c.config.Name)
	if c.config.AccessKey != "" {
		hello.WriteText(wire.FieldAccessKey, c.config.AccessKey)
	}
	if !server.Send(hello) {
		c.teardown(events.ReasonUnknown, "handshake write failed")
		return fmt.Errorf("failed to send handshake to %s", addr)
	}

	go c.receiveLoop(conn)

	// Resend the handshake at the retry interval until the reply or
	// the deadline arrives.
	retry := time.NewTicker(c.config.RetryInterval)
	defer retry.Stop()
	deadline := time.After(c.config.ConnectTimeout)

	for {
		select {
		case err := <-handshake:
			if err != nil {
				c.teardown(events.ReasonUnknown, err.Error())
				return err
			}
			return nil
		case <-retry.C:
			server.Send(hello)
		case <-deadline:
			c.teardown(events.ReasonUnknown, "handshake timed out")
			return ErrHandshakeTimeout
		}
	}
}

// Send delivers a user payload to the server. Payloads written while
// the handshake is still pending are queued and flushed on accept.
// Send reports false once the client is closed.
func (c *Client) Send(payload *wire.Payload) bool {
	c.mu.Lock()
	state := c.state
	server := c.server
	c.mu.Unlock()

	switch state {
	case stateConnected:
		return server.SendMessage(payload)
	case stateAwaitingAccept:
		return server.Enqueue(payload)
	default:
		return false
	}
}

// Rename asks the server for a new display name. The local name only
// changes when the server confirms.
func (c *Client) Rename(newName string) error {
	c.mu.Lock()
	state := c.state
	server := c.server
	mac := c.mac
	c.mu.Unlock()

	request := wire.NewControl(mac, wire.CommandRename, newName)
	switch state {
	case stateConnected:
		// A transient write failure leaves the compiled frame queued,
		// so the request is not lost.
		server.Send(request)
		return nil
	case stateAwaitingAccept:
		server.Queue(request)
		return nil
	default:
		return ErrClosed
	}
}

// Close tells the server the client is leaving and terminates the
// connection. Repeated calls are no-ops.
func (c *Client) Close(message string) error {
	c.mu.Lock()
	if c.state == stateClosed || c.state == stateIdle {
		c.state = stateClosed
		c.mu.Unlock()
		return nil
	}
	server := c.server
	mac := c.mac
	connected := c.state == stateConnected
	c.mu.Unlock()

	if connected {
		goodbye := wire.NewControl(mac, wire.CommandDisconnect, message)
		server.Send(goodbye)
	}

	c.teardown(events.ReasonKilledByClient, message)
	return nil
}

// teardown closes the connection and moves to the terminal state. It
// dispatches a disconnect event only on the first call for a live
// connection.
func (c *Client) teardown(reason events.DisconnectReason, message string) {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return
	}
	wasConnected := c.state == stateConnected
	conn := c.conn
	server := c.server
	c.state = stateClosed
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	if wasConnected {
		c.registry.DispatchClient(events.ServerDisconnectedEvent{
			Server:  server,
			Reason:  reason,
			Message: message,
		})
	}
}

func remoteHostPort(conn net.Conn) (net.IP, int) {
	if tcp, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return tcp.IP, tcp.Port
	}
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return nil, 0
	}
	return net.ParseIP(host), 0
}

// receiveLoop reads frames until the connection ends.
func (c *Client) receiveLoop(conn net.Conn) {
	for {
		payload, err := wire.ReadPayload(conn)
		if err != nil {
			c.debugf("Read failed: %v", err)
			c.teardown(events.ReasonUnknown, err.Error())
			return
		}

		if !c.handleFrame(payload) {
			return
		}
	}
}

// handleFrame reacts to one decoded frame and reports whether the
// loop should continue.
func (c *Client) handleFrame(payload *wire.Payload) bool {
	if !payload.IsControl() {
		c.mu.Lock()
		server := c.server
		c.mu.Unlock()

		c.registry.DispatchClient(events.ServerMessageEvent{
			Server:  server,
			Payload: payload,
		})
		return true
	}

	command := payload.Command()
	switch {
	case wire.EqualCommand(command, wire.CommandAccept):
		c.handleAccept(payload)
		return true
	case wire.EqualCommand(command, wire.CommandDecline):
		c.handleDecline(payload)
		return false
	case wire.EqualCommand(command, wire.CommandSuccess):
		c.handleSuccess(payload)
		return true
	case wire.EqualCommand(command, wire.CommandFailed):
		c.debugf("Server rejected %s: %s", payload.ArgumentData(), payload.Argument())
		return true
	case wire.EqualCommand(command, wire.CommandDisconnect):
		c.handleServerDisconnect(payload)
		return false
	default:
		c.debugf("Unhandled command from server: %s", command)
		return true
	}
}

// handleAccept completes the handshake: the server's identity is
// learned from the frame, queued payloads are flushed and observers
// are told.
func (c *Client) handleAccept(payload *wire.Payload) {
	c.mu.Lock()
	if c.state != stateAwaitingAccept {
		c.mu.Unlock()
		return
	}
	c.server = c.server.WithMAC(payload.MAC())
	c.state = stateConnected
	server := c.server
	handshake := c.handshake
	c.mu.Unlock()

	server.Flush()

	log.Printf("Connected to server %s (%s)", payload.Argument(), payload.MAC())
	c.registry.DispatchClient(events.ServerConnectedEvent{Server: server})

	select {
	case handshake <- nil:
	default:
	}
}

func (c *Client) handleDecline(payload *wire.Payload) {
	reason := payload.Argument()
	log.Printf("Server declined connection: %s", reason)

	c.mu.Lock()
	handshake := c.handshake
	c.mu.Unlock()

	select {
	case handshake <- fmt.Errorf("server declined connection: %s", reason):
	default:
	}
	c.teardown(events.ReasonUnknown, reason)
}

// handleSuccess applies confirmed commands; today that is the rename
// confirmation carrying the new display name.
func (c *Client) handleSuccess(payload *wire.Payload) {
	if !wire.EqualCommand(payload.Argument(), wire.CommandRename) {
		return
	}

	newName := payload.ArgumentData()
	if newName == "" {
		return
	}

	c.mu.Lock()
	c.name = newName
	c.mu.Unlock()
	c.debugf("Renamed to %s", newName)
}

// handleServerDisconnect classifies the server's notice so observers
// can tell a ban from a kick.
func (c *Client) handleServerDisconnect(payload *wire.Payload) {
	notice := payload.Argument()

	reason := events.ReasonKilledByServer
	if strings.Contains(strings.ToLower(notice), "banned") {
		reason = events.ReasonBanned
	}

	c.teardown(reason, notice)
}
