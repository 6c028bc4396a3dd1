// Package remote provides immutable handles describing the peer on
// the other end of a live connection. A handle exposes the peer's
// identity and a send operation that frames and flushes one payload.
package remote

import (
	"net"
	"sync"

	"github.com/peerwire/peerwire/pkg/wire"
)

// link is the shared transmit side of one connection. Handles created
// for the same connection (for example before and after a rename)
// share the link so writes stay serialized and the pending queue
// survives the rename.
type link struct {
	conn    net.Conn
	mu      sync.Mutex
	pending Queue
}

// write sends one compiled frame. Writes to the same peer never
// interleave; distinct peers may be written concurrently.
func (l *link) write(compiled []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return wire.WriteFrame(l.conn, compiled)
}

// Client describes a client connected to a server.
type Client struct {
	name string
	mac  string
	host net.IP
	port int
	link *link
}

// NewClient creates a handle for a client reachable over conn.
func NewClient(name, mac string, host net.IP, port int, conn net.Conn) *Client {
	return &Client{
		name: name,
		mac:  mac,
		host: host,
		port: port,
		link: &link{conn: conn},
	}
}

// WithName returns a handle with a new display name bound to the same
// connection.
func (c *Client) WithName(name string) *Client {
	return &Client{
		name: name,
		mac:  c.mac,
		host: c.host,
		port: c.port,
		link: c.link,
	}
}

// Name returns the client's display name.
func (c *Client) Name() string { return c.name }

// MAC returns the client's stable identity token.
func (c *Client) MAC() string { return c.mac }

// Host returns the client's network address.
func (c *Client) Host() net.IP { return c.host }

// Port returns the client's transport port.
func (c *Client) Port() int { return c.port }

// SendMessage delivers a user payload to the client. The handle's MAC
// and a false COMMAND_ENABLED flag overwrite any routing fields in the
// payload; user fields are preserved. A failed write queues the
// compiled frame for retry and returns false.
func (c *Client) SendMessage(payload *wire.Payload) bool {
	return sendMessage(c.link, c.mac, payload)
}

// Send frames and writes the payload as-is, used for control frames.
func (c *Client) Send(payload *wire.Payload) bool {
	return send(c.link, payload)
}

// Flush retries every queued frame, dropping the ones that were
// written. It reports whether the queue is now empty.
func (c *Client) Flush() bool {
	return c.link.pending.Drain(c.link.write)
}

// Close terminates the underlying connection. The peer's read loop
// observes the closure.
func (c *Client) Close() error {
	return c.link.conn.Close()
}

// Server describes the server a client is connected to.
type Server struct {
	name string
	mac  string
	host net.IP
	port int
	link *link
}

// NewServer creates a handle for a server reachable over conn.
func NewServer(name, mac string, host net.IP, port int, conn net.Conn) *Server {
	return &Server{
		name: name,
		mac:  mac,
		host: host,
		port: port,
		link: &link{conn: conn},
	}
}

// WithMAC returns a handle with the server identity learned during
// the handshake, bound to the same connection.
func (s *Server) WithMAC(mac string) *Server {
	return &Server{
		name: s.name,
		mac:  mac,
		host: s.host,
		port: s.port,
		link: s.link,
	}
}

// Name returns the server's display name.
func (s *Server) Name() string { return s.name }

// MAC returns the server's stable identity token.
func (s *Server) MAC() string { return s.mac }

// Host returns the server's network address.
func (s *Server) Host() net.IP { return s.host }

// Port returns the server's transport port.
func (s *Server) Port() int { return s.port }

// SendMessage delivers a user payload to the server. Routing fields
// are overwritten as described on Client.SendMessage.
func (s *Server) SendMessage(payload *wire.Payload) bool {
	return sendMessage(s.link, s.mac, payload)
}

// Send frames and writes the payload as-is, used for control frames.
func (s *Server) Send(payload *wire.Payload) bool {
	return send(s.link, payload)
}

// Flush retries every queued frame, dropping the ones that were
// written. It reports whether the queue is now empty.
func (s *Server) Flush() bool {
	return s.link.pending.Drain(s.link.write)
}

// Queue compiles the payload as-is and holds it for a later Flush
// without attempting a write, used for control frames composed before
// the connection is ready.
func (s *Server) Queue(payload *wire.Payload) bool {
	compiled, err := payload.Compile()
	if err != nil {
		return false
	}
	s.link.pending.Add(compiled)
	return true
}

// Enqueue compiles the payload with the usual routing overwrite and
// queues it for a later Flush without attempting a write.
func (s *Server) Enqueue(payload *wire.Payload) bool {
	out := wire.NewPayloadMerging(payload, wire.MergeDifference)
	out.WriteText(wire.FieldMAC, s.mac)
	out.WriteBool(wire.FieldCommandEnabled, false)
	compiled, err := out.Compile()
	if err != nil {
		return false
	}
	s.link.pending.Add(compiled)
	return true
}

// Close terminates the underlying connection. The engine's read loop
// observes the closure.
func (s *Server) Close() error {
	return s.link.conn.Close()
}

func sendMessage(l *link, mac string, payload *wire.Payload) bool {
	out := wire.NewPayloadMerging(payload, wire.MergeDifference)
	out.WriteText(wire.FieldMAC, mac)
	out.WriteBool(wire.FieldCommandEnabled, false)
	return send(l, out)
}

func send(l *link, payload *wire.Payload) bool {
	compiled, err := payload.Compile()
	if err != nil {
		return false
	}
	if err := l.write(compiled); err != nil {
		l.pending.Add(compiled)
		return false
	}
	return true
}
