// Package transport supplies the duplex byte streams the engines run
// over: plain TCP, TLS, and WebSocket adapted to net.Conn.
package transport

import (
	"crypto/tls"
	"net"
	"time"
)

// Dialer opens an outbound duplex byte stream.
type Dialer interface {
	Dial(address string) (net.Conn, error)
}

// TCP dials plain TCP connections.
type TCP struct {
	Timeout time.Duration
}

// Dial connects to address.
func (d TCP) Dial(address string) (net.Conn, error) {
	return net.DialTimeout("tcp", address, d.Timeout)
}

// TLS dials TLS-wrapped TCP connections.
type TLS struct {
	Config  *tls.Config
	Timeout time.Duration
}

// Dial connects to address and runs the TLS handshake.
func (d TLS) Dial(address string) (net.Conn, error) {
	nd := &net.Dialer{Timeout: d.Timeout}
	return tls.DialWithDialer(nd, "tcp", address, d.Config)
}

// Listen binds a plain TCP listener on address.
func Listen(address string) (net.Listener, error) {
	return net.Listen("tcp", address)
}

// ListenTLS binds a TLS listener on address.
func ListenTLS(address string, config *tls.Config) (net.Listener, error) {
	return tls.Listen("tcp", address, config)
}
