package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// ErrListenerClosed is returned by Accept after the listener closes.
var ErrListenerClosed = errors.New("websocket listener closed")

// WebSocket dials WebSocket connections and adapts them to net.Conn,
// so browser-reachable endpoints plug into the same engines.
type WebSocket struct {
	Timeout time.Duration
}

// Dial connects to ws://address/ and wraps the connection.
func (d WebSocket) Dial(address string) (net.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.Timeout}
	ws, _, err := dialer.Dial("ws://"+address+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return &wsConn{ws: ws}, nil
}

// ListenWebSocket serves a WebSocket upgrade endpoint on address and
// exposes accepted connections through the net.Listener interface.
func ListenWebSocket(address string) (net.Listener, error) {
	inner, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	l := &wsListener{
		inner:  inner,
		conns:  make(chan net.Conn, 8),
		closed: make(chan struct{}),
	}

	upgrader := websocket.Upgrader{
		// The engines authenticate peers themselves.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case l.conns <- &wsConn{ws: ws}:
		case <-l.closed:
			ws.Close()
		}
	})

	l.server = &http.Server{Handler: mux}
	go l.server.Serve(inner)

	return l, nil
}

type wsListener struct {
	inner  net.Listener
	server *http.Server
	conns  chan net.Conn
	closed chan struct{}
}

func (l *wsListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.closed:
		return nil, ErrListenerClosed
	}
}

func (l *wsListener) Close() error {
	select {
	case <-l.closed:
		return nil
	default:
	}
	close(l.closed)
	l.server.Close()
	return l.inner.Close()
}

func (l *wsListener) Addr() net.Addr {
	return l.inner.Addr()
}

// wsConn adapts a websocket connection to net.Conn. Each Write sends
// one binary message; Read consumes messages as a byte stream.
type wsConn struct {
	ws     *websocket.Conn
	reader io.Reader
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			msgType, r, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}
			if msgType != websocket.BinaryMessage {
				continue
			}
			c.reader = r
		}

		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

func (c *wsConn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
