package transport

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/peerwire/peerwire/pkg/wire"
)

func echoOnce(t *testing.T, listener net.Listener) {
	t.Helper()
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		payload, err := wire.ReadPayload(conn)
		if err != nil {
			return
		}
		wire.WritePayload(conn, payload)
	}()
}

func roundTrip(t *testing.T, dialer Dialer, address string) {
	t.Helper()

	conn, err := dialer.Dial(address)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	sent := wire.NewPayload()
	sent.WriteText("probe", "ping")
	if err := wire.WritePayload(conn, sent); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	echoed, err := wire.ReadPayload(conn)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if probe, _ := echoed.GetText("probe"); probe != "ping" {
		t.Errorf("expected echoed probe, got %q", probe)
	}
}

func TestTCPRoundTrip(t *testing.T) {
	listener, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer listener.Close()

	echoOnce(t, listener)
	roundTrip(t, TCP{Timeout: 2 * time.Second}, listener.Addr().String())
}

func TestWebSocketRoundTrip(t *testing.T) {
	base, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := base.Addr().String()
	base.Close()

	listener, err := ListenWebSocket(addr)
	if err != nil {
		t.Fatalf("websocket listen failed: %v", err)
	}
	defer listener.Close()

	echoOnce(t, listener)
	roundTrip(t, WebSocket{Timeout: 2 * time.Second}, addr)
}

func TestWebSocketListenerClose(t *testing.T) {
	base, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := base.Addr().String()
	base.Close()

	listener, err := ListenWebSocket(addr)
	if err != nil {
		t.Fatalf("websocket listen failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := listener.Accept()
		done <- err
	}()

	listener.Close()
	select {
	case err := <-done:
		if err == nil {
			t.Error("expected accept to fail after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("accept did not return after close")
	}
}

func TestDialRefused(t *testing.T) {
	// Grab a port and release it so nothing is listening there.
	listener, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	_, err = TCP{Timeout: time.Second}.Dial(fmt.Sprintf("127.0.0.1:%d", port))
	if err == nil {
		t.Error("expected dialing a closed port to fail")
	}
}
