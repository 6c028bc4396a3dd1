package client

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/peerwire/peerwire/pkg/events"
	"github.com/peerwire/peerwire/pkg/identity"
	"github.com/peerwire/peerwire/pkg/wire"
)

const (
	stubServerMAC = "SV:FF:FF:FF:FF:01"
	stubClientMAC = "CL:00:00:00:00:01"
)

// pipeDialer hands the client a pre-made in-memory connection so tests
// can script the server side byte for byte.
type pipeDialer struct {
	conn net.Conn
}

func (d pipeDialer) Dial(string) (net.Conn, error) { return d.conn, nil }

func newPipeClient(t *testing.T, mutate func(*Config)) (*Client, net.Conn) {
	t.Helper()

	clientEnd, serverEnd := net.Pipe()
	config := DefaultConfig()
	config.Name = "pipe"
	config.Identity = identity.Static(stubClientMAC)
	config.Dialer = pipeDialer{conn: clientEnd}
	config.ConnectTimeout = 2 * time.Second
	if mutate != nil {
		mutate(config)
	}

	t.Cleanup(func() { serverEnd.Close() })
	return New(config), serverEnd
}

// expectFrame reads one frame from the stub side and fails the test on
// transport or decode errors.
func expectFrame(t *testing.T, conn net.Conn) *wire.Payload {
	t.Helper()
	payload, err := wire.ReadPayload(conn)
	if err != nil {
		t.Fatalf("stub failed to read a frame: %v", err)
	}
	return payload
}

func sendAccept(t *testing.T, conn net.Conn) {
	t.Helper()
	accept := wire.NewControl(stubServerMAC, wire.CommandAccept, "stub")
	if err := wire.WritePayload(conn, accept); err != nil {
		t.Fatalf("stub failed to send accept: %v", err)
	}
}

func connectViaStub(t *testing.T, c *Client, stub net.Conn) {
	t.Helper()

	result := make(chan error, 1)
	go func() { result <- c.Connect() }()

	hello := expectFrame(t, stub)
	if !wire.EqualCommand(hello.Command(), wire.CommandConnect) {
		t.Fatalf("expected a connect frame, got %q", hello.Command())
	}
	sendAccept(t, stub)

	if err := <-result; err != nil {
		t.Fatalf("connect failed: %v", err)
	}
}

func TestConnectHandshake(t *testing.T) {
	c, stub := newPipeClient(t, func(cfg *Config) {
		cfg.AccessKey = "sesame"
	})

	result := make(chan error, 1)
	go func() { result <- c.Connect() }()

	hello := expectFrame(t, stub)
	if !wire.EqualCommand(hello.Command(), wire.CommandConnect) {
		t.Fatalf("expected connect, got %q", hello.Command())
	}
	if hello.Argument() != "pipe" {
		t.Errorf("expected requested name pipe, got %q", hello.Argument())
	}
	if hello.MAC() != stubClientMAC {
		t.Errorf("expected client identity in the handshake, got %q", hello.MAC())
	}
	if key, _ := hello.GetText(wire.FieldAccessKey); key != "sesame" {
		t.Errorf("expected the access key on the wire, got %q", key)
	}

	sendAccept(t, stub)
	if err := <-result; err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	if !c.IsConnected() {
		t.Error("expected connected state after accept")
	}
	if got := c.Server().MAC(); got != stubServerMAC {
		t.Errorf("expected learned server identity %q, got %q", stubServerMAC, got)
	}

	if err := c.Connect(); err != ErrAlreadyConnected {
		t.Errorf("expected ErrAlreadyConnected, got %v", err)
	}
}

func TestConnectDeclined(t *testing.T) {
	c, stub := newPipeClient(t, nil)

	result := make(chan error, 1)
	go func() { result <- c.Connect() }()

	expectFrame(t, stub)
	decline := wire.NewControl(stubServerMAC, wire.CommandDecline, "You are banned from this server!")
	if err := wire.WritePayload(stub, decline); err != nil {
		t.Fatalf("stub failed to send decline: %v", err)
	}

	err := <-result
	if err == nil {
		t.Fatal("expected connect to fail on decline")
	}
	if !strings.Contains(err.Error(), "banned") {
		t.Errorf("expected the decline reason in the error, got %v", err)
	}
	if c.IsConnected() {
		t.Error("expected client to stay disconnected")
	}
}

func TestConnectTimeout(t *testing.T) {
	c, stub := newPipeClient(t, func(cfg *Config) {
		cfg.ConnectTimeout = 150 * time.Millisecond
	})

	result := make(chan error, 1)
	go func() { result <- c.Connect() }()

	// Swallow the handshake and go silent.
	expectFrame(t, stub)

	if err := <-result; !errors.Is(err, ErrHandshakeTimeout) {
		t.Fatalf("expected ErrHandshakeTimeout, got %v", err)
	}
}

func TestSendQueuesUntilAccept(t *testing.T) {
	c, stub := newPipeClient(t, nil)

	result := make(chan error, 1)
	go func() { result <- c.Connect() }()

	expectFrame(t, stub)

	// The handshake is still pending, so this must queue, not write.
	early := wire.NewPayload()
	early.WriteText("note", "wrote this before accept")
	if !c.Send(early) {
		t.Fatal("expected a pre-accept send to queue")
	}

	sendAccept(t, stub)

	flushed := expectFrame(t, stub)
	if note, _ := flushed.GetText("note"); note != "wrote this before accept" {
		t.Errorf("expected the queued payload to be flushed, got %q", note)
	}
	if flushed.IsControl() {
		t.Error("flushed payload must not be a control frame")
	}

	if err := <-result; err != nil {
		t.Fatalf("connect failed: %v", err)
	}
}

func TestRenameConfirmationUpdatesName(t *testing.T) {
	c, stub := newPipeClient(t, nil)
	connectViaStub(t, c, stub)

	done := make(chan error, 1)
	go func() { done <- c.Rename("renamed") }()

	request := expectFrame(t, stub)
	if !wire.EqualCommand(request.Command(), wire.CommandRename) {
		t.Fatalf("expected a rename frame, got %q", request.Command())
	}
	if request.Argument() != "renamed" {
		t.Errorf("expected requested name on the wire, got %q", request.Argument())
	}
	if err := <-done; err != nil {
		t.Fatalf("rename request failed: %v", err)
	}

	// The name must not change before the confirmation arrives.
	if got := c.Name(); got != "pipe" {
		t.Errorf("expected name to stay pipe before confirmation, got %q", got)
	}

	confirm := wire.NewControl(stubServerMAC, wire.CommandSuccess, wire.CommandRename)
	confirm.WriteText(wire.FieldArgumentData, "renamed")
	if err := wire.WritePayload(stub, confirm); err != nil {
		t.Fatalf("stub failed to send confirmation: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Name() == "renamed" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected name renamed, got %q", c.Name())
}

type disconnectRecorder struct {
	events.NoopClientListener
	got chan events.ServerDisconnectedEvent
}

func (l *disconnectRecorder) OnServerDisconnected(ev events.ServerDisconnectedEvent) {
	l.got <- ev
}

func TestServerDisconnectClassification(t *testing.T) {
	tests := []struct {
		name   string
		notice string
		want   events.DisconnectReason
	}{
		{"ban notice", "You have been banned from this server!", events.ReasonBanned},
		{"kick notice", "You have been kicked from this server!", events.ReasonKilledByServer},
		{"shutdown notice", "Server is shutting down", events.ReasonKilledByServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, stub := newPipeClient(t, nil)
			recorder := &disconnectRecorder{got: make(chan events.ServerDisconnectedEvent, 1)}
			c.Registry().Register(recorder)
			connectViaStub(t, c, stub)

			bye := wire.NewControl(stubServerMAC, wire.CommandDisconnect, tt.notice)
			if err := wire.WritePayload(stub, bye); err != nil {
				t.Fatalf("stub failed to send disconnect: %v", err)
			}

			select {
			case ev := <-recorder.got:
				if ev.Reason != tt.want {
					t.Errorf("expected reason %s, got %s", tt.want, ev.Reason)
				}
				if ev.Message != tt.notice {
					t.Errorf("expected notice %q, got %q", tt.notice, ev.Message)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for the disconnect event")
			}
		})
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c, stub := newPipeClient(t, nil)
	recorder := &disconnectRecorder{got: make(chan events.ServerDisconnectedEvent, 2)}
	c.Registry().Register(recorder)
	connectViaStub(t, c, stub)

	// Drain the goodbye frame so the close does not block on the pipe.
	go func() {
		if goodbye, err := wire.ReadPayload(stub); err == nil {
			_ = goodbye
		}
	}()

	if err := c.Close("bye"); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := c.Close("bye again"); err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	// Exactly one disconnect event for any number of Close calls.
	select {
	case <-recorder.got:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the disconnect event")
	}
	select {
	case <-recorder.got:
		t.Error("expected a single disconnect event")
	case <-time.After(100 * time.Millisecond):
	}

	if c.IsConnected() {
		t.Error("expected disconnected state after close")
	}
	if c.Send(wire.NewPayload()) {
		t.Error("expected send to fail after close")
	}
	if err := c.Connect(); err != ErrClosed {
		t.Errorf("expected ErrClosed on reconnect, got %v", err)
	}
}

func TestRelayedMessageReachesObservers(t *testing.T) {
	c, stub := newPipeClient(t, nil)
	messages := make(chan *wire.Payload, 1)
	c.Registry().Register(&messageRecorder{got: messages})
	connectViaStub(t, c, stub)

	relayed := wire.NewPayload()
	relayed.WriteText("from", "another peer")
	relayed.WriteText(wire.FieldMAC, stubClientMAC)
	relayed.WriteBool(wire.FieldCommandEnabled, false)
	if err := wire.WritePayload(stub, relayed); err != nil {
		t.Fatalf("stub failed to send payload: %v", err)
	}

	select {
	case got := <-messages:
		if from, _ := got.GetText("from"); from != "another peer" {
			t.Errorf("expected relayed payload, got %q", from)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the message event")
	}
}

type messageRecorder struct {
	events.NoopClientListener
	got chan *wire.Payload
}

func (l *messageRecorder) OnServerMessage(ev events.ServerMessageEvent) {
	l.got <- ev.Payload
}
