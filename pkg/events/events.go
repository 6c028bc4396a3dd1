// Package events defines the lifecycle and data events emitted by the
// client and server engines, and the registry that delivers them to
// observers.
package events

import (
	"github.com/peerwire/peerwire/pkg/remote"
	"github.com/peerwire/peerwire/pkg/wire"
)

// DisconnectReason classifies why a peer left.
type DisconnectReason uint8

const (
	ReasonUnknown DisconnectReason = iota
	ReasonBanned
	ReasonKilledByServer
	ReasonKilledByClient
)

// String returns the reason name.
func (r DisconnectReason) String() string {
	switch r {
	case ReasonBanned:
		return "BANNED"
	case ReasonKilledByServer:
		return "KILLED_BY_SERVER"
	case ReasonKilledByClient:
		return "KILLED_BY_CLIENT"
	default:
		return "UNKNOWN"
	}
}

// ServerEvent is implemented by every server-side event.
type ServerEvent interface{ serverEvent() }

// ClientEvent is implemented by every client-side event.
type ClientEvent interface{ clientEvent() }

// ClientConnectedEvent fires when a client completes the handshake.
type ClientConnectedEvent struct {
	Client *remote.Client
	Server *remote.Server
}

// ClientDisconnectedEvent fires when a registered client leaves.
type ClientDisconnectedEvent struct {
	Client  *remote.Client
	Server  *remote.Server
	Reason  DisconnectReason
	Message string
}

// ClientCommandEvent fires for every accepted control command that is
// not handled by the protocol itself.
type ClientCommandEvent struct {
	Client   *remote.Client
	Server   *remote.Server
	Command  string
	Argument string
}

// ClientMessageEvent fires for every accepted user payload.
type ClientMessageEvent struct {
	Client  *remote.Client
	Server  *remote.Server
	Payload *wire.Payload
}

func (ClientConnectedEvent) serverEvent()    {}
func (ClientDisconnectedEvent) serverEvent() {}
func (ClientCommandEvent) serverEvent()      {}
func (ClientMessageEvent) serverEvent()      {}

// ServerConnectedEvent fires when the server accepts the connection.
type ServerConnectedEvent struct {
	Server *remote.Server
}

// ServerDisconnectedEvent fires when the connection to the server ends.
type ServerDisconnectedEvent struct {
	Server  *remote.Server
	Reason  DisconnectReason
	Message string
}

// ServerMessageEvent fires for every user payload from the server.
// Client is non-nil when the server relayed another client's frame.
type ServerMessageEvent struct {
	Server  *remote.Server
	Client  *remote.Client
	Payload *wire.Payload
}

func (ServerConnectedEvent) clientEvent()    {}
func (ServerDisconnectedEvent) clientEvent() {}
func (ServerMessageEvent) clientEvent()      {}

// ServerListener observes server-side events. Embed NoopServerListener
// to implement only the methods you care about.
type ServerListener interface {
	OnClientConnected(ClientConnectedEvent)
	OnClientDisconnected(ClientDisconnectedEvent)
	OnClientCommand(ClientCommandEvent)
	OnClientMessage(ClientMessageEvent)
}

// ClientListener observes client-side events. Embed NoopClientListener
// to implement only the methods you care about.
type ClientListener interface {
	OnServerConnected(ServerConnectedEvent)
	OnServerDisconnected(ServerDisconnectedEvent)
	OnServerMessage(ServerMessageEvent)
}

// NoopServerListener is a ServerListener that ignores every event.
type NoopServerListener struct{}

func (NoopServerListener) OnClientConnected(ClientConnectedEvent)       {}
func (NoopServerListener) OnClientDisconnected(ClientDisconnectedEvent) {}
func (NoopServerListener) OnClientCommand(ClientCommandEvent)           {}
func (NoopServerListener) OnClientMessage(ClientMessageEvent)           {}

// NoopClientListener is a ClientListener that ignores every event.
type NoopClientListener struct{}

func (NoopClientListener) OnServerConnected(ServerConnectedEvent)       {}
func (NoopClientListener) OnServerDisconnected(ServerDisconnectedEvent) {}
func (NoopClientListener) OnServerMessage(ServerMessageEvent)           {}
