package server

import (
	"fmt"
	"log"
	"net"
	"strconv"

	"github.com/peerwire/peerwire/pkg/events"
	"github.com/peerwire/peerwire/pkg/remote"
	"github.com/peerwire/peerwire/pkg/wire"
)

// Rejection texts sent to peers. These travel on the wire, so they are
// part of the protocol surface.
const (
	replyBanned       = "You are banned from this server!"
	replyBadAccessKey = "The provided access key is not valid for this server!"
	replyNameTaken    = "A client with that name already exists!"
	replyNotConnected = "You are not connected to this server!"
	replyBanNotice    = "You have been banned from this server!"
	replyKickNotice   = "You have been kicked from this server!"
)

// addrKeyOf derives the table key for a registered peer.
func addrKeyOf(peer *remote.Client) string {
	return fmt.Sprintf("%s/%d", peer.Host(), peer.Port())
}

// splitRemoteAddr extracts host and port from a transport address.
func splitRemoteAddr(addr net.Addr) (net.IP, int) {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP, tcp.Port
	}
	host, portText, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil, 0
	}
	port, _ := strconv.Atoi(portText)
	return net.ParseIP(host), port
}

// selfHandle describes this server in dispatched events.
func (s *Server) selfHandle() *remote.Server {
	return remote.NewServer(s.config.Name, s.mac, net.ParseIP(s.config.Host), s.config.Port, nil)
}

// handleConnection drives the read loop for one accepted connection.
// Decode failures and transport errors tear the connection down.
// Events dispatch after the frame is marked handled, so an observer
// may call Broadcast or Redirect from its callback without deadlocking
// on the admission barrier.
func (s *Server) handleConnection(conn net.Conn) {
	host, port := splitRemoteAddr(conn.RemoteAddr())
	addrKey := fmt.Sprintf("%s/%d", host, port)

	s.debugf("Connection opened from %s", addrKey)

	defer func() {
		conn.Close()
		// An admin kick or ban removes the peer first, so this only
		// fires for transport-initiated departures.
		if peer, ok := s.table.remove(addrKey); ok {
			s.registry.DispatchServer(events.ClientDisconnectedEvent{
				Client: peer,
				Server: s.selfHandle(),
				Reason: events.ReasonUnknown,
			})
		}
		s.debugf("Connection closed from %s", addrKey)
	}()

	for {
		payload, err := wire.ReadPayload(conn)
		if err != nil {
			if !s.closing() {
				s.debugf("Read from %s failed: %v", addrKey, err)
			}
			return
		}

		s.barrier.begin()
		event, terminate := s.handleFrame(conn, addrKey, host, port, payload)
		s.barrier.done()

		if event != nil {
			s.registry.DispatchServer(event)
		}
		if terminate {
			return
		}
	}
}

// handleFrame applies one decoded frame to the connection state and
// returns the event to publish, if any, and whether the connection
// should end.
func (s *Server) handleFrame(conn net.Conn, addrKey string, host net.IP, port int, payload *wire.Payload) (events.ServerEvent, bool) {
	if !payload.IsControl() {
		return s.handleMessage(conn, addrKey, payload)
	}

	command := payload.Command()
	switch {
	case wire.EqualCommand(command, wire.CommandConnect):
		return s.handleConnect(conn, addrKey, host, port, payload)
	case wire.EqualCommand(command, wire.CommandRename):
		return s.handleRename(conn, addrKey, payload)
	case wire.EqualCommand(command, wire.CommandDisconnect):
		return s.handleDisconnect(conn, addrKey, payload)
	default:
		return s.handleCommand(conn, addrKey, command, payload)
	}
}

// rejectUnregistered tells an unauthenticated peer why its frame was
// dropped, naming the offending command so the rejection is machine
// checkable. The connection stays open; the peer may still send
// CONNECT afterward.
func (s *Server) rejectUnregistered(conn net.Conn, offending string) (events.ServerEvent, bool) {
	reply := wire.NewControl(s.mac, wire.CommandFailed, replyNotConnected)
	reply.WriteText(wire.FieldArgumentData, offending)
	wire.WritePayload(conn, reply)
	return nil, false
}

// handleConnect authenticates a peer. The ban list and the access key
// are checked independently so a banned peer is told it is banned even
// when its key is also wrong.
func (s *Server) handleConnect(conn net.Conn, addrKey string, host net.IP, port int, payload *wire.Payload) (events.ServerEvent, bool) {
	mac := payload.MAC()
	name := payload.Argument()

	// A repeated CONNECT from a registered peer (a handshake resend
	// that crossed the accept on the wire) just gets the accept again.
	if peer, ok := s.table.registered(addrKey); ok {
		accept := wire.NewControl(s.mac, wire.CommandAccept, s.config.Name)
		peer.Send(accept)
		return nil, false
	}

	decline := func(reason string) (events.ServerEvent, bool) {
		reply := wire.NewControl(s.mac, wire.CommandDecline, reason)
		candidate := remote.NewClient(name, mac, host, port, conn)
		candidate.Send(reply)
		log.Printf("Declined %s (%s): %s", name, mac, reason)
		return nil, true
	}

	if s.isBanned(mac) {
		return decline(replyBanned)
	}
	if s.config.AccessKey != "" {
		key, _ := payload.GetText(wire.FieldAccessKey)
		if key != s.config.AccessKey {
			return decline(replyBadAccessKey)
		}
	}
	if s.table.nameTaken(name, mac) {
		return decline(replyNameTaken)
	}

	peer := remote.NewClient(name, mac, host, port, conn)
	s.table.register(addrKey, peer)

	accept := wire.NewControl(s.mac, wire.CommandAccept, s.config.Name)
	peer.Send(accept)

	log.Printf("Client %s (%s) connected from %s", name, mac, addrKey)
	return events.ClientConnectedEvent{
		Client: peer,
		Server: s.selfHandle(),
	}, false
}

// handleRename rebinds the peer under a new display name. The peer
// keeps its old name when the new one belongs to a different identity.
func (s *Server) handleRename(conn net.Conn, addrKey string, payload *wire.Payload) (events.ServerEvent, bool) {
	peer, ok := s.table.registered(addrKey)
	if !ok {
		return s.rejectUnregistered(conn, wire.CommandRename)
	}

	newName := payload.Argument()
	if s.table.nameTaken(newName, peer.MAC()) {
		reply := wire.NewControl(s.mac, wire.CommandFailed, replyNameTaken)
		reply.WriteText(wire.FieldArgumentData, wire.CommandRename)
		peer.Send(reply)
		return nil, false
	}

	oldName := peer.Name()
	renamed, ok := s.table.rename(addrKey, newName)
	if !ok {
		return nil, true
	}

	reply := wire.NewControl(s.mac, wire.CommandSuccess, wire.CommandRename)
	reply.WriteText(wire.FieldArgumentData, newName)
	renamed.Send(reply)

	log.Printf("Client %s renamed to %s", oldName, newName)
	return events.ClientCommandEvent{
		Client:   renamed,
		Server:   s.selfHandle(),
		Command:  wire.CommandRename,
		Argument: newName,
	}, false
}

// handleDisconnect processes a voluntary departure.
func (s *Server) handleDisconnect(conn net.Conn, addrKey string, payload *wire.Payload) (events.ServerEvent, bool) {
	peer, ok := s.table.remove(addrKey)
	if !ok {
		return s.rejectUnregistered(conn, wire.CommandDisconnect)
	}

	log.Printf("Client %s disconnected: %s", peer.Name(), payload.Argument())
	return events.ClientDisconnectedEvent{
		Client:  peer,
		Server:  s.selfHandle(),
		Reason:  events.ReasonKilledByClient,
		Message: payload.Argument(),
	}, true
}

// handleCommand forwards an unrecognized control command to observers.
func (s *Server) handleCommand(conn net.Conn, addrKey, command string, payload *wire.Payload) (events.ServerEvent, bool) {
	peer, ok := s.table.registered(addrKey)
	if !ok {
		return s.rejectUnregistered(conn, command)
	}

	return events.ClientCommandEvent{
		Client:   peer,
		Server:   s.selfHandle(),
		Command:  command,
		Argument: payload.Argument(),
	}, false
}

// handleMessage forwards an accepted user payload to observers and
// acknowledges it.
func (s *Server) handleMessage(conn net.Conn, addrKey string, payload *wire.Payload) (events.ServerEvent, bool) {
	peer, ok := s.table.registered(addrKey)
	if !ok {
		return s.rejectUnregistered(conn, wire.CommandMessage)
	}

	reply := wire.NewControl(s.mac, wire.CommandSuccess, wire.CommandMessage)
	peer.Send(reply)

	return events.ClientMessageEvent{
		Client:  peer,
		Server:  s.selfHandle(),
		Payload: payload,
	}, false
}
