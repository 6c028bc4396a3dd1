package server

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/peerwire/peerwire/pkg/events"
	"github.com/peerwire/peerwire/pkg/remote"
	"github.com/peerwire/peerwire/pkg/wire"
)

// ErrClientNotFound reports a name or identity token that matches no
// connected client.
var ErrClientNotFound = fmt.Errorf("no connected client matches the target")

// Clients returns the currently connected clients.
func (s *Server) Clients() []*remote.Client {
	return s.table.snapshot()
}

// Broadcast delivers the payload to every connected client and returns
// the number of clients it reached. Transmission starts only after
// every frame read before the call has been handled.
func (s *Server) Broadcast(payload *wire.Payload) int {
	s.barrier.wait()

	delivered := 0
	for _, peer := range s.table.snapshot() {
		if peer.SendMessage(payload) {
			delivered++
		}
	}
	return delivered
}

// Redirect delivers the payload to every client whose display name or
// identity token equals target and returns the number reached. No
// match is not an error. Transmission starts only after every frame
// read before the call has been handled.
func (s *Server) Redirect(target string, payload *wire.Payload) int {
	s.barrier.wait()

	delivered := 0
	for _, peer := range s.table.matches(target) {
		if peer.SendMessage(payload) {
			delivered++
		}
	}
	return delivered
}

// Kick disconnects every client matching one of the display names or
// identity tokens. The clients are told why before their connections
// close. ErrClientNotFound is returned when nothing matched at all.
func (s *Server) Kick(targets ...string) error {
	kicked := 0
	for _, target := range targets {
		for _, peer := range s.table.matches(target) {
			s.expel(peer, events.ReasonKilledByServer, replyKickNotice)
			log.Printf("Kicked client %s (%s)", peer.Name(), peer.MAC())
			kicked++
		}
	}

	if kicked == 0 {
		return ErrClientNotFound
	}
	return nil
}

// Ban adds the identity tokens to the ban list and disconnects any
// matching connected clients. The peers' names are not consulted;
// bans bind to identity.
func (s *Server) Ban(macs ...string) error {
	s.bansMu.Lock()
	for _, mac := range macs {
		s.banned[mac] = struct{}{}
	}
	s.bansMu.Unlock()

	for _, mac := range macs {
		for _, peer := range s.table.matchesMAC(mac) {
			s.expel(peer, events.ReasonBanned, replyBanNotice)
			log.Printf("Banned client %s (%s)", peer.Name(), mac)
		}
	}

	return s.persistBans()
}

// Unban removes the identity tokens from the ban list. Already
// disconnected peers must reconnect on their own.
func (s *Server) Unban(macs ...string) error {
	s.bansMu.Lock()
	for _, mac := range macs {
		delete(s.banned, mac)
	}
	s.bansMu.Unlock()

	return s.persistBans()
}

// Banned returns the banned identity tokens in sorted order.
func (s *Server) Banned() []string {
	s.bansMu.RLock()
	macs := make([]string, 0, len(s.banned))
	for mac := range s.banned {
		macs = append(macs, mac)
	}
	s.bansMu.RUnlock()

	sort.Strings(macs)
	return macs
}

// ExportBans writes the ban list to a JSON file.
func (s *Server) ExportBans(path string) error {
	data, err := json.MarshalIndent(s.Banned(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// ImportBans merges the identity tokens from a JSON file into the ban
// list, disconnecting matching connected clients.
func (s *Server) ImportBans(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var macs []string
	if err := json.Unmarshal(data, &macs); err != nil {
		return fmt.Errorf("failed to parse ban list %s: %w", path, err)
	}
	return s.Ban(macs...)
}

// expel removes the peer, notifies it and closes its connection. The
// removal happens before the close so the read loop's teardown does
// not dispatch a second disconnect event.
func (s *Server) expel(peer *remote.Client, reason events.DisconnectReason, notice string) {
	s.table.remove(addrKeyOf(peer))
	s.notifyDisconnect(peer, notice)

	s.registry.DispatchServer(events.ClientDisconnectedEvent{
		Client:  peer,
		Server:  s.selfHandle(),
		Reason:  reason,
		Message: notice,
	})
}

// notifyDisconnect tells the peer it is being disconnected and closes
// the connection.
func (s *Server) notifyDisconnect(peer *remote.Client, notice string) {
	frame := wire.NewControl(s.mac, wire.CommandDisconnect, notice)
	peer.Send(frame)
	peer.Close()
}

// persistBans writes the current ban set to the configured store.
func (s *Server) persistBans() error {
	if s.config.Bans == nil {
		return nil
	}
	if err := s.config.Bans.Save(s.Banned()); err != nil {
		return fmt.Errorf("failed to persist ban list: %w", err)
	}
	return nil
}
