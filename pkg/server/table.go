package server

import (
	"sync"

	"github.com/peerwire/peerwire/pkg/remote"
)

// table is the live connection registry. An authenticated connection
// is keyed by its transport address ("host/port") and indexed under
// its display name and identity token. Several connections may share
// one identity (many processes on one machine), so the name and
// identity indexes are multi-valued. All keys are mutated together
// under one lock, so a rename or removal can never leave a stale
// binding. The critical sections only touch the maps, never the
// network, so unrelated peers are not serialized on I/O.
type table struct {
	mu     sync.RWMutex
	byAddr map[string]*remote.Client
	byName map[string][]*remote.Client
	byMAC  map[string][]*remote.Client
}

func newTable() *table {
	return &table{
		byAddr: make(map[string]*remote.Client),
		byName: make(map[string][]*remote.Client),
		byMAC:  make(map[string][]*remote.Client),
	}
}

func addIndexed(m map[string][]*remote.Client, key string, peer *remote.Client) {
	m[key] = append(m[key], peer)
}

func dropIndexed(m map[string][]*remote.Client, key string, peer *remote.Client) {
	peers := m[key]
	for i, p := range peers {
		if p == peer {
			peers = append(peers[:i], peers[i+1:]...)
			break
		}
	}
	if len(peers) == 0 {
		delete(m, key)
		return
	}
	m[key] = peers
}

// register binds a freshly authenticated peer under all three keys.
func (t *table) register(addrKey string, peer *remote.Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byAddr[addrKey] = peer
	addIndexed(t.byName, peer.Name(), peer)
	addIndexed(t.byMAC, peer.MAC(), peer)
}

// registered reports whether the address key belongs to an
// authenticated peer.
func (t *table) registered(addrKey string) (*remote.Client, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	peer, ok := t.byAddr[addrKey]
	return peer, ok
}

// nameTaken reports whether newName already belongs to a peer with a
// different identity.
func (t *table) nameTaken(newName, mac string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, existing := range t.byName[newName] {
		if existing.MAC() != mac {
			return true
		}
	}
	return false
}

// rename rebinds the peer at addrKey under its new display name and
// returns the renamed handle. All three keys are updated in one
// critical section.
func (t *table) rename(addrKey, newName string) (*remote.Client, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	peer, ok := t.byAddr[addrKey]
	if !ok {
		return nil, false
	}

	renamed := peer.WithName(newName)
	t.byAddr[addrKey] = renamed
	dropIndexed(t.byName, peer.Name(), peer)
	addIndexed(t.byName, newName, renamed)
	dropIndexed(t.byMAC, peer.MAC(), peer)
	addIndexed(t.byMAC, renamed.MAC(), renamed)
	return renamed, true
}

// matches returns every peer whose display name or identity token
// equals target.
func (t *table) matches(target string) []*remote.Client {
	t.mu.RLock()
	defer t.mu.RUnlock()

	peers := append([]*remote.Client(nil), t.byName[target]...)
	for _, peer := range t.byMAC[target] {
		seen := false
		for _, p := range peers {
			if p == peer {
				seen = true
				break
			}
		}
		if !seen {
			peers = append(peers, peer)
		}
	}
	return peers
}

// matchesMAC returns every peer whose identity token equals mac. Names
// are not consulted.
func (t *table) matchesMAC(mac string) []*remote.Client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*remote.Client(nil), t.byMAC[mac]...)
}

// remove unbinds the peer at addrKey from every key and returns it.
func (t *table) remove(addrKey string) (*remote.Client, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	peer, ok := t.byAddr[addrKey]
	if !ok {
		return nil, false
	}

	delete(t.byAddr, addrKey)
	dropIndexed(t.byName, peer.Name(), peer)
	dropIndexed(t.byMAC, peer.MAC(), peer)
	return peer, true
}

// snapshot returns the currently registered peers.
func (t *table) snapshot() []*remote.Client {
	t.mu.RLock()
	defer t.mu.RUnlock()

	peers := make([]*remote.Client, 0, len(t.byAddr))
	for _, peer := range t.byAddr {
		peers = append(peers, peer)
	}
	return peers
}

// size returns the number of registered peers.
func (t *table) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byAddr)
}
