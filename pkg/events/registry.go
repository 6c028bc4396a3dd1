package events

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Handle identifies one registration. Registering the same observer
// twice yields two handles that deliver independently.
type Handle = uuid.UUID

// Registry is a table of observers. Engines dispatch events through
// it; observers register listeners implementing ClientListener,
// ServerListener or both. A Registry instance is safe for concurrent
// use, and multiple independent registries may coexist in one process.
type Registry struct {
	mu        sync.RWMutex
	listeners map[Handle]any
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{listeners: make(map[Handle]any)}
}

// Register adds an observer and returns its registration handle.
func (r *Registry) Register(listener any) Handle {
	handle := uuid.New()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[handle] = listener

	return handle
}

// Unregister removes the registration identified by handle.
func (r *Registry) Unregister(handle Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listeners, handle)
}

// DispatchServer delivers a server-side event to every registered
// observer implementing ServerListener, exactly once per handle. A
// panicking observer is isolated and logged; the rest still receive
// the event.
func (r *Registry) DispatchServer(event ServerEvent) {
	for _, listener := range r.snapshot() {
		l, ok := listener.(ServerListener)
		if !ok {
			continue
		}
		deliver(func() {
			switch ev := event.(type) {
			case ClientConnectedEvent:
				l.OnClientConnected(ev)
			case ClientDisconnectedEvent:
				l.OnClientDisconnected(ev)
			case ClientCommandEvent:
				l.OnClientCommand(ev)
			case ClientMessageEvent:
				l.OnClientMessage(ev)
			}
		})
	}
}

// DispatchClient delivers a client-side event to every registered
// observer implementing ClientListener, exactly once per handle.
func (r *Registry) DispatchClient(event ClientEvent) {
	for _, listener := range r.snapshot() {
		l, ok := listener.(ClientListener)
		if !ok {
			continue
		}
		deliver(func() {
			switch ev := event.(type) {
			case ServerConnectedEvent:
				l.OnServerConnected(ev)
			case ServerDisconnectedEvent:
				l.OnServerDisconnected(ev)
			case ServerMessageEvent:
				l.OnServerMessage(ev)
			}
		})
	}
}

func (r *Registry) snapshot() []any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]any, 0, len(r.listeners))
	for _, l := range r.listeners {
		out = append(out, l)
	}
	return out
}

func deliver(call func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Listener panicked during dispatch: %v", rec)
		}
	}()
	call()
}
