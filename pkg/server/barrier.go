package server

import "sync"

// barrier orders administrative sends behind inbound traffic: a
// broadcast or redirect issued at time T only begins transmitting
// once every frame read strictly before T has been handled. Callers
// block on a condition variable, never spin.
type barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	read    uint64
	handled uint64
}

func newBarrier() *barrier {
	b := &barrier{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// begin records that one frame has been read off a connection.
func (b *barrier) begin() {
	b.mu.Lock()
	b.read++
	b.mu.Unlock()
}

// done records that one frame has been fully handled.
func (b *barrier) done() {
	b.mu.Lock()
	b.handled++
	b.mu.Unlock()
	b.cond.Broadcast()
}

// wait blocks until every frame read before the call has been handled.
func (b *barrier) wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	target := b.read
	for b.handled < target {
		b.cond.Wait()
	}
}

// handledCount returns the number of frames handled so far.
func (b *barrier) handledCount() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handled
}
