package remote

import "sync"

// Queue holds compiled frames awaiting transmission because the
// transport was not yet ready or a write failed transiently. Entries
// leave the queue exactly once they are written; draining order is
// not guaranteed.
type Queue struct {
	mu     sync.Mutex
	frames [][]byte
}

// Add queues a compiled frame.
func (q *Queue) Add(compiled []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.frames = append(q.frames, compiled)
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Drain attempts to write every queued frame. Frames whose write
// succeeds are removed; the rest stay queued. It reports whether the
// queue is empty afterwards.
func (q *Queue) Drain(write func([]byte) error) bool {
	q.mu.Lock()
	frames := q.frames
	q.frames = nil
	q.mu.Unlock()

	var failed [][]byte
	for _, frame := range frames {
		if err := write(frame); err != nil {
			failed = append(failed, frame)
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.frames = append(q.frames, failed...)
	return len(q.frames) == 0
}
