package session

import "context"

// Ring is the bounded-buffer handoff of spec.md §4.6: a fixed-capacity
// ring of pending ConnectFrames, guarded by two counting semaphores
// (slotsFree, itemsReady) and one mutex around the head/tail pointers —
// the classic bounded-buffer producer/consumer protocol, with the
// acceptor as sole producer and the S session workers as consumers.
type Ring struct {
	buf        []ConnectFrame
	head, tail int
	mu         chan struct{} // binary semaphore guarding head/tail/buf
	slotsFree  chan struct{}
	itemsReady chan struct{}
}

// NewRing builds a Ring of capacity cap. cap must be >= 1 (it is
// MAX_SESSION_COUNT, spec.md §4.6).
func NewRing(cap int) *Ring {
	if cap < 1 {
		cap = 1
	}
	r := &Ring{
		buf:        make([]ConnectFrame, cap),
		mu:         make(chan struct{}, 1),
		slotsFree:  make(chan struct{}, cap),
		itemsReady: make(chan struct{}, cap),
	}
	r.mu <- struct{}{}
	for i := 0; i < cap; i++ {
		r.slotsFree <- struct{}{}
	}
	return r
}

// Enqueue adds f to the ring, blocking if it is full, or returning false
// if ctx is cancelled first. Only the acceptor calls this.
func (r *Ring) Enqueue(ctx context.Context, f ConnectFrame) bool {
	select {
	case <-r.slotsFree:
	case <-ctx.Done():
		return false
	}

	<-r.mu
	r.buf[r.tail] = f
	r.tail = (r.tail + 1) % len(r.buf)
	r.mu <- struct{}{}

	r.itemsReady <- struct{}{}
	return true
}

// Dequeue removes the oldest pending frame, blocking if the ring is
// empty, or returning false if ctx is cancelled first. Called by every
// session worker.
func (r *Ring) Dequeue(ctx context.Context) (ConnectFrame, bool) {
	select {
	case <-r.itemsReady:
	case <-ctx.Done():
		return ConnectFrame{}, false
	}

	<-r.mu
	f := r.buf[r.head]
	r.head = (r.head + 1) % len(r.buf)
	r.mu <- struct{}{}

	r.slotsFree <- struct{}{}
	return f, true
}
