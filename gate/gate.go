// Package gate provides the rendezvous barrier used for door handshakes:
// riders block in Wait, a car releases every current waiter with Signal, and
// each released rider acknowledges with Complete.
package gate

import "sync"

// EventBarrier releases all threads blocked in Wait when signaled; threads
// arriving after a signal wait for the next one. A generation counter keeps
// the two groups apart. Complete is a non-blocking acknowledgment, so the
// signaler never waits for the released side.
type EventBarrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	gen     uint64
	waiting int
	pending int
}

func New() *EventBarrier {
	b := &EventBarrier{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks the caller until the next Signal.
func (b *EventBarrier) Wait() {
	b.mu.Lock()
	gen := b.gen
	b.waiting++
	for gen == b.gen {
		b.cond.Wait()
	}
	b.mu.Unlock()
}

// Signal opens the gate for the current generation, releasing every thread
// blocked in Wait at this moment.
func (b *EventBarrier) Signal() {
	b.mu.Lock()
	b.gen++
	b.pending += b.waiting
	b.waiting = 0
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Complete acknowledges one released Wait.
func (b *EventBarrier) Complete() {
	b.mu.Lock()
	if b.pending > 0 {
		b.pending--
	}
	b.mu.Unlock()
}

// Waiters reports how many threads are blocked in Wait right now.
func (b *EventBarrier) Waiters() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.waiting
}

// Pending reports how many released waiters have not yet called Complete.
func (b *EventBarrier) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}
