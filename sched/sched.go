// Package sched provides cooperative thread handles. The synchronization
// primitives cannot ask the runtime which goroutine is calling, so every
// blocking operation takes a *Thread identifying its caller, the way the
// caller of a task library hands in its own task handle.
package sched

import "runtime"

// Thread identifies one cooperating goroutine. The ready channel carries a
// single wake token; the buffer keeps a wake delivered before the matching
// Sleep from being lost.
type Thread struct {
	name  string
	ready chan struct{}
}

func NewThread(name string) *Thread {
	return &Thread{
		name:  name,
		ready: make(chan struct{}, 1),
	}
}

func (t *Thread) Name() string {
	return t.name
}

// Sleep parks the thread until some other goroutine calls ReadyToRun on it.
// A thread is enqueued on at most one wait queue at a time, so one token
// channel is enough: each Sleep consumes the token of exactly one wake.
func (t *Thread) Sleep() {
	<-t.ready
}

// ReadyToRun marks a sleeping thread runnable. Safe to call before the
// thread reaches Sleep; the token waits in the buffer.
func (t *Thread) ReadyToRun() {
	select {
	case t.ready <- struct{}{}:
	default:
	}
}

// Yield hands the processor to another runnable goroutine.
func Yield() {
	runtime.Gosched()
}
