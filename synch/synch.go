// Package synch implements counting semaphores, non-reentrant locks, and
// monitor-style condition variables with FIFO wake order. Callers identify
// themselves with a *sched.Thread handle on every blocking operation.
//
// Each primitive guards its own counter, flags, and wait queue with a small
// mutex; suspension happens outside that mutex through the thread handle, so
// a wake arriving early is held by the handle until the sleep catches up.
package synch

import (
	"fmt"
	"sync"

	"github.com/gammazero/deque"

	"liftsim/sched"
)

// Semaphore is a counting semaphore. The value never goes negative. Waiters
// are woken oldest first and loop back to re-check the value, so a wake is a
// hint to compete again, not a handoff.
type Semaphore struct {
	name    string
	mu      sync.Mutex
	value   int
	waiters deque.Deque[*sched.Thread]
}

func NewSemaphore(name string, value int) *Semaphore {
	if value < 0 {
		panic(fmt.Sprintf("synch: semaphore %s created with negative value %d", name, value))
	}
	return &Semaphore{name: name, value: value}
}

// P blocks t until the value is positive, then decrements it.
func (s *Semaphore) P(t *sched.Thread) {
	s.mu.Lock()
	for s.value == 0 {
		s.waiters.PushBack(t)
		s.mu.Unlock()
		t.Sleep()
		s.mu.Lock()
	}
	s.value--
	s.mu.Unlock()
}

// V increments the value and wakes the oldest waiter, if any.
func (s *Semaphore) V() {
	s.mu.Lock()
	if s.waiters.Len() > 0 {
		s.waiters.PopFront().ReadyToRun()
	}
	s.value++
	s.mu.Unlock()
}

// Value reports the current counter. It is a snapshot; another thread may
// change it before the caller acts on it.
func (s *Semaphore) Value() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Lock is a mutual-exclusion lock handed off in FIFO order. It is not
// reentrant: a thread acquiring a lock it already holds is a caller bug and
// panics, as is releasing a lock the caller does not hold.
type Lock struct {
	name    string
	mu      sync.Mutex
	locked  bool
	owner   *sched.Thread
	waiters deque.Deque[*sched.Thread]
}

func NewLock(name string) *Lock {
	return &Lock{name: name}
}

// Acquire blocks t until the lock is free, then records t as the owner.
func (l *Lock) Acquire(t *sched.Thread) {
	l.mu.Lock()
	if l.owner == t {
		l.mu.Unlock()
		panic(fmt.Sprintf("synch: lock %s acquired twice by %s", l.name, t.Name()))
	}
	for l.locked {
		l.waiters.PushBack(t)
		l.mu.Unlock()
		t.Sleep()
		l.mu.Lock()
	}
	l.locked = true
	l.owner = t
	l.mu.Unlock()
}

// Release clears ownership and wakes the oldest blocked acquirer, if any.
func (l *Lock) Release(t *sched.Thread) {
	l.mu.Lock()
	if l.owner != t {
		l.mu.Unlock()
		panic(fmt.Sprintf("synch: lock %s released by %s, which does not hold it", l.name, t.Name()))
	}
	l.locked = false
	l.owner = nil
	if l.waiters.Len() > 0 {
		l.waiters.PopFront().ReadyToRun()
	}
	l.mu.Unlock()
}

// HeldBy reports whether t currently owns the lock.
func (l *Lock) HeldBy(t *sched.Thread) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner == t
}

// Condition is a monitor condition variable with Mesa semantics: a returning
// Wait guarantees nothing about the predicate, so callers re-check in a loop.
// The condition binds to the first lock it is used with and panics if a later
// call passes a different one.
type Condition struct {
	name      string
	mu        sync.Mutex
	boundLock *Lock
	waiters   deque.Deque[*sched.Thread]
}

func NewCondition(name string) *Condition {
	return &Condition{name: name}
}

// bind is called with c.mu held.
func (c *Condition) bind(lock *Lock) {
	if c.boundLock == nil {
		c.boundLock = lock
		return
	}
	if c.boundLock != lock {
		panic(fmt.Sprintf("synch: condition %s used with lock %s after binding to %s",
			c.name, lock.name, c.boundLock.name))
	}
}

// Wait atomically enqueues t and releases lock, parks t until a signal, and
// reacquires lock before returning.
func (c *Condition) Wait(t *sched.Thread, lock *Lock) {
	if !lock.HeldBy(t) {
		panic(fmt.Sprintf("synch: condition %s Wait by %s without holding %s",
			c.name, t.Name(), lock.name))
	}
	c.mu.Lock()
	c.bind(lock)
	c.waiters.PushBack(t)
	c.mu.Unlock()

	lock.Release(t)
	t.Sleep()
	lock.Acquire(t)
}

// Signal wakes the oldest waiter, if any. The lock stays held by the caller.
func (c *Condition) Signal(t *sched.Thread, lock *Lock) {
	if !lock.HeldBy(t) {
		panic(fmt.Sprintf("synch: condition %s Signal by %s without holding %s",
			c.name, t.Name(), lock.name))
	}
	c.mu.Lock()
	c.bind(lock)
	if c.waiters.Len() > 0 {
		c.waiters.PopFront().ReadyToRun()
	}
	c.mu.Unlock()
}

// Broadcast wakes every thread currently waiting on the condition.
func (c *Condition) Broadcast(t *sched.Thread, lock *Lock) {
	if !lock.HeldBy(t) {
		panic(fmt.Sprintf("synch: condition %s Broadcast by %s without holding %s",
			c.name, t.Name(), lock.name))
	}
	c.mu.Lock()
	c.bind(lock)
	for c.waiters.Len() > 0 {
		c.waiters.PopFront().ReadyToRun()
	}
	c.mu.Unlock()
}
