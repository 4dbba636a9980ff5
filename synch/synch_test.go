package synch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"liftsim/sched"
)

const TEST_DELAY = 100 * time.Millisecond

func (s *Semaphore) queuedWaiters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters.Len()
}

func (s *Semaphore) currentValue() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (l *Lock) queuedWaiters() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waiters.Len()
}

func (c *Condition) queuedWaiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiters.Len()
}

func waitForCount(t *testing.T, count func() int, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if count() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("count stuck at %d, expected %d", count(), want)
}

func expectPanic(t *testing.T, op string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", op)
		}
	}()
	fn()
}

func TestSemaphorePBlocksOnlyAtZero(t *testing.T) {
	sem := NewSemaphore("pool", 2)
	first := sched.NewThread("first")

	sem.P(first)
	sem.P(first)
	if v := sem.currentValue(); v != 0 {
		t.Fatalf("value = %d after two P on initial 2, expected 0", v)
	}

	third := sched.NewThread("third")
	done := make(chan struct{})
	go func() {
		sem.P(third)
		close(done)
	}()

	select {
	case <-done:
		t.Errorf("P returned while value was 0")
	case <-time.After(TEST_DELAY):
	}

	sem.V()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("P did not return after V")
	}
	if v := sem.currentValue(); v != 0 {
		t.Errorf("value = %d after blocked P consumed the V, expected 0", v)
	}
}

func TestSemaphoreWakeOrderIsFIFO(t *testing.T) {
	sem := NewSemaphore("turnstile", 0)
	order := make(chan string, 3)

	for i, name := range []string{"A", "B", "C"} {
		thread := sched.NewThread(name)
		woken := name
		go func() {
			sem.P(thread)
			order <- woken
		}()
		waitForCount(t, sem.queuedWaiters, i+1)
	}

	for _, want := range []string{"A", "B", "C"} {
		sem.V()
		select {
		case got := <-order:
			if got != want {
				t.Errorf("V woke %s, expected %s", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no waiter woke after V, expected %s", want)
		}
	}
}

func TestSemaphoreBalancedPVRestoresValue(t *testing.T) {
	sem := NewSemaphore("soak", 1)
	var waitGroup sync.WaitGroup

	for i := 0; i < 8; i++ {
		waitGroup.Add(1)
		thread := sched.NewThread(fmt.Sprintf("worker%d", i))
		go func(th *sched.Thread) {
			defer waitGroup.Done()
			for j := 0; j < 200; j++ {
				sem.P(th)
				sem.V()
			}
		}(thread)
	}
	waitGroup.Wait()

	if v := sem.currentValue(); v != 1 {
		t.Errorf("value = %d after balanced P/V pairs, expected 1", v)
	}
	if n := sem.queuedWaiters(); n != 0 {
		t.Errorf("%d waiters left queued after all P/V pairs finished", n)
	}
}

func TestLockMutualExclusion(t *testing.T) {
	lock := NewLock("guard")
	inside := false
	violated := false
	var waitGroup sync.WaitGroup

	for i := 0; i < 6; i++ {
		waitGroup.Add(1)
		thread := sched.NewThread(fmt.Sprintf("thread%d", i))
		go func(th *sched.Thread) {
			defer waitGroup.Done()
			for j := 0; j < 100; j++ {
				lock.Acquire(th)
				if inside {
					violated = true
				}
				inside = true
				sched.Yield()
				inside = false
				lock.Release(th)
			}
		}(thread)
	}
	waitGroup.Wait()

	if violated {
		t.Errorf("two threads were inside the critical section at once")
	}
}

func TestLockHandoffIsFIFO(t *testing.T) {
	lock := NewLock("door")
	owner := sched.NewThread("owner")
	lock.Acquire(owner)

	order := make(chan string, 2)
	for i, name := range []string{"B", "C"} {
		thread := sched.NewThread(name)
		woken := name
		go func() {
			lock.Acquire(thread)
			order <- woken
			lock.Release(thread)
		}()
		waitForCount(t, lock.queuedWaiters, i+1)
	}

	lock.Release(owner)
	for _, want := range []string{"B", "C"} {
		select {
		case got := <-order:
			if got != want {
				t.Errorf("lock handed to %s, expected %s", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("lock never reached %s", want)
		}
	}
}

func TestLockSelfReacquirePanics(t *testing.T) {
	lock := NewLock("once")
	thread := sched.NewThread("greedy")
	lock.Acquire(thread)
	expectPanic(t, "Acquire by the current owner", func() { lock.Acquire(thread) })
}

func TestLockReleaseByNonOwnerPanics(t *testing.T) {
	lock := NewLock("strict")
	owner := sched.NewThread("owner")
	stranger := sched.NewThread("stranger")
	lock.Acquire(owner)
	expectPanic(t, "Release by a non-owner", func() { lock.Release(stranger) })
	expectPanic(t, "Release of an unheld lock", func() {
		free := NewLock("free")
		free.Release(stranger)
	})
}

func TestLockHeldBy(t *testing.T) {
	lock := NewLock("query")
	a := sched.NewThread("a")
	b := sched.NewThread("b")

	if lock.HeldBy(a) {
		t.Errorf("HeldBy(a) = true on a fresh lock")
	}
	lock.Acquire(a)
	if !lock.HeldBy(a) {
		t.Errorf("HeldBy(a) = false while a holds the lock")
	}
	if lock.HeldBy(b) {
		t.Errorf("HeldBy(b) = true while a holds the lock")
	}
	lock.Release(a)
	if lock.HeldBy(a) {
		t.Errorf("HeldBy(a) = true after release")
	}
}

func TestConditionWaitReleasesAndReacquires(t *testing.T) {
	lock := NewLock("monitor")
	cond := NewCondition("ready")
	waiter := sched.NewThread("waiter")
	signaler := sched.NewThread("signaler")

	ready := false
	done := make(chan struct{})
	go func() {
		lock.Acquire(waiter)
		for !ready {
			cond.Wait(waiter, lock)
		}
		if !lock.HeldBy(waiter) {
			t.Errorf("Wait returned without holding the bound lock")
		}
		lock.Release(waiter)
		close(done)
	}()

	waitForCount(t, cond.queuedWaiters, 1)

	// Acquire succeeding here proves Wait released the lock.
	lock.Acquire(signaler)
	ready = true
	cond.Signal(signaler, lock)
	lock.Release(signaler)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("waiter never resumed after Signal")
	}
}

func TestConditionSignalWakesOldestOnly(t *testing.T) {
	lock := NewLock("monitor")
	cond := NewCondition("queue")
	woke := make(chan string, 2)

	for i, name := range []string{"A", "B"} {
		thread := sched.NewThread(name)
		woken := name
		go func() {
			lock.Acquire(thread)
			cond.Wait(thread, lock)
			woke <- woken
			lock.Release(thread)
		}()
		waitForCount(t, cond.queuedWaiters, i+1)
	}

	signaler := sched.NewThread("signaler")
	lock.Acquire(signaler)
	cond.Signal(signaler, lock)
	lock.Release(signaler)

	select {
	case got := <-woke:
		if got != "A" {
			t.Errorf("Signal woke %s, expected the oldest waiter A", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Signal woke nobody")
	}

	select {
	case got := <-woke:
		t.Errorf("single Signal woke a second waiter %s", got)
	case <-time.After(TEST_DELAY):
	}

	lock.Acquire(signaler)
	cond.Signal(signaler, lock)
	lock.Release(signaler)
	select {
	case got := <-woke:
		if got != "B" {
			t.Errorf("second Signal woke %s, expected B", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("second Signal woke nobody")
	}
}

func TestConditionBroadcastWakesAll(t *testing.T) {
	lock := NewLock("monitor")
	cond := NewCondition("all")
	woke := make(chan string, 3)

	for i, name := range []string{"A", "B", "C"} {
		thread := sched.NewThread(name)
		woken := name
		go func() {
			lock.Acquire(thread)
			cond.Wait(thread, lock)
			woke <- woken
			lock.Release(thread)
		}()
		waitForCount(t, cond.queuedWaiters, i+1)
	}

	caller := sched.NewThread("caller")
	lock.Acquire(caller)
	cond.Broadcast(caller, lock)
	lock.Release(caller)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case got := <-woke:
			seen[got] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("Broadcast woke only %d of 3 waiters", i)
		}
	}
	for _, name := range []string{"A", "B", "C"} {
		if !seen[name] {
			t.Errorf("Broadcast never woke %s", name)
		}
	}
}

func TestConditionBindsToFirstLock(t *testing.T) {
	first := NewLock("first")
	second := NewLock("second")
	cond := NewCondition("bound")
	thread := sched.NewThread("caller")

	first.Acquire(thread)
	cond.Signal(thread, first)
	first.Release(thread)

	second.Acquire(thread)
	expectPanic(t, "Signal with a second lock", func() { cond.Signal(thread, second) })
}

func TestConditionWaitWithoutHoldingPanics(t *testing.T) {
	lock := NewLock("monitor")
	cond := NewCondition("orphan")
	thread := sched.NewThread("caller")
	expectPanic(t, "Wait without holding the lock", func() { cond.Wait(thread, lock) })
}
