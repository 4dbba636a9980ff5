package gate

import (
	"testing"
	"time"
)

const TEST_DELAY = 100 * time.Millisecond

func waitForWaiters(t *testing.T, b *EventBarrier, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.Waiters() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Waiters() stuck at %d, expected %d", b.Waiters(), want)
}

func TestWaitBlocksUntilSignal(t *testing.T) {
	barrier := New()
	released := make(chan struct{})

	go func() {
		barrier.Wait()
		close(released)
	}()
	waitForWaiters(t, barrier, 1)

	select {
	case <-released:
		t.Errorf("Wait returned before Signal")
	case <-time.After(TEST_DELAY):
	}

	barrier.Signal()
	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatalf("Wait did not return after Signal")
	}
}

func TestSignalReleasesAllCurrentWaiters(t *testing.T) {
	barrier := New()
	released := make(chan int, 3)

	for i := 0; i < 3; i++ {
		n := i
		go func() {
			barrier.Wait()
			released <- n
		}()
	}
	waitForWaiters(t, barrier, 3)

	barrier.Signal()
	for i := 0; i < 3; i++ {
		select {
		case <-released:
		case <-time.After(2 * time.Second):
			t.Fatalf("Signal released only %d of 3 waiters", i)
		}
	}
	if n := barrier.Waiters(); n != 0 {
		t.Errorf("Waiters() = %d after Signal, expected 0", n)
	}
}

func TestLateWaiterBlocksUntilNextSignal(t *testing.T) {
	barrier := New()
	barrier.Signal()

	released := make(chan struct{})
	go func() {
		barrier.Wait()
		close(released)
	}()
	waitForWaiters(t, barrier, 1)

	select {
	case <-released:
		t.Errorf("waiter arriving after a Signal fell through the gate")
	case <-time.After(TEST_DELAY):
	}

	barrier.Signal()
	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatalf("late waiter not released by the next Signal")
	}
}

func TestCompleteDrainsPending(t *testing.T) {
	barrier := New()
	released := make(chan struct{}, 2)

	for i := 0; i < 2; i++ {
		go func() {
			barrier.Wait()
			released <- struct{}{}
		}()
	}
	waitForWaiters(t, barrier, 2)

	barrier.Signal()
	<-released
	<-released

	if n := barrier.Pending(); n != 2 {
		t.Fatalf("Pending() = %d after releasing two waiters, expected 2", n)
	}
	barrier.Complete()
	barrier.Complete()
	if n := barrier.Pending(); n != 0 {
		t.Errorf("Pending() = %d after two Complete calls, expected 0", n)
	}
	barrier.Complete()
	if n := barrier.Pending(); n != 0 {
		t.Errorf("Pending() = %d after an extra Complete, expected 0", n)
	}
}
