package sched

import (
	"testing"
	"time"
)

const TEST_DELAY = 100 * time.Millisecond

func TestSleepBlocksUntilReadyToRun(t *testing.T) {
	thread := NewThread("sleeper")
	woke := make(chan struct{})

	go func() {
		thread.Sleep()
		close(woke)
	}()

	select {
	case <-woke:
		t.Errorf("Sleep returned before ReadyToRun")
	case <-time.After(TEST_DELAY):
	}

	thread.ReadyToRun()

	select {
	case <-woke:
	case <-time.After(TEST_DELAY):
		t.Errorf("Sleep did not return after ReadyToRun")
	}
}

func TestWakeBeforeSleepIsNotLost(t *testing.T) {
	thread := NewThread("early")
	thread.ReadyToRun()

	woke := make(chan struct{})
	go func() {
		thread.Sleep()
		close(woke)
	}()

	select {
	case <-woke:
	case <-time.After(TEST_DELAY):
		t.Errorf("Sleep lost a wake delivered before it was called")
	}
}

func TestDoubleReadyToRunLeavesOneToken(t *testing.T) {
	thread := NewThread("twice")
	thread.ReadyToRun()
	thread.ReadyToRun()

	thread.Sleep()

	woke := make(chan struct{})
	go func() {
		thread.Sleep()
		close(woke)
	}()

	select {
	case <-woke:
		t.Errorf("second Sleep returned without a new wake; duplicate token stored")
	case <-time.After(TEST_DELAY):
	}
	thread.ReadyToRun()
	<-woke
}

func TestName(t *testing.T) {
	if got := NewThread("rider A").Name(); got != "rider A" {
		t.Errorf("Name() = %q, expected %q", got, "rider A")
	}
}
