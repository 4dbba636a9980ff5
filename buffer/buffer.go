// Package buffer provides a blocking bounded ring buffer built as a monitor
// on the lock and condition primitives. Transfers move byte by byte under the
// monitor lock, so reads and writes larger than the capacity interleave with
// the other side instead of failing.
package buffer

import (
	"fmt"

	"github.com/rs/zerolog"

	"liftsim/logger"
	"liftsim/sched"
	"liftsim/synch"
)

type Buffer struct {
	lock     *synch.Lock
	notEmpty *synch.Condition
	notFull  *synch.Condition
	log      zerolog.Logger
	data     []byte
	first    int
	length   int
}

func NewBuffer(name string, capacity int) *Buffer {
	if capacity <= 0 {
		panic(fmt.Sprintf("buffer: capacity %d, need at least 1", capacity))
	}
	return &Buffer{
		lock:     synch.NewLock(name + ".lock"),
		notEmpty: synch.NewCondition(name + ".notEmpty"),
		notFull:  synch.NewCondition(name + ".notFull"),
		log:      logger.Component(name),
		data:     make([]byte, capacity),
	}
}

// Write copies all of p into the buffer, blocking whenever it is full until
// a reader drains space.
func (b *Buffer) Write(t *sched.Thread, p []byte) {
	b.lock.Acquire(t)
	for _, c := range p {
		for b.length == len(b.data) {
			b.notFull.Wait(t, b.lock)
		}
		b.data[(b.first+b.length)%len(b.data)] = c
		b.length++
		b.notEmpty.Signal(t, b.lock)
	}
	b.lock.Release(t)
}

// Read fills all of p from the buffer, blocking whenever it is empty until a
// writer delivers more.
func (b *Buffer) Read(t *sched.Thread, p []byte) {
	b.lock.Acquire(t)
	for i := range p {
		for b.length == 0 {
			b.notEmpty.Wait(t, b.lock)
		}
		p[i] = b.data[b.first]
		b.first = (b.first + 1) % len(b.data)
		b.length--
		b.notFull.Signal(t, b.lock)
	}
	b.lock.Release(t)
}

// Len reports the bytes currently buffered.
func (b *Buffer) Len(t *sched.Thread) int {
	b.lock.Acquire(t)
	defer b.lock.Release(t)
	return b.length
}

// ShowState logs the buffer layout at debug level.
func (b *Buffer) ShowState(t *sched.Thread) {
	b.lock.Acquire(t)
	b.log.Debug().
		Int("first", b.first).
		Int("length", b.length).
		Int("capacity", len(b.data)).
		Msg("buffer state")
	b.lock.Release(t)
}
