// Package timer paces car travel. An Alarm converts abstract ticks into real
// time; a zero tick unit keeps the blocking point but sleeps nothing, which
// lets simulations run at full speed.
package timer

import (
	"time"

	"liftsim/sched"
)

type Alarm struct {
	tick time.Duration
}

func NewAlarm(tick time.Duration) *Alarm {
	return &Alarm{tick: tick}
}

// Pause blocks the caller for ticks tick units. With a zero tick unit it
// degrades to a yield so other threads still get the processor.
func (a *Alarm) Pause(ticks int) {
	if ticks <= 0 || a.tick <= 0 {
		sched.Yield()
		return
	}
	time.Sleep(time.Duration(ticks) * a.tick)
}

// Tick reports the configured tick unit.
func (a *Alarm) Tick() time.Duration {
	return a.tick
}
