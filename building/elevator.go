package building

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"liftsim/gate"
	"liftsim/logger"
	"liftsim/sched"
	"liftsim/timer"
)

// Direction of travel. A car is always sweeping one way or the other; a
// parked car keeps its last direction.
type Direction int

const (
	Down Direction = iota
	Up
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// TICKS_PER_FLOOR is the travel cost charged per floor of distance.
const TICKS_PER_FLOOR = 10

// Elevator is one car: a position, a sweep direction, an occupancy count,
// the destination buttons pressed inside, and one exit gate per floor for
// the handshake with riders getting off. Cars are created and owned by their
// Building and hold only a back-reference to it.
type Elevator struct {
	id       int
	capacity int
	floors   int
	building *Building
	alarm    *timer.Alarm
	thread   *sched.Thread
	log      zerolog.Logger

	mu         sync.Mutex
	floor      int
	dir        Direction
	occupancy  int
	destWanted []int

	exitGates []*gate.EventBarrier
}

func newElevator(b *Building, id, floors, capacity int, alarm *timer.Alarm) *Elevator {
	e := &Elevator{
		id:         id,
		capacity:   capacity,
		floors:     floors,
		building:   b,
		alarm:      alarm,
		thread:     sched.NewThread(fmt.Sprintf("car-%d", id)),
		log:        logger.Component(fmt.Sprintf("car-%d", id)),
		floor:      1,
		dir:        Down,
		destWanted: make([]int, floors+1),
		exitGates:  make([]*gate.EventBarrier, floors+1),
	}
	for f := 1; f <= floors; f++ {
		e.exitGates[f] = gate.New()
	}
	return e
}

func (e *Elevator) ID() int { return e.id }

func (e *Elevator) Capacity() int { return e.capacity }

func (e *Elevator) Floor() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.floor
}

func (e *Elevator) Direction() Direction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dir
}

func (e *Elevator) Occupancy() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.occupancy
}

func (e *Elevator) setDirection(d Direction) {
	e.mu.Lock()
	e.dir = d
	e.mu.Unlock()
}

func (e *Elevator) destWantedAt(floor int) bool {
	return e.destWantedCount(floor) > 0
}

func (e *Elevator) destWantedCount(floor int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destWanted[floor]
}

// RequestFloor marks the rider's destination inside the car and blocks the
// rider until the car opens its doors there. The press is a counter, not a
// flag: it stays on the board until this rider is actually released, so a
// stop that arrives between the press and the gate wait cannot swallow it.
func (e *Elevator) RequestFloor(t *sched.Thread, floor int) {
	e.building.validFloor(floor)
	e.mu.Lock()
	e.destWanted[floor]++
	e.mu.Unlock()
	e.log.Debug().Str("rider", t.Name()).Int("floor", floor).Msg("destination pressed")

	e.exitGates[floor].Wait()

	e.mu.Lock()
	e.destWanted[floor]--
	e.mu.Unlock()
}

// Enter admits the calling rider if there is room. The rider names the stop
// it was released for — the floor it waited at and the direction of the gate
// that opened — because the car may already have moved on or flipped by the
// time this runs; the live position would clear the wrong flag. The rider's
// pending request is consumed either way, and the serviced stop's call flag
// is cleared either way, so the board never keeps a request that this stop
// has dealt with. A turned-away rider re-issues its call and is picked up on
// a later pass; the unconditional direction flip at the end of every pass
// guarantees the revisit.
func (e *Elevator) Enter(t *sched.Thread, floor int, dir Direction) bool {
	b := e.building
	b.validFloor(floor)
	b.decPending()

	e.mu.Lock()
	admitted := e.occupancy < e.capacity
	if admitted {
		e.occupancy++
	}
	e.mu.Unlock()

	switch dir {
	case Up:
		b.clearUpCall(floor)
		b.entryUp[floor].Complete()
	case Down:
		b.clearDownCall(floor)
		b.entryDown[floor].Complete()
	}

	if admitted {
		e.log.Debug().Str("rider", t.Name()).Int("floor", floor).Msg("rider entered")
		b.emit(Event{Kind: RiderAdmitted, Car: e.id, Floor: floor, Dir: dir, Rider: t.Name()})
		return true
	}

	e.log.Debug().Str("rider", t.Name()).Int("floor", floor).Msg("car full, rider turned away")
	b.emit(Event{Kind: RiderRejected, Car: e.id, Floor: floor, Dir: dir, Rider: t.Name()})
	sched.Yield()
	return false
}

// Exit is called by a boarded rider at its destination. It completes the
// floor's exit gate so the car's door handshake can settle.
func (e *Elevator) Exit(t *sched.Thread) {
	e.mu.Lock()
	if e.occupancy == 0 {
		e.mu.Unlock()
		panic(fmt.Sprintf("building: rider %s exiting car %d while it is empty", t.Name(), e.id))
	}
	e.occupancy--
	floor := e.floor
	e.mu.Unlock()

	e.log.Debug().Str("rider", t.Name()).Int("floor", floor).Msg("rider exited")
	e.building.emit(Event{Kind: RiderExited, Car: e.id, Floor: floor, Rider: t.Name()})
	e.exitGates[floor].Complete()
}

// operate runs the car until the context is cancelled or the building stops.
// Each turn of the loop is one full pass in the current direction followed by
// a park check.
func (e *Elevator) operate(ctx context.Context) {
	e.log.Info().Int("floor", e.Floor()).Msg("car in service")
	for {
		if ctx.Err() != nil || e.building.stopping() {
			e.log.Info().Msg("car out of service")
			return
		}
		if e.Direction() == Up {
			e.sweepUp()
		} else {
			e.sweepDown()
		}
		// A car with riders aboard cannot park; boarded riders may not have
		// pressed yet, so give them the processor before the next pass.
		sched.Yield()
		if !e.parkUntilWork() {
			e.log.Info().Msg("car out of service")
			return
		}
	}
}

// sweepUp visits every floor above the car with an up-call or destination,
// then fetches at most one down-caller from the highest flagged floor so
// downward riders are not starved by a busy upward run. The direction flips
// at the end of the pass no matter what.
func (e *Elevator) sweepUp() {
	b := e.building
	for f := e.Floor() + 1; f <= e.floors; f++ {
		if !b.upCalledAt(f) && !e.destWantedAt(f) {
			continue
		}
		e.visitFloor(f)
		e.openDoors()
		if e.requestsAbove(f) {
			e.closeDoors()
			continue
		}
		// Nothing left above; riders here wanting down can board right away.
		if b.downCalledAt(f) && b.entryDown[f].Waiters() > 0 {
			e.setDirection(Down)
			b.clearDownCall(f)
			b.entryDown[f].Signal()
		}
		e.closeDoors()
		break
	}

	for f := e.floors; f >= 1; f-- {
		if !b.downCalledAt(f) {
			continue
		}
		e.visitFloor(f)
		e.setDirection(Down)
		e.openDoors()
		e.closeDoors()
		break
	}

	e.setDirection(Down)
}

// sweepDown mirrors sweepUp toward the ground floor.
func (e *Elevator) sweepDown() {
	b := e.building
	for f := e.Floor() - 1; f >= 1; f-- {
		if !b.downCalledAt(f) && !e.destWantedAt(f) {
			continue
		}
		e.visitFloor(f)
		e.openDoors()
		if e.requestsBelow(f) {
			e.closeDoors()
			continue
		}
		if b.upCalledAt(f) && b.entryUp[f].Waiters() > 0 {
			e.setDirection(Up)
			b.clearUpCall(f)
			b.entryUp[f].Signal()
		}
		e.closeDoors()
		break
	}

	for f := 1; f <= e.floors; f++ {
		if !b.upCalledAt(f) {
			continue
		}
		e.visitFloor(f)
		e.setDirection(Up)
		e.openDoors()
		e.closeDoors()
		break
	}

	e.setDirection(Up)
}

// requestsAbove reports whether any up-call or destination remains strictly
// above the given floor.
func (e *Elevator) requestsAbove(floor int) bool {
	for f := floor + 1; f <= e.floors; f++ {
		if e.building.upCalledAt(f) || e.destWantedAt(f) {
			return true
		}
	}
	return false
}

// requestsBelow reports whether any down-call or destination remains strictly
// below the given floor.
func (e *Elevator) requestsBelow(floor int) bool {
	for f := floor - 1; f >= 1; f-- {
		if e.building.downCalledAt(f) || e.destWantedAt(f) {
			return true
		}
	}
	return false
}

// visitFloor travels to the floor, charging TICKS_PER_FLOOR per floor of
// distance. Destination presses stay on the board; they come off when the
// riders who made them are released at the stop.
func (e *Elevator) visitFloor(floor int) {
	e.mu.Lock()
	from := e.floor
	e.mu.Unlock()

	e.alarm.Pause(distanceTicks(from, floor))

	e.mu.Lock()
	e.floor = floor
	dir := e.dir
	e.mu.Unlock()

	e.log.Debug().Int("floor", floor).Str("dir", dir.String()).Msg("car arrived")
	e.building.emit(Event{Kind: CarArrived, Car: e.id, Floor: floor, Dir: dir})
}

// openDoors releases the exit gate for riders getting off, announces this car
// as the one serving the stop, and releases the entry gate matching the sweep
// direction for riders getting on.
func (e *Elevator) openDoors() {
	b := e.building
	e.mu.Lock()
	floor, dir := e.floor, e.dir
	e.mu.Unlock()

	// A press and its gate wait are separate steps, so the gate can trail
	// the counter. Hold the stop open until every rider who pressed this
	// floor is on the gate, then release them together. Every presser is
	// aboard and headed for the gate, so the wait is bounded.
	for {
		pressed := e.destWantedCount(floor)
		if pressed == 0 {
			break
		}
		if e.exitGates[floor].Waiters() < pressed {
			sched.Yield()
			continue
		}
		e.exitGates[floor].Signal()
		break
	}

	b.recordCarAt(e.thread, floor, dir, e.id)

	if dir == Up && b.entryUp[floor].Waiters() > 0 {
		b.entryUp[floor].Signal()
	}
	if dir == Down && b.entryDown[floor].Waiters() > 0 {
		b.entryDown[floor].Signal()
	}

	e.log.Debug().Int("floor", floor).Str("dir", dir.String()).Msg("doors open")
	b.emit(Event{Kind: DoorsOpened, Car: e.id, Floor: floor, Dir: dir})
}

// closeDoors yields once before the sweep moves on, giving riders who just
// boarded the chance to press their destinations.
func (e *Elevator) closeDoors() {
	sched.Yield()
	e.mu.Lock()
	floor, dir := e.floor, e.dir
	e.mu.Unlock()
	e.log.Debug().Int("floor", floor).Msg("doors closed")
	e.building.emit(Event{Kind: DoorsClosed, Car: e.id, Floor: floor, Dir: dir})
}

// parkUntilWork blocks the car on the dispatch condition while the building
// has no pending requests and the car is empty. Returns false when the
// building is shutting down.
func (e *Elevator) parkUntilWork() bool {
	b := e.building
	parked := false
	b.dispatchLock.Acquire(e.thread)
	for b.PendingRequests() == 0 && e.Occupancy() == 0 && !b.stopping() {
		if !parked {
			parked = true
			e.log.Debug().Int("floor", e.Floor()).Msg("no calls and empty, parking")
			b.emit(Event{Kind: CarParked, Car: e.id, Floor: e.Floor()})
		}
		b.dispatchCond.Wait(e.thread, b.dispatchLock)
	}
	b.dispatchLock.Release(e.thread)

	if b.stopping() {
		return false
	}
	if parked {
		e.log.Debug().Msg("dispatch call, car waking")
		b.emit(Event{Kind: CarWoke, Car: e.id, Floor: e.Floor()})
	}
	return true
}
