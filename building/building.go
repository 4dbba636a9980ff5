// Package building implements the elevator dispatch engine: a Building holds
// the shared call board and owns a fixed set of Elevator cars that sweep
// floors, admit riders up to capacity, and park when idle. Riders drive the
// engine through CallUp/CallDown, AwaitUp/AwaitDown, Enter, RequestFloor and
// Exit, identifying themselves with a sched.Thread handle on every call.
package building

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"liftsim/gate"
	"liftsim/logger"
	"liftsim/sched"
	"liftsim/synch"
	"liftsim/timer"
)

// EVENT_CHANNEL_SIZE bounds the engine's event stream; emits drop when the
// consumer falls this far behind.
const EVENT_CHANNEL_SIZE = 256

// Building is the dispatch board shared by all cars: per-floor call flags,
// per-floor entry gates, the pending-request counter that keeps cars awake,
// and the record of which car last served each floor and direction. The
// Building owns every per-floor structure and every car.
type Building struct {
	name   string
	floors int
	cars   []*Elevator
	log    zerolog.Logger

	callMu     sync.Mutex
	upCalled   []bool
	downCalled []bool
	stopped    bool

	pendingMu sync.Mutex
	pending   int

	entryUp   []*gate.EventBarrier
	entryDown []*gate.EventBarrier

	upIDLock    *synch.Lock
	downIDLock  *synch.Lock
	lastUpCar   []int
	lastDownCar []int

	dispatchLock *synch.Lock
	dispatchCond *synch.Condition

	events chan Event
}

// New builds a Building with its cars. All per-floor state is allocated here;
// floors are numbered 1..floors and index 0 of every per-floor slice is
// unused.
func New(name string, floors, cars, capacity int, alarm *timer.Alarm) *Building {
	if floors < 2 {
		panic(fmt.Sprintf("building: %d floors, need at least 2", floors))
	}
	if cars < 1 || capacity < 1 {
		panic(fmt.Sprintf("building: need at least one car (%d) with capacity 1 (%d)", cars, capacity))
	}

	b := &Building{
		name:         name,
		floors:       floors,
		log:          logger.Component("building"),
		upCalled:     make([]bool, floors+1),
		downCalled:   make([]bool, floors+1),
		entryUp:      make([]*gate.EventBarrier, floors+1),
		entryDown:    make([]*gate.EventBarrier, floors+1),
		upIDLock:     synch.NewLock("upIDLock"),
		downIDLock:   synch.NewLock("downIDLock"),
		lastUpCar:    make([]int, floors+1),
		lastDownCar:  make([]int, floors+1),
		dispatchLock: synch.NewLock("dispatchLock"),
		dispatchCond: synch.NewCondition("dispatchCond"),
		events:       make(chan Event, EVENT_CHANNEL_SIZE),
	}
	for f := 1; f <= floors; f++ {
		b.entryUp[f] = gate.New()
		b.entryDown[f] = gate.New()
	}
	for id := 0; id < cars; id++ {
		b.cars = append(b.cars, newElevator(b, id, floors, capacity, alarm))
	}
	return b
}

func (b *Building) Name() string { return b.name }

func (b *Building) Floors() int { return b.floors }

func (b *Building) NumCars() int { return len(b.cars) }

// Car returns the car with the given id.
func (b *Building) Car(id int) *Elevator {
	if id < 0 || id >= len(b.cars) {
		panic(fmt.Sprintf("building: car %d out of range 0..%d", id, len(b.cars)-1))
	}
	return b.cars[id]
}

// Events exposes the engine's event stream. There should be one consumer.
func (b *Building) Events() <-chan Event {
	return b.events
}

// Start launches the operating loop of every car and stops the building when
// the context is cancelled.
func (b *Building) Start(ctx context.Context, wg *sync.WaitGroup) {
	for id := range b.cars {
		b.StartElevator(ctx, wg, id)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		b.Stop()
	}()
}

// StartElevator launches one car's operating loop.
func (b *Building) StartElevator(ctx context.Context, wg *sync.WaitGroup, id int) {
	e := b.Car(id)
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.operate(ctx)
	}()
}

// Stop wakes every parked car and lets the operating loops drain. Riders
// still blocked on gates are not released; shutdown is for the cars.
func (b *Building) Stop() {
	b.callMu.Lock()
	if b.stopped {
		b.callMu.Unlock()
		return
	}
	b.stopped = true
	b.callMu.Unlock()

	t := sched.NewThread("shutdown")
	b.dispatchLock.Acquire(t)
	b.dispatchCond.Broadcast(t, b.dispatchLock)
	b.dispatchLock.Release(t)
	b.log.Info().Msg("building stopped")
}

func (b *Building) stopping() bool {
	b.callMu.Lock()
	defer b.callMu.Unlock()
	return b.stopped
}

// CallUp registers an up request at the floor and wakes parked cars.
func (b *Building) CallUp(t *sched.Thread, floor int) {
	b.validFloor(floor)
	b.incPending()
	b.callMu.Lock()
	b.upCalled[floor] = true
	b.callMu.Unlock()

	b.log.Debug().Str("rider", t.Name()).Int("floor", floor).Msg("up call")
	b.emit(Event{Kind: CallPlaced, Car: -1, Floor: floor, Dir: Up, Rider: t.Name()})

	b.dispatchLock.Acquire(t)
	b.dispatchCond.Broadcast(t, b.dispatchLock)
	b.dispatchLock.Release(t)
}

// CallDown registers a down request at the floor and wakes parked cars.
func (b *Building) CallDown(t *sched.Thread, floor int) {
	b.validFloor(floor)
	b.incPending()
	b.callMu.Lock()
	b.downCalled[floor] = true
	b.callMu.Unlock()

	b.log.Debug().Str("rider", t.Name()).Int("floor", floor).Msg("down call")
	b.emit(Event{Kind: CallPlaced, Car: -1, Floor: floor, Dir: Down, Rider: t.Name()})

	b.dispatchLock.Acquire(t)
	b.dispatchCond.Broadcast(t, b.dispatchLock)
	b.dispatchLock.Release(t)
}

// AwaitUp blocks the rider at the floor's up entry gate until a car opens its
// doors there going up, then returns that car.
func (b *Building) AwaitUp(t *sched.Thread, floor int) *Elevator {
	b.validFloor(floor)
	b.entryUp[floor].Wait()
	b.upIDLock.Acquire(t)
	id := b.lastUpCar[floor]
	b.upIDLock.Release(t)
	return b.cars[id]
}

// AwaitDown blocks the rider at the floor's down entry gate until a car opens
// its doors there going down, then returns that car.
func (b *Building) AwaitDown(t *sched.Thread, floor int) *Elevator {
	b.validFloor(floor)
	b.entryDown[floor].Wait()
	b.downIDLock.Acquire(t)
	id := b.lastDownCar[floor]
	b.downIDLock.Release(t)
	return b.cars[id]
}

// PendingRequests reports the number of calls placed but not yet consumed by
// an Enter.
func (b *Building) PendingRequests() int {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	return b.pending
}

func (b *Building) incPending() {
	b.pendingMu.Lock()
	b.pending++
	b.pendingMu.Unlock()
}

// decPending consumes one pending request. Going negative means an Enter
// without a matching call, which is a broken caller contract.
func (b *Building) decPending() {
	b.pendingMu.Lock()
	b.pending--
	if b.pending < 0 {
		b.pendingMu.Unlock()
		panic("building: pending request counter went negative")
	}
	b.pendingMu.Unlock()
}

// recordCarAt notes which car is serving the floor in the given direction, so
// riders released from the entry gate know which car to board.
func (b *Building) recordCarAt(t *sched.Thread, floor int, dir Direction, carID int) {
	switch dir {
	case Up:
		b.upIDLock.Acquire(t)
		b.lastUpCar[floor] = carID
		b.upIDLock.Release(t)
	case Down:
		b.downIDLock.Acquire(t)
		b.lastDownCar[floor] = carID
		b.downIDLock.Release(t)
	}
}

func (b *Building) upCalledAt(floor int) bool {
	b.callMu.Lock()
	defer b.callMu.Unlock()
	return b.upCalled[floor]
}

func (b *Building) downCalledAt(floor int) bool {
	b.callMu.Lock()
	defer b.callMu.Unlock()
	return b.downCalled[floor]
}

func (b *Building) clearUpCall(floor int) {
	b.callMu.Lock()
	b.upCalled[floor] = false
	b.callMu.Unlock()
}

func (b *Building) clearDownCall(floor int) {
	b.callMu.Lock()
	b.downCalled[floor] = false
	b.callMu.Unlock()
}

func (b *Building) validFloor(floor int) {
	if floor < 1 || floor > b.floors {
		panic(fmt.Sprintf("building: floor %d out of range 1..%d", floor, b.floors))
	}
}

// emit publishes an event without ever blocking the engine.
func (b *Building) emit(ev Event) {
	select {
	case b.events <- ev:
	default:
	}
}
