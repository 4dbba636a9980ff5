// Package rider runs rider actors against a building: each rider calls a
// car, waits at the entry gate, boards if there is room, presses its
// destination and gets off. A rider turned away at a full car re-issues its
// call and tries again on a later pass.
package rider

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xyproto/randomstring"

	"liftsim/building"
	"liftsim/config"
	"liftsim/logger"
	"liftsim/sched"
)

const NAME_DEFAULT_LEN = 8

// Rider is one passenger. Its thread handle identifies it to the
// synchronization primitives for the whole journey.
type Rider struct {
	name     string
	thread   *sched.Thread
	building *building.Building
	log      zerolog.Logger
}

// New creates a rider for the building. An empty name gets a generated one.
func New(b *building.Building, name string) *Rider {
	if name == "" {
		name = randomstring.EnglishFrequencyString(NAME_DEFAULT_LEN)
	}
	return &Rider{
		name:     name,
		thread:   sched.NewThread(name),
		building: b,
		log:      logger.Component("rider").With().Str("rider", name).Logger(),
	}
}

func (r *Rider) Name() string {
	return r.name
}

// Ride travels from one floor to another: call, wait, board (retrying after
// capacity rejections), press the destination, ride, get off. It returns the
// car that carried the rider.
func (r *Rider) Ride(from, to int) (*building.Elevator, error) {
	if from == to {
		return nil, fmt.Errorf("rider: %s is already at floor %d", r.name, from)
	}
	dir := building.Down
	if to > from {
		dir = building.Up
	}
	r.log.Info().Int("from", from).Int("to", to).Msg("starting journey")

	var car *building.Elevator
	for attempt := 1; ; attempt++ {
		if dir == building.Up {
			r.building.CallUp(r.thread, from)
			car = r.building.AwaitUp(r.thread, from)
		} else {
			r.building.CallDown(r.thread, from)
			car = r.building.AwaitDown(r.thread, from)
		}
		if car.Enter(r.thread, from, dir) {
			break
		}
		r.log.Debug().Int("car", car.ID()).Int("attempt", attempt).Msg("car full, calling again")
	}

	r.log.Debug().Int("car", car.ID()).Int("floor", from).Msg("boarded")
	car.RequestFloor(r.thread, to)
	car.Exit(r.thread)
	r.log.Info().Int("car", car.ID()).Int("floor", to).Msg("journey done")
	return car, nil
}

// RunScript plays every scripted journey concurrently and blocks until all
// riders are off. The first failure is returned, later ones are dropped.
func RunScript(b *building.Building, rides []config.RideSpec) error {
	var wg sync.WaitGroup
	errCh := make(chan error, 1)
	for _, spec := range rides {
		spec := spec
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := New(b, spec.Name).Ride(spec.From, spec.To); err != nil {
				select {
				case errCh <- err:
				default:
				}
			}
		}()
	}
	wg.Wait()
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
