package building

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"
)

// boardView is the sweep-relevant state the estimator walks: one car's
// position plus the flags it could service. The walk assumes every stop
// serves its call, since simulated stops have no riders to clear flags.
type boardView struct {
	Floor      int
	Dir        Direction
	DestWanted []int
	UpCalled   []bool
	DownCalled []bool
}

func copyBoard[T bool | int](src []T) ([]T, error) {
	var dst []T
	if err := deepcopy.Copy(&dst, &src); err != nil {
		return nil, err
	}
	return dst, nil
}

// snapshotBoard freezes the car and call board. Each piece is copied under
// its own lock so the walk can mutate the view freely.
func (b *Building) snapshotBoard(carID int) (*boardView, error) {
	if carID < 0 || carID >= len(b.cars) {
		return nil, fmt.Errorf("building: no car %d", carID)
	}
	e := b.cars[carID]
	view := &boardView{}

	e.mu.Lock()
	view.Floor = e.floor
	view.Dir = e.dir
	dest, err := copyBoard(e.destWanted)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("building: snapshot car %d: %w", carID, err)
	}
	view.DestWanted = dest

	b.callMu.Lock()
	up, errUp := copyBoard(b.upCalled)
	down, errDown := copyBoard(b.downCalled)
	b.callMu.Unlock()
	if errUp != nil {
		return nil, fmt.Errorf("building: snapshot board: %w", errUp)
	}
	if errDown != nil {
		return nil, fmt.Errorf("building: snapshot board: %w", errDown)
	}
	view.UpCalled = up
	view.DownCalled = down
	return view, nil
}

// EstimateTicks predicts how many travel ticks pass before the car would open
// its doors at the floor sweeping in the given direction, assuming the call
// board freezes now plus the queried call. The walk mirrors the sweep: every
// flagged floor ahead, at most one opposite pickup from the far end, then the
// direction flips.
func (b *Building) EstimateTicks(carID, floor int, dir Direction) (int, error) {
	if floor < 1 || floor > b.floors {
		return 0, fmt.Errorf("building: floor %d out of range 1..%d", floor, b.floors)
	}
	view, err := b.snapshotBoard(carID)
	if err != nil {
		return 0, err
	}
	switch dir {
	case Up:
		view.UpCalled[floor] = true
	case Down:
		view.DownCalled[floor] = true
	default:
		return 0, fmt.Errorf("building: unknown direction %d", dir)
	}

	ticks := 0
	for pass := 0; pass < 2*b.floors+4; pass++ {
		var served bool
		var cost int
		if view.Dir == Up {
			served, cost = view.walkUp(floor, dir)
		} else {
			served, cost = view.walkDown(floor, dir)
		}
		ticks += cost
		if served {
			return ticks, nil
		}
	}
	return 0, fmt.Errorf("building: no route to floor %d %s for car %d", floor, dir, carID)
}

func distanceTicks(from, to int) int {
	d := to - from
	if d < 0 {
		d = -d
	}
	return TICKS_PER_FLOOR * d
}

func (v *boardView) walkUp(target int, want Direction) (bool, int) {
	ticks := 0
	top := len(v.UpCalled) - 1
	for f := v.Floor + 1; f <= top; f++ {
		if !v.UpCalled[f] && v.DestWanted[f] == 0 {
			continue
		}
		ticks += distanceTicks(v.Floor, f)
		v.Floor = f
		v.UpCalled[f] = false
		v.DestWanted[f] = 0
		if f == target && want == Up {
			return true, ticks
		}
		if v.remainingAbove(f) {
			continue
		}
		if v.DownCalled[f] {
			v.Dir = Down
			v.DownCalled[f] = false
			if f == target && want == Down {
				return true, ticks
			}
		}
		break
	}

	for f := top; f >= 1; f-- {
		if !v.DownCalled[f] {
			continue
		}
		ticks += distanceTicks(v.Floor, f)
		v.Floor = f
		v.Dir = Down
		v.DownCalled[f] = false
		v.DestWanted[f] = 0
		if f == target && want == Down {
			return true, ticks
		}
		break
	}

	v.Dir = Down
	return false, ticks
}

func (v *boardView) walkDown(target int, want Direction) (bool, int) {
	ticks := 0
	top := len(v.UpCalled) - 1
	for f := v.Floor - 1; f >= 1; f-- {
		if !v.DownCalled[f] && v.DestWanted[f] == 0 {
			continue
		}
		ticks += distanceTicks(v.Floor, f)
		v.Floor = f
		v.DownCalled[f] = false
		v.DestWanted[f] = 0
		if f == target && want == Down {
			return true, ticks
		}
		if v.remainingBelow(f) {
			continue
		}
		if v.UpCalled[f] {
			v.Dir = Up
			v.UpCalled[f] = false
			if f == target && want == Up {
				return true, ticks
			}
		}
		break
	}

	for f := 1; f <= top; f++ {
		if !v.UpCalled[f] {
			continue
		}
		ticks += distanceTicks(v.Floor, f)
		v.Floor = f
		v.Dir = Up
		v.UpCalled[f] = false
		v.DestWanted[f] = 0
		if f == target && want == Up {
			return true, ticks
		}
		break
	}

	v.Dir = Up
	return false, ticks
}

func (v *boardView) remainingAbove(floor int) bool {
	for f := floor + 1; f < len(v.UpCalled); f++ {
		if v.UpCalled[f] || v.DestWanted[f] > 0 {
			return true
		}
	}
	return false
}

func (v *boardView) remainingBelow(floor int) bool {
	for f := floor - 1; f >= 1; f-- {
		if v.DownCalled[f] || v.DestWanted[f] > 0 {
			return true
		}
	}
	return false
}
