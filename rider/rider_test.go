package rider

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"liftsim/building"
	"liftsim/config"
	"liftsim/timer"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func startBuilding(t *testing.T, floors, cars, capacity int) (*building.Building, func()) {
	t.Helper()
	b := building.New("test", floors, cars, capacity, timer.NewAlarm(0))
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	b.Start(ctx, &wg)
	return b, func() {
		cancel()
		wg.Wait()
	}
}

func TestNewGeneratesName(t *testing.T) {
	b := building.New("test", 3, 1, 2, timer.NewAlarm(0))
	r := New(b, "")
	if r.Name() == "" {
		t.Errorf("rider created without a name")
	}
	if named := New(b, "alice"); named.Name() != "alice" {
		t.Errorf("rider name %q, expected alice", named.Name())
	}
}

func TestRideSameFloorFails(t *testing.T) {
	b := building.New("test", 3, 1, 2, timer.NewAlarm(0))
	if _, err := New(b, "stuck").Ride(2, 2); err == nil {
		t.Errorf("Ride(2, 2) succeeded, expected an error")
	}
}

func TestSingleJourney(t *testing.T) {
	b, stop := startBuilding(t, 4, 1, 2)
	defer stop()

	done := make(chan error, 1)
	go func() {
		_, err := New(b, "solo").Ride(1, 4)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Ride: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("rider never finished the journey")
	}
	if occ := b.Car(0).Occupancy(); occ != 0 {
		t.Errorf("occupancy = %d after the rider left, expected 0", occ)
	}
}

func TestScriptWithCapacityPressure(t *testing.T) {
	b, stop := startBuilding(t, 5, 1, 1)
	defer stop()

	// Five riders through a one-seat car: at least one attempt per pass must
	// be rejected and retried, and all journeys still finish.
	rides := []config.RideSpec{
		{Name: "a", From: 1, To: 5},
		{Name: "b", From: 1, To: 3},
		{Name: "c", From: 2, To: 4},
		{Name: "d", From: 5, To: 1},
		{Name: "e", From: 4, To: 2},
	}

	done := make(chan error, 1)
	go func() {
		done <- RunScript(b, rides)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunScript: %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatalf("scripted riders never finished")
	}
	if n := b.PendingRequests(); n != 0 {
		t.Errorf("pendingRequests = %d after all journeys, expected 0", n)
	}
}
