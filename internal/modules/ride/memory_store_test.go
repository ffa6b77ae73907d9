package ride

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"carpool/internal/types"
)

var baseTime = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func newRide(id, rider string, status Status, at time.Time) *Ride {
	return &Ride{
		ID:        types.ID(id),
		RiderID:   types.ID(rider),
		Pickup:    Location{Address: "Main St", Lat: 12.97, Lng: 77.59},
		Drop:      Location{Address: "Park Ave", Lat: 12.93, Lng: 77.62},
		Status:    status,
		CreatedAt: at,
	}
}

func TestMemoryStoreFindRideReturnsMostRecent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i, id := range []string{"r1", "r2", "r3"} {
		if err := s.CreateRide(ctx, newRide(id, fmt.Sprintf("u%d", i), StatusRequested, baseTime.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	r, err := s.FindRide(ctx, RideFilter{Statuses: []Status{StatusRequested}, PickupContains: "main"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if r.ID != "r3" {
		t.Fatalf("expected most recent r3, got %s", r.ID)
	}

	r, err = s.FindRide(ctx, RideFilter{Statuses: []Status{StatusRequested}, ExcludeRiderID: "u2"})
	if err != nil || r.ID != "r2" {
		t.Fatalf("expected r2 when excluding u2, got %v %v", r, err)
	}

	if _, err := s.FindRide(ctx, RideFilter{DropContains: "airport"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSameTimestampUsesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.CreateRide(ctx, newRide("first", "u1", StatusRequested, baseTime))
	_ = s.CreateRide(ctx, newRide("second", "u2", StatusRequested, baseTime))

	rides, _ := s.FindRides(ctx, RideFilter{})
	if len(rides) != 2 || rides[0].ID != "second" {
		t.Fatalf("expected newest insert first, got %+v", rides)
	}
}

func TestMemoryStoreTransitionRideIsConditional(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.CreateRide(ctx, newRide("r1", "u1", StatusRequested, baseTime))
	g := types.ID("g1")

	ok, err := s.TransitionRide(ctx, "r1", StatusRequested, StatusMatched, &g)
	if err != nil || !ok {
		t.Fatalf("expected first transition to succeed: %v %v", ok, err)
	}
	ok, _ = s.TransitionRide(ctx, "r1", StatusRequested, StatusMatched, &g)
	if ok {
		t.Fatalf("expected stale transition to fail")
	}
	ok, _ = s.TransitionRide(ctx, "missing", StatusRequested, StatusMatched, nil)
	if ok {
		t.Fatalf("expected missing ride transition to fail")
	}

	r, _ := s.GetRide(ctx, "r1")
	if r.Status != StatusMatched || r.GroupID == nil || *r.GroupID != "g1" {
		t.Fatalf("unexpected ride %+v", r)
	}
}

func TestMemoryStoreConcurrentClaimOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.CreateRide(ctx, newRide("r1", "u1", StatusRequested, baseTime))

	const attempts = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	wins := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			g := types.ID(fmt.Sprintf("g%d", i))
			ok, _ := s.TransitionRide(ctx, "r1", StatusRequested, StatusMatched, &g)
			wins <- ok
		}(i)
	}
	close(start)
	wg.Wait()
	close(wins)

	n := 0
	for ok := range wins {
		if ok {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", n)
	}
}

func TestMemoryStoreUpdateRides(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	g := types.ID("g1")
	for _, r := range []*Ride{
		newRide("a", "u1", StatusMatched, baseTime),
		newRide("b", "u2", StatusMatched, baseTime),
		newRide("c", "u3", StatusMatched, baseTime),
		newRide("d", "u1", StatusRequested, baseTime),
	} {
		if r.Status == StatusMatched && r.ID != "c" {
			r.GroupID = &g
		}
		_ = s.CreateRide(ctx, r)
	}

	driver := types.ID("d1")
	n, err := s.UpdateRides(ctx,
		RideFilter{RiderIDs: []types.ID{"u1", "u2"}, GroupID: g, Statuses: []Status{StatusMatched}},
		RidePatch{Status: StatusInProgress, DriverID: &driver})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rides updated, got %d", n)
	}
	for id, want := range map[types.ID]Status{"a": StatusInProgress, "b": StatusInProgress, "c": StatusMatched, "d": StatusRequested} {
		r, _ := s.GetRide(ctx, id)
		if r.Status != want {
			t.Fatalf("ride %s: status %s, want %s", id, r.Status, want)
		}
	}
	a, _ := s.GetRide(ctx, "a")
	if a.DriverID == nil || *a.DriverID != "d1" {
		t.Fatalf("expected driver set on ride a")
	}
}

func TestMemoryStoreAssignDriverOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.CreateGroup(ctx, &Group{ID: "g1", RiderIDs: []types.ID{"u1", "u2"}, Status: StatusMatched, TotalFare: 40, PerPersonFare: 20, CreatedAt: baseTime})

	ok, err := s.AssignDriver(ctx, "g1", "d1", 40, 20)
	if err != nil || !ok {
		t.Fatalf("expected assignment, got %v %v", ok, err)
	}
	if ok, _ := s.AssignDriver(ctx, "g1", "d2", 40, 20); ok {
		t.Fatalf("expected second assignment to fail")
	}
	g, _ := s.GetGroup(ctx, "g1")
	if g.Status != StatusInProgress || *g.DriverID != "d1" {
		t.Fatalf("unexpected group %+v", g)
	}

	groups, _ := s.FindGroups(ctx, GroupFilter{Statuses: []Status{StatusMatched}, Unassigned: true})
	if len(groups) != 0 {
		t.Fatalf("expected no unassigned groups, got %d", len(groups))
	}
}

func TestMemoryStoreWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.CreateRide(ctx, newRide("r1", "u1", StatusRequested, baseTime))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx Store) error {
		g := types.ID("g1")
		if _, err := tx.TransitionRide(ctx, "r1", StatusRequested, StatusMatched, &g); err != nil {
			return err
		}
		if err := tx.CreateGroup(ctx, &Group{ID: g, Status: StatusMatched}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	r, _ := s.GetRide(ctx, "r1")
	if r.Status != StatusRequested || r.GroupID != nil {
		t.Fatalf("expected rollback of ride, got %+v", r)
	}
	if _, err := s.GetGroup(ctx, "g1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected group rollback, got %v", err)
	}
}

func TestMemoryStoreWithTxCommitsAndNests(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	err := s.WithTx(ctx, func(tx Store) error {
		return tx.WithTx(ctx, func(inner Store) error {
			return inner.CreateRide(ctx, newRide("r1", "u1", StatusRequested, baseTime))
		})
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if _, err := s.GetRide(ctx, "r1"); err != nil {
		t.Fatalf("expected committed ride: %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.CreateGroup(ctx, &Group{ID: "g1", RiderIDs: []types.ID{"u1", "u2"}, Status: StatusMatched})

	g, _ := s.GetGroup(ctx, "g1")
	g.RiderIDs[0] = "mallory"
	g.Status = StatusCompleted

	again, _ := s.GetGroup(ctx, "g1")
	if again.RiderIDs[0] != "u1" || again.Status != StatusMatched {
		t.Fatalf("store state mutated through returned record: %+v", again)
	}
}
