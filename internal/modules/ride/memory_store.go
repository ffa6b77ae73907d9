// README: In-memory Store with the same filter and conditional-update semantics as PGStore.
package ride

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"carpool/internal/types"
)

type memRide struct {
	ride Ride
	seq  int64
}

type memGroup struct {
	group Group
	seq   int64
}

type memState struct {
	rides  map[types.ID]memRide
	groups map[types.ID]memGroup
	seq    int64
	now    func() time.Time
}

func (m *memState) clone() *memState {
	c := &memState{
		rides:  make(map[types.ID]memRide, len(m.rides)),
		groups: make(map[types.ID]memGroup, len(m.groups)),
		seq:    m.seq,
		now:    m.now,
	}
	for k, v := range m.rides {
		c.rides[k] = v
	}
	for k, v := range m.groups {
		c.groups[k] = v
	}
	return c
}

// MemoryStore serializes every call; WithTx holds the lock for the whole unit of
// work and restores a snapshot when fn fails.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		rides:  make(map[types.ID]memRide),
		groups: make(map[types.ID]memGroup),
		now:    time.Now,
	}}
}

func (s *MemoryStore) CreateRide(ctx context.Context, r *Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CreateRide(ctx, r)
}

func (s *MemoryStore) GetRide(ctx context.Context, id types.ID) (*Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetRide(ctx, id)
}

func (s *MemoryStore) FindRide(ctx context.Context, f RideFilter) (*Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.FindRide(ctx, f)
}

func (s *MemoryStore) FindRides(ctx context.Context, f RideFilter) ([]*Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.FindRides(ctx, f)
}

func (s *MemoryStore) TransitionRide(ctx context.Context, id types.ID, from, to Status, groupID *types.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.TransitionRide(ctx, id, from, to, groupID)
}

func (s *MemoryStore) UpdateRides(ctx context.Context, f RideFilter, p RidePatch) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UpdateRides(ctx, f, p)
}

func (s *MemoryStore) CreateGroup(ctx context.Context, g *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CreateGroup(ctx, g)
}

func (s *MemoryStore) GetGroup(ctx context.Context, id types.ID) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetGroup(ctx, id)
}

func (s *MemoryStore) FindGroups(ctx context.Context, f GroupFilter) ([]*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.FindGroups(ctx, f)
}

func (s *MemoryStore) AssignDriver(ctx context.Context, id, driverID types.ID, totalFare, perPersonFare float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AssignDriver(ctx, id, driverID, totalFare, perPersonFare)
}

func (s *MemoryStore) TransitionGroup(ctx context.Context, id types.ID, from, to Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.TransitionGroup(ctx, id, from, to)
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.state.clone()
	if err := fn(memTx{s.state}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// memTx runs inside WithTx, where the store lock is already held.
type memTx struct {
	*memState
}

func (t memTx) WithTx(_ context.Context, fn func(Store) error) error {
	return fn(t)
}

func (m *memState) CreateRide(_ context.Context, r *Ride) error {
	if _, exists := m.rides[r.ID]; exists {
		return fmt.Errorf("%w: ride %s already exists", ErrConflict, r.ID)
	}
	m.seq++
	m.rides[r.ID] = memRide{ride: *r, seq: m.seq}
	return nil
}

func (m *memState) GetRide(_ context.Context, id types.ID) (*Ride, error) {
	row, ok := m.rides[id]
	if !ok {
		return nil, fmt.Errorf("%w: ride %s", ErrNotFound, id)
	}
	r := row.ride
	return &r, nil
}

func (m *memState) FindRide(ctx context.Context, f RideFilter) (*Ride, error) {
	f.Limit = 1
	rides, _ := m.FindRides(ctx, f)
	if len(rides) == 0 {
		return nil, fmt.Errorf("%w: no matching ride", ErrNotFound)
	}
	return rides[0], nil
}

func (m *memState) FindRides(_ context.Context, f RideFilter) ([]*Ride, error) {
	rows := make([]memRide, 0)
	for _, row := range m.rides {
		r := row.ride
		if f.Match(&r) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.ride.CreatedAt.Equal(b.ride.CreatedAt) {
			return a.ride.CreatedAt.After(b.ride.CreatedAt)
		}
		return a.seq > b.seq
	})
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	out := make([]*Ride, len(rows))
	for i := range rows {
		r := rows[i].ride
		out[i] = &r
	}
	return out, nil
}

func (m *memState) TransitionRide(_ context.Context, id types.ID, from, to Status, groupID *types.ID) (bool, error) {
	row, ok := m.rides[id]
	if !ok || row.ride.Status != from {
		return false, nil
	}
	row.ride.Status = to
	if groupID != nil {
		g := *groupID
		row.ride.GroupID = &g
	}
	m.rides[id] = row
	return true, nil
}

func (m *memState) UpdateRides(_ context.Context, f RideFilter, p RidePatch) (int64, error) {
	var n int64
	for id, row := range m.rides {
		if !f.Match(&row.ride) {
			continue
		}
		row.ride.Status = p.Status
		if p.DriverID != nil {
			d := *p.DriverID
			row.ride.DriverID = &d
		}
		m.rides[id] = row
		n++
	}
	return n, nil
}

func (m *memState) CreateGroup(_ context.Context, g *Group) error {
	if _, exists := m.groups[g.ID]; exists {
		return fmt.Errorf("%w: group %s already exists", ErrConflict, g.ID)
	}
	m.seq++
	m.groups[g.ID] = memGroup{group: *copyGroup(*g), seq: m.seq}
	return nil
}

func (m *memState) GetGroup(_ context.Context, id types.ID) (*Group, error) {
	row, ok := m.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: group %s", ErrNotFound, id)
	}
	return copyGroup(row.group), nil
}

func (m *memState) FindGroups(_ context.Context, f GroupFilter) ([]*Group, error) {
	rows := make([]memGroup, 0)
	for _, row := range m.groups {
		g := row.group
		if f.Match(&g) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.group.CreatedAt.Equal(b.group.CreatedAt) {
			return a.group.CreatedAt.After(b.group.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]*Group, len(rows))
	for i := range rows {
		out[i] = copyGroup(rows[i].group)
	}
	return out, nil
}

func (m *memState) AssignDriver(_ context.Context, id, driverID types.ID, totalFare, perPersonFare float64) (bool, error) {
	row, ok := m.groups[id]
	if !ok || row.group.Status != StatusMatched || row.group.DriverID != nil {
		return false, nil
	}
	d := driverID
	row.group.DriverID = &d
	row.group.Status = StatusInProgress
	row.group.TotalFare = totalFare
	row.group.PerPersonFare = perPersonFare
	row.group.UpdatedAt = m.now()
	m.groups[id] = row
	return true, nil
}

func (m *memState) TransitionGroup(_ context.Context, id types.ID, from, to Status) (bool, error) {
	row, ok := m.groups[id]
	if !ok || row.group.Status != from {
		return false, nil
	}
	row.group.Status = to
	row.group.UpdatedAt = m.now()
	m.groups[id] = row
	return true, nil
}

func copyGroup(g Group) *Group {
	g.RiderIDs = append([]types.ID(nil), g.RiderIDs...)
	return &g
}
