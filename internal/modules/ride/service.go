// README: Rider and driver ride queries (pending, eligible, current, history, stats, fare summary).
package ride

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carpool/internal/types"
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// CurrentRide is a ride with its fare resolved through the group when grouped.
type CurrentRide struct {
	Ride
	CoRiders      int     `json:"coRiders"`
	TotalFare     float64 `json:"totalFare"`
	PerPersonFare float64 `json:"perPersonFare"`
	Group         *Group  `json:"groupDetails,omitempty"`
}

type DriverStats struct {
	DriverID        types.ID `json:"driverId"`
	CompletedRides  int      `json:"completedRides"`
	CompletedGroups int      `json:"completedGroups"`
	Earnings        float64  `json:"earnings"`
}

type FareSummary struct {
	RideID        types.ID   `json:"rideId"`
	GroupID       types.ID   `json:"groupId"`
	Pickup        Location   `json:"pickupLocation"`
	Drop          Location   `json:"dropLocation"`
	Distance      string     `json:"distance"`
	Duration      string     `json:"duration"`
	TotalFare     float64    `json:"totalFare"`
	PerPersonFare float64    `json:"perPersonFare"`
	Riders        []types.ID `json:"riders"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func (s *Service) Pending(ctx context.Context) ([]*Ride, error) {
	return s.store.FindRides(ctx, RideFilter{Statuses: []Status{StatusRequested}})
}

// ForDrivers lists grouped rides still waiting for a driver.
func (s *Service) ForDrivers(ctx context.Context, caller Caller) ([]*Ride, error) {
	if err := caller.RequireDriver(); err != nil {
		return nil, err
	}
	return s.store.FindRides(ctx, RideFilter{Statuses: []Status{StatusMatched}, Unassigned: true})
}

// Current returns nil without error when the rider has never requested a ride.
func (s *Service) Current(ctx context.Context, caller Caller) (*CurrentRide, error) {
	r, err := s.store.FindRide(ctx, RideFilter{RiderID: caller.ID})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := &CurrentRide{Ride: *r, TotalFare: r.Fare, PerPersonFare: r.Fare}
	if r.GroupID == nil {
		return out, nil
	}
	g, err := s.store.GetGroup(ctx, *r.GroupID)
	if err != nil {
		return nil, fmt.Errorf("resolve group for ride %s: %w", r.ID, err)
	}
	out.Group = g
	out.CoRiders = len(g.RiderIDs) - 1
	out.TotalFare = g.TotalFare
	out.PerPersonFare = g.PerPersonFare
	return out, nil
}

func (s *Service) History(ctx context.Context, caller Caller) ([]*Ride, error) {
	return s.store.FindRides(ctx, RideFilter{RiderID: caller.ID, Statuses: []Status{StatusCompleted}})
}

// DriverStats sums earnings from the authoritative group fares.
func (s *Service) DriverStats(ctx context.Context, caller Caller) (*DriverStats, error) {
	if err := caller.RequireDriver(); err != nil {
		return nil, err
	}
	rides, err := s.store.FindRides(ctx, RideFilter{DriverID: caller.ID, Statuses: []Status{StatusCompleted}})
	if err != nil {
		return nil, err
	}
	groups, err := s.store.FindGroups(ctx, GroupFilter{DriverID: caller.ID, Statuses: []Status{StatusCompleted}})
	if err != nil {
		return nil, err
	}
	stats := &DriverStats{DriverID: caller.ID, CompletedRides: len(rides), CompletedGroups: len(groups)}
	for _, g := range groups {
		stats.Earnings += g.TotalFare
	}
	return stats, nil
}

// FareSummary joins the rider's latest completed ride to its group.
func (s *Service) FareSummary(ctx context.Context, caller Caller) (*FareSummary, error) {
	r, err := s.store.FindRide(ctx, RideFilter{RiderID: caller.ID, Statuses: []Status{StatusCompleted}})
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: no completed rides", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if r.GroupID == nil {
		return nil, fmt.Errorf("%w: ride %s has no group", ErrNotFound, r.ID)
	}
	g, err := s.store.GetGroup(ctx, *r.GroupID)
	if err != nil {
		return nil, err
	}
	return &FareSummary{
		RideID:        r.ID,
		GroupID:       g.ID,
		Pickup:        g.Pickup,
		Drop:          g.Drop,
		Distance:      g.DistanceLabel,
		Duration:      g.Duration,
		TotalFare:     g.TotalFare,
		PerPersonFare: g.PerPersonFare,
		Riders:        g.RiderIDs,
		CreatedAt:     r.CreatedAt,
	}, nil
}
