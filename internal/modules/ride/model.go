// README: Ride and RideGroup records, status definitions and the caller capability.
package ride

import (
	"fmt"
	"time"

	"carpool/internal/types"
)

type Status string

const (
	StatusRequested  Status = "requested"
	StatusMatched    Status = "matched"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// AllowedTransitions is the linear ride/group flow; there is no regression or cancellation.
var AllowedTransitions = map[Status][]Status{
	StatusRequested:  {StatusMatched},
	StatusMatched:    {StatusInProgress},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

type Location struct {
	Address string  `json:"address"`
	Lat     float64 `json:"latitude"`
	Lng     float64 `json:"longitude"`
}

func (l Location) Point() types.Point {
	return types.Point{Lat: l.Lat, Lng: l.Lng}
}

// Ride is one rider's trip. A requested ride never has a group; once grouped the
// authoritative fare lives on the Group and Fare keeps the solo estimate.
type Ride struct {
	ID        types.ID  `json:"id"`
	RiderID   types.ID  `json:"rider"`
	Pickup    Location  `json:"pickupLocation"`
	Drop      Location  `json:"dropLocation"`
	Status    Status    `json:"status"`
	DriverID  *types.ID `json:"driver"`
	Distance  *float64  `json:"distance"`
	Duration  *string   `json:"duration"`
	Fare      float64   `json:"fare"`
	GroupID   *types.ID `json:"group"`
	CreatedAt time.Time `json:"createdAt"`
}

// Group is a shared-vehicle assignment. PerPersonFare * len(RiderIDs) >= TotalFare.
type Group struct {
	ID            types.ID   `json:"id"`
	RiderIDs      []types.ID `json:"riders"`
	DriverID      *types.ID  `json:"driver"`
	Pickup        Location   `json:"pickupLocation"`
	Drop          Location   `json:"dropLocation"`
	Status        Status     `json:"status"`
	Distance      float64    `json:"distanceMeters"`
	DistanceLabel string     `json:"distance"`
	Duration      string     `json:"duration"`
	TotalFare     float64    `json:"totalFare"`
	PerPersonFare float64    `json:"perPersonFare"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (g *Group) HasRider(id types.ID) bool {
	for _, r := range g.RiderIDs {
		if r == id {
			return true
		}
	}
	return false
}

// Caller is the authenticated identity passed explicitly into each operation.
type Caller struct {
	ID   types.ID
	Role types.Role
}

func (c Caller) RequireDriver() error {
	if c.Role != types.RoleDriver {
		return fmt.Errorf("%w: driver role required", ErrForbidden)
	}
	return nil
}

func (c Caller) RequireRider() error {
	if c.Role != types.RoleRider {
		return fmt.Errorf("%w: rider role required", ErrForbidden)
	}
	return nil
}
