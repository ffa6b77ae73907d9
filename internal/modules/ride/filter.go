// README: Query filters and patches shared by the Postgres and in-memory stores.
package ride

import (
	"strings"

	"carpool/internal/types"
)

// RideFilter fields combine with AND; zero values do not constrain.
type RideFilter struct {
	Statuses       []Status
	RiderID        types.ID
	ExcludeRiderID types.ID
	RiderIDs       []types.ID
	DriverID       types.ID
	GroupID        types.ID
	Unassigned     bool
	// PickupContains and DropContains are case-insensitive substring tests on the stored address.
	PickupContains string
	DropContains   string
	Limit          int
}

// RidePatch is applied by UpdateRides; a nil DriverID leaves the driver unchanged.
type RidePatch struct {
	Status   Status
	DriverID *types.ID
}

type GroupFilter struct {
	Statuses   []Status
	DriverID   types.ID
	Unassigned bool
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func hasStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func hasID(list []types.ID, id types.ID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func (f RideFilter) Match(r *Ride) bool {
	if len(f.Statuses) > 0 && !hasStatus(f.Statuses, r.Status) {
		return false
	}
	if f.RiderID != "" && r.RiderID != f.RiderID {
		return false
	}
	if f.ExcludeRiderID != "" && r.RiderID == f.ExcludeRiderID {
		return false
	}
	if f.RiderIDs != nil && !hasID(f.RiderIDs, r.RiderID) {
		return false
	}
	if f.DriverID != "" && (r.DriverID == nil || *r.DriverID != f.DriverID) {
		return false
	}
	if f.GroupID != "" && (r.GroupID == nil || *r.GroupID != f.GroupID) {
		return false
	}
	if f.Unassigned && r.DriverID != nil {
		return false
	}
	if f.PickupContains != "" && !containsFold(r.Pickup.Address, f.PickupContains) {
		return false
	}
	if f.DropContains != "" && !containsFold(r.Drop.Address, f.DropContains) {
		return false
	}
	return true
}

func (f GroupFilter) Match(g *Group) bool {
	if len(f.Statuses) > 0 && !hasStatus(f.Statuses, g.Status) {
		return false
	}
	if f.DriverID != "" && (g.DriverID == nil || *g.DriverID != f.DriverID) {
		return false
	}
	if f.Unassigned && g.DriverID != nil {
		return false
	}
	return true
}
