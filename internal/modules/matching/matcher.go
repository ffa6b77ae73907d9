// README: Candidate search strategies: address substring (default) and pickup/drop proximity.
package matching

import (
	"context"
	"fmt"
	"math"
	"strings"

	"carpool/internal/modules/ride"
	"carpool/internal/modules/route"
)

// Matcher finds the pending ride a new request should join. Key names the
// exclusion region that must be held while searching and pairing.
type Matcher interface {
	Key(cmd RequestCommand) string
	FindCandidate(ctx context.Context, store ride.Store, cmd RequestCommand) (*ride.Ride, error)
}

// AddressMatcher pairs with the most recent pending ride whose pickup and drop
// addresses contain the request's addresses, ignoring case.
type AddressMatcher struct{}

func (AddressMatcher) Key(cmd RequestCommand) string {
	return "addr:" + normalizeAddress(cmd.Pickup.Address) + "|" + normalizeAddress(cmd.Drop.Address)
}

func (AddressMatcher) FindCandidate(ctx context.Context, store ride.Store, cmd RequestCommand) (*ride.Ride, error) {
	return store.FindRide(ctx, ride.RideFilter{
		Statuses:       []ride.Status{ride.StatusRequested},
		PickupContains: strings.TrimSpace(cmd.Pickup.Address),
		DropContains:   strings.TrimSpace(cmd.Drop.Address),
		ExcludeRiderID: cmd.RiderID,
	})
}

func normalizeAddress(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ProximityMatcher pairs with the most recent pending ride whose pickup and drop
// both lie within RadiusMeters of the request's. Only the ScanLimit most recent
// pending rides are considered.
type ProximityMatcher struct {
	RadiusMeters float64
	ScanLimit    int
}

// Key buckets the trip onto a ~1 km grid. Neighbouring cells are not
// serialized against each other; the conditional claim still prevents double grouping.
func (m ProximityMatcher) Key(cmd RequestCommand) string {
	cell := func(v float64) float64 { return math.Round(v*100) / 100 }
	pick, drop := cmd.Pickup.Point(), cmd.Drop.Point()
	return fmt.Sprintf("geo:%.2f,%.2f|%.2f,%.2f",
		cell(pick.Lat), cell(pick.Lng), cell(drop.Lat), cell(drop.Lng))
}

func (m ProximityMatcher) FindCandidate(ctx context.Context, store ride.Store, cmd RequestCommand) (*ride.Ride, error) {
	limit := m.ScanLimit
	if limit <= 0 {
		limit = 50
	}
	pending, err := store.FindRides(ctx, ride.RideFilter{
		Statuses:       []ride.Status{ride.StatusRequested},
		ExcludeRiderID: cmd.RiderID,
		Limit:          limit,
	})
	if err != nil {
		return nil, err
	}
	for _, r := range pending {
		if route.Haversine(r.Pickup.Point(), cmd.Pickup.Point()) <= m.RadiusMeters &&
			route.Haversine(r.Drop.Point(), cmd.Drop.Point()) <= m.RadiusMeters {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: no pending ride within %.0fm", ride.ErrNotFound, m.RadiusMeters)
}
