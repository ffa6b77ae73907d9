// README: Matching command/result types and engine options.
package matching

import (
	"fmt"
	"strings"

	"carpool/internal/modules/ride"
	"carpool/internal/modules/route"
	"carpool/internal/types"
)

const (
	MessageWaiting = "waiting for match"
	MessageMatched = "matched"
)

// Endpoint is a requested pickup or drop. Coordinates are pointers so an
// omitted latitude or longitude is distinguishable from 0.
type Endpoint struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"latitude"`
	Lng     *float64 `json:"longitude"`
}

func At(address string, lat, lng float64) Endpoint {
	return Endpoint{Address: address, Lat: &lat, Lng: &lng}
}

func (p Endpoint) HasCoords() bool { return p.Lat != nil && p.Lng != nil }

// Point is the zero point when coordinates are missing; Validate rejects that case first.
func (p Endpoint) Point() types.Point {
	if !p.HasCoords() {
		return types.Point{}
	}
	return types.Point{Lat: *p.Lat, Lng: *p.Lng}
}

func (p Endpoint) Location() ride.Location {
	pt := p.Point()
	return ride.Location{Address: p.Address, Lat: pt.Lat, Lng: pt.Lng}
}

type RequestCommand struct {
	RiderID types.ID
	Role    types.Role
	Pickup  Endpoint
	Drop    Endpoint
}

func (c RequestCommand) caller() ride.Caller {
	return ride.Caller{ID: c.RiderID, Role: c.Role}
}

func (c RequestCommand) Validate() error {
	if c.RiderID == "" {
		return fmt.Errorf("%w: rider is required", ride.ErrBadRequest)
	}
	if strings.TrimSpace(c.Pickup.Address) == "" || strings.TrimSpace(c.Drop.Address) == "" {
		return fmt.Errorf("%w: pickup and drop addresses are required", ride.ErrBadRequest)
	}
	for _, l := range []Endpoint{c.Pickup, c.Drop} {
		if !l.HasCoords() {
			return fmt.Errorf("%w: latitude and longitude are required for %q", ride.ErrBadRequest, l.Address)
		}
		if !l.Point().Valid() {
			return fmt.Errorf("%w: %v %s", ride.ErrBadRequest, route.ErrInvalidCoordinate, l.Point())
		}
	}
	return nil
}

// RequestResult: Group is nil and Matched false while the ride waits for a partner.
type RequestResult struct {
	Ride    *ride.Ride     `json:"ride"`
	Group   *ride.Group    `json:"group,omitempty"`
	Route   route.Estimate `json:"route"`
	Matched bool           `json:"matched"`
	Message string         `json:"message"`
}

type Options struct {
	// MaxAttempts bounds how many candidates are tried when concurrent claims keep losing.
	MaxAttempts int
}
