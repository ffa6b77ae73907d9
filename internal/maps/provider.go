// README: Routing and reverse-geocoding provider contracts plus the GeoJSON geometry they return.
package maps

import (
	"context"
	"errors"

	"carpool/internal/types"
)

var (
	ErrNoRoute   = errors.New("no route found")
	ErrNoAddress = errors.New("no address found")
)

// Geometry is a GeoJSON LineString; coordinates are [lng, lat] pairs.
type Geometry struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

func LineString(points ...types.Point) Geometry {
	coords := make([][2]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, [2]float64{p.Lng, p.Lat})
	}
	return Geometry{Type: "LineString", Coordinates: coords}
}

type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
	Geometry        Geometry
}

// Router returns road distance, travel time and geometry between two points.
type Router interface {
	Route(ctx context.Context, origin, destination types.Point) (Route, error)
}

// Geocoder resolves a coordinate to a human-readable address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, p types.Point) (string, error)
}
