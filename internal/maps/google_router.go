// README: Google Directions routing provider.
package maps

import (
	"context"
	"fmt"

	gmaps "googlemaps.github.io/maps"

	"carpool/internal/types"
)

// GoogleRouter handles interactions with the Google Directions API.
type GoogleRouter struct {
	client *gmaps.Client
}

// NewGoogleRouter creates a router with the given API key. Extra client options (e.g. a base URL) are appended.
func NewGoogleRouter(apiKey string, opts ...gmaps.ClientOption) (*GoogleRouter, error) {
	client, err := newGoogleClient(apiKey, opts...)
	if err != nil {
		return nil, err
	}
	return &GoogleRouter{client: client}, nil
}

func newGoogleClient(apiKey string, opts ...gmaps.ClientOption) (*gmaps.Client, error) {
	all := append([]gmaps.ClientOption{gmaps.WithAPIKey(apiKey)}, opts...)
	client, err := gmaps.NewClient(all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return client, nil
}

func latLng(p types.Point) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}

func (g *GoogleRouter) Route(ctx context.Context, origin, destination types.Point) (Route, error) {
	routes, _, err := g.client.Directions(ctx, &gmaps.DirectionsRequest{
		Origin:      latLng(origin),
		Destination: latLng(destination),
		Mode:        gmaps.TravelModeDriving,
	})
	if err != nil {
		return Route{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Route{}, ErrNoRoute
	}

	var out Route
	for _, leg := range routes[0].Legs {
		out.DistanceMeters += float64(leg.Distance.Meters)
		out.DurationSeconds += leg.Duration.Seconds()
	}

	path, err := routes[0].OverviewPolyline.Decode()
	if err != nil || len(path) < 2 {
		out.Geometry = LineString(origin, destination)
		return out, nil
	}
	pts := make([]types.Point, 0, len(path))
	for _, ll := range path {
		pts = append(pts, types.Point{Lat: ll.Lat, Lng: ll.Lng})
	}
	out.Geometry = LineString(pts...)
	return out, nil
}
