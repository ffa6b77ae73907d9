// README: Google Geocoding reverse lookup.
package maps

import (
	"context"
	"fmt"

	gmaps "googlemaps.github.io/maps"

	"carpool/internal/types"
)

type GoogleGeocoder struct {
	client *gmaps.Client
}

func NewGoogleGeocoder(apiKey string, opts ...gmaps.ClientOption) (*GoogleGeocoder, error) {
	client, err := newGoogleClient(apiKey, opts...)
	if err != nil {
		return nil, err
	}
	return &GoogleGeocoder{client: client}, nil
}

func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, p types.Point) (string, error) {
	results, err := g.client.ReverseGeocode(ctx, &gmaps.GeocodingRequest{
		LatLng: &gmaps.LatLng{Lat: p.Lat, Lng: p.Lng},
	})
	if err != nil {
		return "", fmt.Errorf("maps api error: %w", err)
	}
	for _, r := range results {
		if r.FormattedAddress != "" {
			return r.FormattedAddress, nil
		}
	}
	return "", ErrNoAddress
}
