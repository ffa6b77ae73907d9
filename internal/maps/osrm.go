// README: OSRM HTTP routing client (driving profile, GeoJSON overview geometry).
package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"carpool/internal/types"
)

type OSRMRouter struct {
	baseURL string
	client  *http.Client
}

// NewOSRMRouter targets an OSRM server such as https://router.project-osrm.org.
// Callers bound latency through the request context; the client timeout is a backstop.
func NewOSRMRouter(baseURL string, timeout time.Duration) *OSRMRouter {
	return &OSRMRouter{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64  `json:"distance"`
		Duration float64  `json:"duration"`
		Geometry Geometry `json:"geometry"`
	} `json:"routes"`
}

func (o *OSRMRouter) Route(ctx context.Context, origin, destination types.Point) (Route, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson",
		o.baseURL, origin.Lng, origin.Lat, destination.Lng, destination.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Route{}, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return Route{}, fmt.Errorf("osrm request: %w", err)
	}
	defer resp.Body.Close()

	var out osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Route{}, fmt.Errorf("osrm decode (status %d): %w", resp.StatusCode, err)
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return Route{}, fmt.Errorf("%w: osrm code %q %s", ErrNoRoute, out.Code, out.Message)
	}
	r := out.Routes[0]
	return Route{DistanceMeters: r.Distance, DurationSeconds: r.Duration, Geometry: r.Geometry}, nil
}
