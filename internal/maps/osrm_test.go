package maps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carpool/internal/types"
)

func TestOSRMRouterRoute(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":3250.4,"duration":412.6,
			"geometry":{"type":"LineString","coordinates":[[121.5,25.0],[121.51,25.01],[121.52,25.02]]}}]}`))
	}))
	defer srv.Close()

	r := NewOSRMRouter(srv.URL, time.Second)
	route, err := r.Route(context.Background(), types.Point{Lat: 25.0, Lng: 121.5}, types.Point{Lat: 25.02, Lng: 121.52})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !strings.HasPrefix(gotPath, "/route/v1/driving/121.500000,25.000000;121.520000,25.020000") {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if !strings.Contains(gotQuery, "geometries=geojson") || !strings.Contains(gotQuery, "overview=full") {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if route.DistanceMeters != 3250.4 || route.DurationSeconds != 412.6 {
		t.Fatalf("unexpected route %+v", route)
	}
	if route.Geometry.Type != "LineString" || len(route.Geometry.Coordinates) != 3 {
		t.Fatalf("unexpected geometry %+v", route.Geometry)
	}
}

func TestOSRMRouterNonOkCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"NoRoute","message":"Impossible route","routes":[]}`))
	}))
	defer srv.Close()

	_, err := NewOSRMRouter(srv.URL, time.Second).Route(context.Background(), types.Point{}, types.Point{Lat: 1, Lng: 1})
	if !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

func TestOSRMRouterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := NewOSRMRouter(srv.URL, 5*time.Second).Route(ctx, types.Point{}, types.Point{Lat: 1, Lng: 1}); err == nil {
		t.Fatalf("expected timeout error")
	}
}
