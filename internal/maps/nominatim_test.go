package maps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carpool/internal/types"
)

func TestNominatimReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "carpool-test" {
			t.Errorf("missing user agent, got %q", r.Header.Get("User-Agent"))
		}
		q := r.URL.Query()
		if q.Get("lat") != "25.033" || q.Get("lon") != "121.5654" || q.Get("format") != "json" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = w.Write([]byte(`{"display_name":"Taipei 101, Xinyi District, Taipei"}`))
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(srv.URL, "carpool-test", time.Second)
	addr, err := g.ReverseGeocode(context.Background(), types.Point{Lat: 25.033, Lng: 121.5654})
	if err != nil {
		t.Fatalf("reverse geocode: %v", err)
	}
	if addr != "Taipei 101, Xinyi District, Taipei" {
		t.Fatalf("unexpected address %q", addr)
	}
}

func TestNominatimNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	_, err := NewNominatimGeocoder(srv.URL, "ua", time.Second).ReverseGeocode(context.Background(), types.Point{})
	if !errors.Is(err, ErrNoAddress) {
		t.Fatalf("expected ErrNoAddress, got %v", err)
	}
}

func TestNominatimHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := NewNominatimGeocoder(srv.URL, "ua", time.Second).ReverseGeocode(context.Background(), types.Point{}); err == nil {
		t.Fatalf("expected error on 429")
	}
}
