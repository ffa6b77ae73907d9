// README: RouteEstimator: cached provider lookups with a geometric fallback, plus cached reverse geocoding.
package route

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"carpool/internal/maps"
	"carpool/internal/observability"
	"carpool/internal/types"
)

var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrNoGeocoder        = errors.New("reverse geocoding is not configured")
)

type Source string

const (
	SourceProvider Source = "provider"
	SourceFallback Source = "fallback"
)

type Estimate struct {
	DistanceMeters  float64       `json:"distanceMeters"`
	DurationSeconds float64       `json:"durationSeconds"`
	DistanceLabel   string        `json:"distance"`
	DurationLabel   string        `json:"duration"`
	Geometry        maps.Geometry `json:"geometry"`
	Source          Source        `json:"source"`
	Cached          bool          `json:"cached"`
}

type Options struct {
	Timeout       time.Duration
	TTL           time.Duration
	SweepInterval time.Duration
	FallbackAge   float64
	Now           func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Timeout:       5 * time.Second,
		TTL:           30 * time.Minute,
		SweepInterval: 15 * time.Minute,
		FallbackAge:   0.8,
	}
}

type Estimator struct {
	router   maps.Router
	geocoder maps.Geocoder
	opts     Options
	routes   *Cache[Estimate]
	geocodes *Cache[string]
	log      logrus.FieldLogger
}

// NewEstimator accepts a nil router (always fallback) or a nil geocoder (reverse lookups fail).
func NewEstimator(router maps.Router, geocoder maps.Geocoder, opts Options, log logrus.FieldLogger) *Estimator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Estimator{
		router:   router,
		geocoder: geocoder,
		opts:     opts,
		routes:   NewCache[Estimate](opts.TTL, opts.Now),
		geocodes: NewCache[string](opts.TTL, opts.Now),
		log:      log,
	}
}

func routeKey(origin, destination types.Point) string {
	return fmt.Sprintf("%.4f,%.4f-%.4f,%.4f", origin.Lat, origin.Lng, destination.Lat, destination.Lng)
}

func pointKey(p types.Point) string {
	return fmt.Sprintf("%.4f,%.4f", p.Lat, p.Lng)
}

// Estimate never fails because of the provider; only invalid coordinates return an error.
func (e *Estimator) Estimate(ctx context.Context, origin, destination types.Point) (Estimate, error) {
	if !origin.Valid() || !destination.Valid() {
		return Estimate{}, fmt.Errorf("%w: origin %s destination %s", ErrInvalidCoordinate, origin, destination)
	}

	key := routeKey(origin, destination)
	if est, ok := e.routes.Get(key); ok {
		observability.RouteEstimatesTotal.WithLabelValues("cache").Inc()
		est.Cached = true
		return est, nil
	}

	if e.router != nil {
		est, err := e.fromProvider(ctx, origin, destination)
		if err == nil {
			e.routes.Set(key, est)
			observability.RouteEstimatesTotal.WithLabelValues(string(SourceProvider)).Inc()
			return est, nil
		}
		e.log.WithError(err).WithField("route", key).Warn("routing provider failed, using fallback estimate")
	}

	est := Fallback(origin, destination)
	e.routes.SetAged(key, est, e.opts.FallbackAge)
	observability.RouteEstimatesTotal.WithLabelValues(string(SourceFallback)).Inc()
	return est, nil
}

func (e *Estimator) fromProvider(ctx context.Context, origin, destination types.Point) (Estimate, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	start := time.Now()
	r, err := e.router.Route(ctx, origin, destination)
	observability.RouteProviderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return Estimate{}, err
	}
	if r.DistanceMeters < 0 || r.DurationSeconds < 0 || math.IsNaN(r.DistanceMeters) || math.IsNaN(r.DurationSeconds) {
		return Estimate{}, fmt.Errorf("provider returned invalid route %+v", r)
	}

	distance := math.Round(r.DistanceMeters)
	duration := math.Round(r.DurationSeconds)
	geometry := r.Geometry
	if len(geometry.Coordinates) < 2 {
		geometry = maps.LineString(origin, destination)
	}
	return Estimate{
		DistanceMeters:  distance,
		DurationSeconds: duration,
		DistanceLabel:   FormatDistance(distance),
		DurationLabel:   FormatDuration(duration),
		Geometry:        geometry,
		Source:          SourceProvider,
	}, nil
}

// ReverseGeocode returns a cached address for p; provider errors are returned as-is.
func (e *Estimator) ReverseGeocode(ctx context.Context, p types.Point) (string, error) {
	if !p.Valid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidCoordinate, p)
	}
	key := pointKey(p)
	if addr, ok := e.geocodes.Get(key); ok {
		return addr, nil
	}
	if e.geocoder == nil {
		return "", ErrNoGeocoder
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()
	addr, err := e.geocoder.ReverseGeocode(ctx, p)
	if err != nil {
		return "", fmt.Errorf("reverse geocode %s: %w", key, err)
	}
	e.geocodes.Set(key, addr)
	return addr, nil
}

// Sweep evicts expired entries from both caches.
func (e *Estimator) Sweep() (routes, geocodes int) {
	routes = e.routes.Sweep()
	geocodes = e.geocodes.Sweep()
	observability.CacheEvictionsTotal.WithLabelValues("route").Add(float64(routes))
	observability.CacheEvictionsTotal.WithLabelValues("geocode").Add(float64(geocodes))
	return routes, geocodes
}

// RunSweeper blocks until ctx is done.
func (e *Estimator) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(e.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			routes, geocodes := e.Sweep()
			if routes+geocodes > 0 {
				e.log.WithFields(logrus.Fields{"routes": routes, "geocodes": geocodes}).Debug("evicted expired cache entries")
			}
		}
	}
}
