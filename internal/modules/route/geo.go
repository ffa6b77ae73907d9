// README: Geometric fallback estimate: haversine distance scaled by tiered circuity and speed factors.
package route

import (
	"math"

	"carpool/internal/maps"
	"carpool/internal/types"
)

const earthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance in meters.
func Haversine(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// CircuityFactor approximates road indirection for a straight-line distance.
// Short urban hops detour proportionally more than long trips.
func CircuityFactor(straightMeters float64) float64 {
	switch {
	case straightMeters < 1000:
		return 1.40
	case straightMeters < 5000:
		return 1.35
	case straightMeters < 10000:
		return 1.30
	default:
		return 1.25
	}
}

// AssumedSpeedKmh is tiered on the circuity-scaled distance.
func AssumedSpeedKmh(scaledMeters float64) float64 {
	switch {
	case scaledMeters < 3000:
		return 20
	case scaledMeters < 10000:
		return 30
	default:
		return 40
	}
}

// Fallback builds an estimate without a routing provider.
func Fallback(origin, destination types.Point) Estimate {
	straight := Haversine(origin, destination)
	scaled := straight * CircuityFactor(straight)
	speedMps := AssumedSpeedKmh(scaled) * 1000 / 3600
	seconds := math.Ceil(scaled / speedMps)
	distance := math.Round(scaled)

	return Estimate{
		DistanceMeters:  distance,
		DurationSeconds: seconds,
		DistanceLabel:   FormatDistance(distance),
		DurationLabel:   FormatDuration(seconds),
		Geometry:        maps.LineString(origin, destination),
		Source:          SourceFallback,
	}
}
