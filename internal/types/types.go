// README: Shared value types (identifiers, coordinates, caller roles) used across modules.
package types

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string { return string(id) }

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Valid reports whether both components are finite and within range.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleRider, RoleDriver:
		return Role(s), true
	}
	return "", false
}
