// README: Human-readable distance and duration labels.
package route

import (
	"fmt"
	"math"
	"strconv"
)

// FormatDistance renders whole meters below 1 km, otherwise km with at most one decimal ("1km", "3.3km").
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%dm", int64(math.Round(meters)))
	}
	km := math.Round(meters/1000*10) / 10
	return strconv.FormatFloat(km, 'f', -1, 64) + "km"
}

// FormatDuration rounds up to whole minutes; 60 minutes and above roll over to hours ("1h 0min").
func FormatDuration(seconds float64) string {
	minutes := int64(math.Ceil(seconds / 60))
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%dh %dmin", minutes/60, minutes%60)
}
