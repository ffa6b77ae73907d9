// README: Fare calculator: distance-based total, equal ceiling split, optional accept-time re-roll.
package pricing

import (
	"math"
	"math/rand/v2"
)

type Calculator struct {
	rate   Rate
	accept AcceptPolicy
	intN   func(n int) int
}

func NewCalculator(rate Rate, accept AcceptPolicy) *Calculator {
	return &Calculator{rate: rate, accept: accept, intN: rand.IntN}
}

// WithRand swaps the random source used by the re-roll policy.
func (c *Calculator) WithRand(intN func(n int) int) *Calculator {
	c.intN = intN
	return c
}

func (c *Calculator) Currency() string { return c.rate.Currency }

// TotalFare is ceil(distance * rate).
func (c *Calculator) TotalFare(distanceMeters float64) float64 {
	if distanceMeters <= 0 {
		return 0
	}
	return math.Ceil(distanceMeters * c.rate.PerMeter)
}

// PerPersonFare splits total evenly, rounding up so the group is never under-collected.
func (c *Calculator) PerPersonFare(total float64, riders int) float64 {
	if riders < 1 {
		riders = 1
	}
	return math.Ceil(total / float64(riders))
}

// AcceptFare returns the group's fare once a driver accepts.
func (c *Calculator) AcceptFare(currentTotal float64, riders int) (total, perPerson float64) {
	if !c.accept.Reroll {
		return currentTotal, c.PerPersonFare(currentTotal, riders)
	}
	if riders < 1 {
		riders = 1
	}
	span := c.accept.Max - c.accept.Min + 1
	total = float64(c.accept.Min + c.intN(span))
	perPerson = math.Round(total/float64(riders)*100) / 100
	return total, perPerson
}
