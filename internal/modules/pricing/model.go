// README: Fare rate settings and the accept-time fare policy.
package pricing

import "carpool/internal/config"

type Rate struct {
	PerMeter float64
	Currency string
}

// AcceptPolicy controls what happens to a group's fare when a driver accepts it.
// With Reroll off the distance-based total stands.
type AcceptPolicy struct {
	Reroll bool
	Min    int
	Max    int
}

func FromConfig(cfg config.PricingConfig) (Rate, AcceptPolicy) {
	return Rate{PerMeter: cfg.RatePerMeter, Currency: cfg.Currency},
		AcceptPolicy{Reroll: cfg.RerollOnAccept, Min: cfg.RerollMin, Max: cfg.RerollMax}
}
