// Package pricing estimates the credit cost of a collection call so the
// orchestrator can size its reservation before dispatching.
package pricing

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/civica-research/arenactl/internal/coverage"
	"github.com/civica-research/arenactl/internal/model"
)

// TierRate holds per-tier pricing for one platform.
type TierRate struct {
	// PerDay is the credit cost per day of requested date range.
	PerDay float64 `yaml:"per_day" mapstructure:"per_day"`
	// PerCall is a flat cost charged per collection call.
	PerCall float64 `yaml:"per_call" mapstructure:"per_call"`
}

// Rates holds per-platform, per-tier pricing configuration.
type Rates struct {
	Platforms map[string]map[model.Tier]TierRate `yaml:"platforms" mapstructure:"platforms"`
	// DefaultPerDay applies to platforms without an explicit rate.
	DefaultPerDay float64 `yaml:"default_per_day" mapstructure:"default_per_day"`
}

// Estimator computes credit estimates for collection calls.
type Estimator struct {
	rates Rates
}

// NewEstimator creates an Estimator with the given rates.
func NewEstimator(rates Rates) *Estimator {
	return &Estimator{rates: rates}
}

// Call estimates the credits one collection call over a date range will
// consume. Free tier is always zero.
func (e *Estimator) Call(platform string, tier model.Tier, from, to time.Time) float64 {
	if tier == model.TierFree {
		return 0
	}

	days := to.Sub(from).Hours() / 24
	if days < 1 {
		days = 1
	}

	rate, ok := e.rates.Platforms[platform][tier]
	if !ok {
		return days * e.rates.DefaultPerDay
	}
	return rate.PerCall + days*rate.PerDay
}

// Gaps estimates the total credits needed to fill a set of coverage gaps,
// one collection call per gap.
func (e *Estimator) Gaps(platform string, tier model.Tier, gaps []coverage.Range) float64 {
	var total float64
	for _, g := range gaps {
		total += e.Call(platform, tier, g.From, g.To)
	}
	return total
}

// LoadRates reads pricing rates from a YAML file, falling back to defaults
// when path is empty.
func LoadRates(path string) (Rates, error) {
	if path == "" {
		return DefaultRates(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rates{}, eris.Wrap(err, "pricing: read rates file")
	}

	rates := DefaultRates()
	if err := yaml.Unmarshal(data, &rates); err != nil {
		return Rates{}, eris.Wrap(err, "pricing: parse rates file")
	}
	return rates, nil
}

// DefaultRates returns the default credit pricing.
func DefaultRates() Rates {
	return Rates{
		DefaultPerDay: 1.0,
		Platforms: map[string]map[model.Tier]TierRate{
			"reddit": {
				model.TierMedium:  {PerDay: 0.5, PerCall: 1},
				model.TierPremium: {PerDay: 2, PerCall: 5},
			},
			"telegram": {
				model.TierMedium:  {PerDay: 1, PerCall: 2},
				model.TierPremium: {PerDay: 4, PerCall: 10},
			},
			"gdelt": {
				model.TierMedium: {PerDay: 0.25, PerCall: 0},
			},
			"mediacloud": {
				model.TierMedium:  {PerDay: 0.5, PerCall: 1},
				model.TierPremium: {PerDay: 1.5, PerCall: 2},
			},
			"wayback": {
				model.TierMedium: {PerDay: 0.5, PerCall: 0},
			},
			"majestic": {
				model.TierMedium:  {PerDay: 2, PerCall: 5},
				model.TierPremium: {PerDay: 8, PerCall: 20},
			},
		},
	}
}
