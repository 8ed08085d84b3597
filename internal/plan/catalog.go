package plan

import (
	"github.com/webloom/entitled/internal/config"
)

// Catalog is the static plan → limits lookup. Lookups are pure; the backing
// numbers come from deployment configuration and may be hot-reloaded.
type Catalog interface {
	// LimitsFor returns the limits of the given plan, or ErrUnknownPlan
	// for a value outside the closed plan set.
	LimitsFor(p Plan) (Limits, error)

	// CheapestSatisfying walks plans from cheapest to most expensive and
	// returns the first one whose limits satisfy the predicate.
	CheapestSatisfying(fn func(Limits) bool) (Plan, bool)
}

type catalog struct {
	holder *config.PlansConfigHolder
}

func NewCatalog(holder *config.PlansConfigHolder) Catalog {
	return &catalog{holder: holder}
}

func (c *catalog) LimitsFor(p Plan) (Limits, error) {
	cfg := c.holder.Get()
	switch p {
	case Basic:
		return limitsFromConfig(cfg.Basic), nil
	case Pro:
		return limitsFromConfig(cfg.Pro), nil
	case Enterprise:
		return limitsFromConfig(cfg.Enterprise), nil
	default:
		return Limits{}, ErrUnknownPlan
	}
}

func (c *catalog) CheapestSatisfying(fn func(Limits) bool) (Plan, bool) {
	for _, p := range Ordered() {
		limits, err := c.LimitsFor(p)
		if err != nil {
			continue
		}
		if fn(limits) {
			return p, true
		}
	}
	return "", false
}

func limitsFromConfig(cfg config.PlanLimitsConfig) Limits {
	features := make(map[FeatureFlag]bool, len(cfg.Features))
	for _, name := range cfg.Features {
		features[FeatureFlag(name)] = true
	}
	return Limits{
		Websites: Limit(cfg.Websites),
		Analyses: Limit(cfg.Analyses),
		Features: features,
	}
}
