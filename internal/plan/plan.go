// Package plan defines the closed plan tier set and the catalog that maps
// each tier to its limits and feature flags.
package plan

import (
	"errors"
	"strings"
)

// Plan is one of a closed set of tiers. Parse is the only way a raw string
// becomes a Plan, which keeps ErrUnknownPlan confined to the boundary.
type Plan string

const (
	Basic      Plan = "basic"
	Pro        Plan = "pro"
	Enterprise Plan = "enterprise"
)

var ErrUnknownPlan = errors.New("unknown_plan")

// Ordered returns every plan from cheapest to most expensive.
func Ordered() []Plan {
	return []Plan{Basic, Pro, Enterprise}
}

// Parse normalizes and validates a raw plan string.
func Parse(raw string) (Plan, error) {
	switch Plan(strings.ToLower(strings.TrimSpace(raw))) {
	case Basic:
		return Basic, nil
	case Pro:
		return Pro, nil
	case Enterprise:
		return Enterprise, nil
	default:
		return "", ErrUnknownPlan
	}
}

func (p Plan) Valid() bool {
	switch p {
	case Basic, Pro, Enterprise:
		return true
	default:
		return false
	}
}

func (p Plan) String() string { return string(p) }

// rank orders plans by price: basic < pro < enterprise.
func (p Plan) rank() int {
	switch p {
	case Basic:
		return 0
	case Pro:
		return 1
	case Enterprise:
		return 2
	default:
		return -1
	}
}

// Compare returns -1, 0 or 1 ordering p against other by the fixed price
// order.
func (p Plan) Compare(other Plan) int {
	switch {
	case p.rank() < other.rank():
		return -1
	case p.rank() > other.rank():
		return 1
	default:
		return 0
	}
}

// FeatureFlag names a boolean plan feature.
type FeatureFlag string

const (
	FeatureAnalyticsDashboard FeatureFlag = "analytics_dashboard"
	FeatureTeamCollaboration  FeatureFlag = "team_collaboration"
	FeaturePrioritySupport    FeatureFlag = "priority_support"
)

// Limit is a counter ceiling. Unlimited disables the ceiling.
type Limit int64

const Unlimited Limit = -1

func (l Limit) IsUnlimited() bool { return l < 0 }

// Allows reports whether a counter currently at count may allocate one more.
// The limit is an exclusive upper bound on the pre-increment count.
func (l Limit) Allows(count int64) bool {
	return l.IsUnlimited() || count < int64(l)
}

// Limits bundles the numeric ceilings and feature set of one plan tier.
type Limits struct {
	Websites Limit
	Analyses Limit
	Features map[FeatureFlag]bool
}

func (l Limits) HasFeature(flag FeatureFlag) bool {
	return l.Features[flag]
}
