// Package domain defines the entitlement check contract.
package domain

import (
	"context"
	"errors"

	"github.com/webloom/entitled/internal/plan"
)

// ActionKind names something a tenant wants to do.
type ActionKind string

const (
	ActionCreateWebsite ActionKind = "create_website"
	ActionRunAnalysis   ActionKind = "run_analysis"
	ActionUseFeature    ActionKind = "use_feature"
)

func (k ActionKind) Valid() bool {
	switch k {
	case ActionCreateWebsite, ActionRunAnalysis, ActionUseFeature:
		return true
	default:
		return false
	}
}

// Action is a single entitlement question. Feature is only read when Kind
// is ActionUseFeature.
type Action struct {
	Kind    ActionKind       `json:"kind"`
	Feature plan.FeatureFlag `json:"feature,omitempty"`
}

// Decision is the evaluator's answer. A denial is a regular result, not an
// error: Reason explains it in operator-readable form and UpgradeSuggested
// carries the cheapest plan that would allow the action, when one exists.
type Decision struct {
	Allowed          bool       `json:"allowed"`
	Reason           string     `json:"reason,omitempty"`
	UpgradeSuggested *plan.Plan `json:"upgrade_suggested,omitempty"`
}

var ErrUnknownAction = errors.New("unknown_action")

type Service interface {
	// CanPerform evaluates the action against the account's current plan
	// and counters. It never mutates state.
	CanPerform(ctx context.Context, accountID string, action Action) (Decision, error)
}
