package entitlement

import (
	"time"

	"mealweek/internal/types"
)

// Resolver computes entitlements from subscription records.
// It holds no mutable state; all methods are pure functions of their inputs.
type Resolver struct {
	registry TierRegistry
}

// NewResolver creates a Resolver backed by the given tier registry.
// Passing nil uses the static registry.
func NewResolver(registry TierRegistry) *Resolver {
	if registry == nil {
		registry = NewStaticTierRegistry()
	}
	return &Resolver{registry: registry}
}

// Resolve derives the Entitlement for a subscription record at the given time.
//
// Rules:
//   - in_trial iff trial_until is set and strictly in the future.
//   - effective tier is plus while in trial, otherwise the record's tier.
//   - limit, calorie support and allowed styles follow the effective tier.
//
// Resolve is total: a nil trial_until means not in trial, and unknown tiers
// fall back to the basic limits via the registry.
func (r *Resolver) Resolve(rec types.SubscriptionRecord, now time.Time) types.Entitlement {
	inTrial := rec.TrialUntil != nil && rec.TrialUntil.After(now)

	effective := rec.Tier
	if inTrial {
		effective = types.TierPlus
	}

	limits := r.registry.GetLimits(effective)

	allowed := make(map[types.MealStyle]bool, len(limits.AllowedStyles))
	for _, s := range limits.AllowedStyles {
		allowed[s] = true
	}

	return types.Entitlement{
		EffectiveTier:          effective,
		InTrial:                inTrial,
		GenerationLimitPerWeek: limits.GenerationsPerWeek,
		CaloriesEnabled:        limits.CaloriesEnabled,
		AllowedStyles:          allowed,
	}
}

// Active reports whether the subscription permits generation at all.
//
//   - trialing is active while the trial has not ended.
//   - active requires current_period_end to be absent or in the future;
//     a lapsed period end means the payment processor stopped renewing it.
//   - past_due, canceled and inactive never permit generation.
func Active(rec types.SubscriptionRecord, now time.Time) bool {
	switch rec.Status {
	case types.StatusTrialing:
		return rec.TrialUntil != nil && rec.TrialUntil.After(now)
	case types.StatusActive:
		return rec.CurrentPeriodEnd == nil || rec.CurrentPeriodEnd.After(now)
	default:
		return false
	}
}
