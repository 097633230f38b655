// Package entitlement derives the effective tier, weekly quota and feature
// flags for a user from their subscription record and the current time.
package entitlement

import "mealweek/internal/types"

// TierRegistry defines the authoritative limits for each tier.
// This is the single source of truth for what each tier allows.
type TierRegistry interface {
	// GetLimits returns the limits for the given tier. For unknown tiers,
	// returns the basic limits to fail safely.
	GetLimits(tier types.Tier) types.TierLimits
}

// staticTierRegistry is a compile-time tier registry backed by an in-memory map.
// It implements TierRegistry and is the standard implementation for production use.
type staticTierRegistry struct {
	limits map[types.Tier]types.TierLimits
}

// tierDefaults defines the hardcoded per-tier limits:
//
//	| Tier  | Generations/Week | Calories | Styles                              |
//	|-------|------------------|----------|-------------------------------------|
//	| basic | 3                | No       | cheap quick balanced vegetarian     |
//	| plus  | 5                | Yes      | basic set + traditional exotic fit  |
var tierDefaults = map[types.Tier]types.TierLimits{
	types.TierBasic: {
		GenerationsPerWeek: 3,
		CaloriesEnabled:    false,
		AllowedStyles: []types.MealStyle{
			types.StyleCheap,
			types.StyleQuick,
			types.StyleBalanced,
			types.StyleVegetarian,
		},
	},
	types.TierPlus: {
		GenerationsPerWeek: 5,
		CaloriesEnabled:    true,
		AllowedStyles: []types.MealStyle{
			types.StyleCheap,
			types.StyleQuick,
			types.StyleBalanced,
			types.StyleVegetarian,
			types.StyleTraditional,
			types.StyleExotic,
			types.StyleFit,
		},
	},
}

// basicLimits is cached to avoid map lookups on the fallback path.
var basicLimits = tierDefaults[types.TierBasic]

// NewStaticTierRegistry returns a TierRegistry backed by the hardcoded tier
// limits. No database or external service is required.
func NewStaticTierRegistry() TierRegistry {
	// Copy the defaults into a new map so callers cannot mutate the package-level variable.
	m := make(map[types.Tier]types.TierLimits, len(tierDefaults))
	for k, v := range tierDefaults {
		m[k] = v
	}
	return &staticTierRegistry{limits: m}
}

// GetLimits returns the limits for the given tier.
// If the tier is unknown, it returns the basic limits as a safe default.
func (r *staticTierRegistry) GetLimits(tier types.Tier) types.TierLimits {
	if limits, ok := r.limits[tier]; ok {
		return limits
	}
	return basicLimits
}
