// Package generation implements the plan generation pipeline: request
// policy validation, prompt construction, the upstream adapter contract and
// the orchestrator that composes entitlement, quota, generation and
// completeness checking into one request/response cycle.
package generation

import (
	"time"

	"mealweek/internal/types"
)

// Defaults applied to unset request fields.
const (
	DefaultLanguage      = "en"
	DefaultPeople        = 2
	DefaultShoppingTrips = 2
	DefaultRepeatDays    = 2
	DefaultStyle         = types.StyleCheap
)

// Clamp bounds for numeric request fields. Out-of-range values are clamped,
// not rejected; this is a deliberate permissiveness policy.
const (
	MinShoppingTrips = 1
	MaxShoppingTrips = 4
	MinRepeatDays    = 1
	MaxRepeatDays    = 3
)

// ValidateRequest checks the shape and policy-legality of a generation
// request against the caller's resolved entitlement. Checks run in order and
// short-circuit on the first failure:
//
//  1. week_start must be a YYYY-MM-DD date.
//  2. style (default cheap) must be permitted for the effective tier.
//  3. shopping_trips and repeat_days are clamped into range.
//
// No side effects; the returned ValidRequest carries the parsed week start,
// applied defaults and clamped values.
func ValidateRequest(req types.GenerationRequest, ent types.Entitlement) (*types.ValidRequest, error) {
	weekStart, err := time.Parse(types.WeekStartLayout, req.WeekStart)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidWeekStart,
			"week_start must be a YYYY-MM-DD date",
			err,
			map[string]any{"week_start": req.WeekStart},
		)
	}

	style := req.Style
	if style == "" {
		style = DefaultStyle
	}
	if !ent.StyleAllowed(style) {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeStyleNotAllowed,
			"requested style is not available on the current plan",
			nil,
			map[string]any{
				"style": string(style),
				"plan":  string(ent.EffectiveTier),
			},
		)
	}

	language := req.Language
	if language == "" {
		language = DefaultLanguage
	}

	people := req.People
	if people <= 0 {
		people = DefaultPeople
	}

	return &types.ValidRequest{
		WeekStart:     weekStart,
		Language:      language,
		People:        people,
		Budget:        req.Budget,
		Intolerances:  req.Intolerances,
		Avoid:         req.Avoid,
		Have:          req.Have,
		Favorites:     req.Favorites,
		Style:         style,
		ShoppingTrips: clampOrDefault(req.ShoppingTrips, MinShoppingTrips, MaxShoppingTrips, DefaultShoppingTrips),
		RepeatDays:    clampOrDefault(req.RepeatDays, MinRepeatDays, MaxRepeatDays, DefaultRepeatDays),
	}, nil
}

// clampOrDefault applies the default for unset (zero) values and clamps
// everything else into [min, max].
func clampOrDefault(v, min, max, def int) int {
	if v == 0 {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
