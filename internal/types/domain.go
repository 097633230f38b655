package types

import "time"

// WeekStartLayout is the wire format for week start dates.
const WeekStartLayout = "2006-01-02"

// SubscriptionRecord is the per-user subscription row. It is read-mostly by
// the generation core; writes come from the Stripe webhook handler and from
// first-use trial provisioning.
//
// Invariant: at most one record per user. A record is created lazily on the
// first entitlement query with tier=basic, status=trialing and a 14-day trial.
type SubscriptionRecord struct {
	UserID           string             `json:"user_id"`
	Tier             Tier               `json:"tier"`
	Status           SubscriptionStatus `json:"status"`
	TrialUntil       *time.Time         `json:"trial_until,omitempty"`
	CurrentPeriodEnd *time.Time         `json:"current_period_end,omitempty"`
	StripeCustomerID string             `json:"-"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// TrialDuration is the length of the lazily provisioned trial.
const TrialDuration = 14 * 24 * time.Hour

// Entitlement is the derived, never-persisted view of what a subscription
// currently allows. It is computed purely from a SubscriptionRecord and the
// current time; there is no hidden state.
type Entitlement struct {
	EffectiveTier          Tier               `json:"effective_tier"`
	InTrial                bool               `json:"in_trial"`
	GenerationLimitPerWeek int                `json:"generation_limit_per_week"`
	CaloriesEnabled        bool               `json:"calories_enabled"`
	AllowedStyles          map[MealStyle]bool `json:"-"`
}

// StyleAllowed reports whether the given style is permitted by this entitlement.
func (e Entitlement) StyleAllowed(style MealStyle) bool {
	return e.AllowedStyles[style]
}

// TierLimits defines what a single tier allows. Used by the static tier
// registry in the entitlement package.
type TierLimits struct {
	GenerationsPerWeek int
	CaloriesEnabled    bool
	AllowedStyles      []MealStyle
}

// GenerationRequest is the transient, per-call input to plan generation.
// Numeric range handling is deliberately permissive: out-of-range
// shopping_trips and repeat_days are clamped, not rejected.
type GenerationRequest struct {
	WeekStart     string    `json:"week_start" validate:"required,weekstart"`
	Language      string    `json:"language,omitempty"`
	People        int       `json:"people,omitempty"`
	Budget        string    `json:"budget,omitempty"`
	Intolerances  []string  `json:"intolerances,omitempty"`
	Avoid         []string  `json:"avoid,omitempty"`
	Have          []string  `json:"have,omitempty"`
	Favorites     []string  `json:"favorites,omitempty"`
	Style         MealStyle `json:"style,omitempty"`
	ShoppingTrips int       `json:"shopping_trips,omitempty"`
	RepeatDays    int       `json:"repeat_days,omitempty"`
}

// ValidRequest is a GenerationRequest that has passed policy validation.
// WeekStart is parsed, defaults are applied and numeric fields are clamped.
type ValidRequest struct {
	WeekStart     time.Time
	Language      string
	People        int
	Budget        string
	Intolerances  []string
	Avoid         []string
	Have          []string
	Favorites     []string
	Style         MealStyle
	ShoppingTrips int
	RepeatDays    int
}

// DayCalories carries the optional per-meal and per-day calorie estimates
// that plus-tier generations include.
type DayCalories struct {
	Breakfast int `json:"breakfast,omitempty"`
	Lunch     int `json:"lunch,omitempty"`
	Dinner    int `json:"dinner,omitempty"`
	Total     int `json:"total,omitempty"`
}

// DayPlan is one of the seven ordinal day entries of a generated plan.
type DayPlan struct {
	Day       int          `json:"day"`
	Label     string       `json:"label,omitempty"`
	Breakfast string       `json:"breakfast"`
	Lunch     string       `json:"lunch"`
	Dinner    string       `json:"dinner"`
	Calories  *DayCalories `json:"calories,omitempty"`
}

// ShoppingTrip groups the shopping list items for one trip.
type ShoppingTrip struct {
	Trip  int      `json:"trip"`
	Days  string   `json:"days,omitempty"`
	Items []string `json:"items"`
}

// Recipe is the preparation text for one meal slot, keyed in
// GeneratedPlan.Recipes by the canonical d{day}_{meal} string.
type Recipe struct {
	Title       string   `json:"title,omitempty"`
	Ingredients []string `json:"ingredients,omitempty"`
	Steps       []string `json:"steps,omitempty"`
	Text        string   `json:"text,omitempty"`
}

// GeneratedPlan is the persisted artifact of one successful generation call.
// Completeness contract: exactly 7 days and all 21 canonical recipe keys.
type GeneratedPlan struct {
	Summary  string            `json:"summary"`
	Days     []DayPlan         `json:"days"`
	Shopping []ShoppingTrip    `json:"shopping"`
	Recipes  map[string]Recipe `json:"recipes"`
}

// StoredPlan wraps a GeneratedPlan with its persistence metadata.
type StoredPlan struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	WeekStart       time.Time     `json:"week_start"`
	Plan            GeneratedPlan `json:"plan"`
	GenerationCount int           `json:"generation_count"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// UsageCounter is one per-user-per-week usage row. Count is non-negative and
// the number of committed increments never exceeds the weekly limit.
type UsageCounter struct {
	UserID    string    `json:"user_id"`
	WeekStart time.Time `json:"week_start"`
	Count     int       `json:"count"`
}

// User is the minimal account record backing the identity contract.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is a server-side bearer session. Only the SHA-256 hash of the
// token is stored; the raw token is returned to the client once at login.
type Session struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
