package types

// Tier is the subscription level controlling feature and quota entitlement.
type Tier string

const (
	TierBasic Tier = "basic"
	TierPlus  Tier = "plus"
)

// SubscriptionStatus represents the billing lifecycle state of a subscription.
type SubscriptionStatus string

const (
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusInactive SubscriptionStatus = "inactive"
)

// MealStyle is a style tag a user may request for plan generation.
// Which styles are permitted depends on the effective tier.
type MealStyle string

const (
	StyleCheap       MealStyle = "cheap"
	StyleQuick       MealStyle = "quick"
	StyleBalanced    MealStyle = "balanced"
	StyleVegetarian  MealStyle = "vegetarian"
	StyleTraditional MealStyle = "traditional"
	StyleExotic      MealStyle = "exotic"
	StyleFit         MealStyle = "fit"
)

// AllMealStyles lists every known style in a stable order, used when a
// caller needs to enumerate styles (e.g. reporting which are allowed).
func AllMealStyles() []MealStyle {
	return []MealStyle{
		StyleCheap,
		StyleQuick,
		StyleBalanced,
		StyleVegetarian,
		StyleTraditional,
		StyleExotic,
		StyleFit,
	}
}

// Meal identifies one of the three daily meal slots.
type Meal string

const (
	MealBreakfast Meal = "breakfast"
	MealLunch     Meal = "lunch"
	MealDinner    Meal = "dinner"
)

// Meals lists the daily meal slots in canonical order.
var Meals = []Meal{MealBreakfast, MealLunch, MealDinner}

// GenerationOutcome labels the terminal state of one orchestrated
// generation call, for metrics and structured logging.
type GenerationOutcome string

const (
	OutcomeCommitted      GenerationOutcome = "committed"
	OutcomeUnauthorized   GenerationOutcome = "unauthorized"
	OutcomeRejected       GenerationOutcome = "request_rejected"
	OutcomeQuotaExceeded  GenerationOutcome = "quota_exceeded"
	OutcomeUpstreamFailed GenerationOutcome = "upstream_failed"
	OutcomeOutputRejected GenerationOutcome = "output_rejected"
	OutcomePersistFailed  GenerationOutcome = "persist_failed"
)
