package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mealweek/internal/core"
	"mealweek/internal/types"
)

// EntitlementSourceInterface resolves the caller's subscription and
// entitlement. Matches entitlement.Service.
type EntitlementSourceInterface interface {
	Current(ctx context.Context, userID string) (*types.SubscriptionRecord, types.Entitlement, error)
}

// UsageReaderInterface reads the consumed generation count for a week.
// Matches quota.Ledger.
type UsageReaderInterface interface {
	Used(ctx context.Context, userID string, weekStart time.Time) (int, error)
}

// entitlementResponse is the wire shape of GET /v1/entitlement.
type entitlementResponse struct {
	Plan            types.Tier               `json:"plan"`
	Status          types.SubscriptionStatus `json:"status"`
	InTrial         bool                     `json:"in_trial"`
	TrialUntil      *time.Time               `json:"trial_until,omitempty"`
	LimitPerWeek    int                      `json:"limit_per_week"`
	UsedThisWeek    int                      `json:"used_this_week"`
	CaloriesEnabled bool                     `json:"calories_enabled"`
	AllowedStyles   []types.MealStyle        `json:"allowed_styles"`
	WeekStart       string                   `json:"week_start"`
}

// EntitlementHandler serves the caller's current entitlement and usage.
type EntitlementHandler struct {
	entitlements EntitlementSourceInterface
	usage        UsageReaderInterface
	logger       *slog.Logger
	now          func() time.Time
}

// NewEntitlementHandler creates a new EntitlementHandler.
func NewEntitlementHandler(
	entitlements EntitlementSourceInterface,
	usage UsageReaderInterface,
	logger *slog.Logger,
) *EntitlementHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntitlementHandler{
		entitlements: entitlements,
		usage:        usage,
		logger:       logger,
		now:          time.Now,
	}
}

// RegisterRoutes mounts the entitlement endpoint onto the mux.
func (h *EntitlementHandler) RegisterRoutes(r chi.Router) {
	r.Get("/entitlement", h.HandleGet)
}

// HandleGet handles GET /v1/entitlement.
//
// It reports the resolved entitlement plus the usage for the calendar week
// containing today (Monday-keyed, UTC). First use provisions the trial, so
// this endpoint never 404s for an authenticated user.
func (h *EntitlementHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"authentication required",
			nil,
		))
		return
	}

	rec, ent, err := h.entitlements.Current(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	weekStart := currentWeekStart(h.now().UTC())
	used, err := h.usage.Used(r.Context(), actor.UserID, weekStart)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	styles := make([]types.MealStyle, 0, len(ent.AllowedStyles))
	for _, s := range types.AllMealStyles() {
		if ent.AllowedStyles[s] {
			styles = append(styles, s)
		}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: entitlementResponse{
		Plan:            ent.EffectiveTier,
		Status:          rec.Status,
		InTrial:         ent.InTrial,
		TrialUntil:      rec.TrialUntil,
		LimitPerWeek:    ent.GenerationLimitPerWeek,
		UsedThisWeek:    used,
		CaloriesEnabled: ent.CaloriesEnabled,
		AllowedStyles:   styles,
		WeekStart:       weekStart.Format(types.WeekStartLayout),
	}})
}

// currentWeekStart returns the Monday 00:00 UTC of the week containing t.
func currentWeekStart(t time.Time) time.Time {
	t = t.UTC()
	// time.Weekday is Sunday=0; shift so Monday=0.
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}
