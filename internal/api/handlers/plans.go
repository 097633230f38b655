// Package handlers contains the HTTP handler implementations for the
// mealweek API.
//
// Handlers depend on locally defined service interfaces rather than concrete
// service types, so each handler can be tested in isolation with small fakes.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mealweek/internal/core"
	"mealweek/internal/generation"
	"mealweek/internal/types"
)

// PlanGeneratorInterface defines the orchestration contract for the plan
// handler. Matches generation.Orchestrator but is defined locally to avoid
// tight coupling.
type PlanGeneratorInterface interface {
	Generate(ctx context.Context, userID string, req types.GenerationRequest) (*generation.Result, error)
}

// PlanReaderInterface reads previously persisted plans.
// Implemented by db.PlanRepo.
type PlanReaderInterface interface {
	Get(ctx context.Context, userID string, weekStart time.Time) (*types.StoredPlan, error)
}

// PlanHandler maps HTTP requests to the generation orchestrator and the
// plan store.
type PlanHandler struct {
	generator PlanGeneratorInterface
	plans     PlanReaderInterface
	validator *core.Validator
	logger    *slog.Logger
}

// NewPlanHandler creates a new PlanHandler with the provided dependencies.
func NewPlanHandler(
	generator PlanGeneratorInterface,
	plans PlanReaderInterface,
	validator *core.Validator,
	logger *slog.Logger,
) *PlanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanHandler{
		generator: generator,
		plans:     plans,
		validator: validator,
		logger:    logger,
	}
}

// RegisterRoutes mounts the plan endpoints onto the mux.
// All routes assume Authentication Middleware is already applied.
func (h *PlanHandler) RegisterRoutes(r chi.Router) {
	r.Route("/plans", func(r chi.Router) {
		r.Post("/generate", h.HandleGenerate)
		r.Get("/{week_start}", h.HandleGet)
	})
}

// HandleGenerate handles POST /v1/plans/generate.
//
//  1. Decode and statically validate the request body.
//  2. Run the generation orchestration for the authenticated user.
//  3. On success return the stored plan (201 on first generation would be
//     misleading since regenerations overwrite; a uniform 200 is returned).
//
// A persist failure is the one partial outcome: the response is the error
// envelope for persist_failed, with the validated in-memory plan attached
// to the error details so the caller does not lose the generation.
func (h *PlanHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"authentication required",
			nil,
		))
		return
	}

	var req types.GenerationRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.generator.Generate(r.Context(), actor.UserID, req)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodePersistFailed &&
			result != nil && result.Plan != nil {
			core.Error(w, r, appErr.WithDetails(map[string]any{"plan": result.Plan}))
			return
		}
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result.Stored})
}

// HandleGet handles GET /v1/plans/{week_start}.
// Returns the stored plan for the authenticated user and the given week.
func (h *PlanHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"authentication required",
			nil,
		))
		return
	}

	weekStartStr := chi.URLParam(r, "week_start")
	weekStart, err := time.Parse(types.WeekStartLayout, weekStartStr)
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidWeekStart,
			"week_start must be a YYYY-MM-DD date",
			err,
		))
		return
	}

	stored, err := h.plans.Get(r.Context(), actor.UserID, weekStart)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: stored})
}
