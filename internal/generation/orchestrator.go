package generation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mealweek/internal/entitlement"
	"mealweek/internal/plan"
	"mealweek/internal/quota"
	"mealweek/internal/types"
)

// EntitlementSource resolves the caller's subscription record and
// entitlement, provisioning the trial on first use.
// Implemented by entitlement.Service.
type EntitlementSource interface {
	Current(ctx context.Context, userID string) (*types.SubscriptionRecord, types.Entitlement, error)
}

// Completer performs the single upstream generation call.
// Implemented by external.CompletionClient.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// PlanStore persists generated plans.
// Implemented by db.PlanRepo.
type PlanStore interface {
	// Upsert stores the plan keyed by (user_id, week_start) and increments
	// its generation count.
	Upsert(ctx context.Context, userID string, weekStart time.Time, p types.GeneratedPlan) (*types.StoredPlan, error)
}

// OutcomeRecorder receives the terminal outcome of each orchestrated call
// for telemetry. A nil recorder disables recording.
type OutcomeRecorder interface {
	RecordGeneration(outcome types.GenerationOutcome, duration time.Duration)
}

// Result is the outcome of one orchestrated generation call.
//
// On success both fields are set. On a persist failure Plan still carries
// the validated in-memory plan alongside the persist_failed error, because
// the generation succeeded from the user's perspective and must not be
// silently discarded (nor charged: the reservation is rolled back).
type Result struct {
	Plan   *types.GeneratedPlan
	Stored *types.StoredPlan
}

// Orchestrator composes entitlement resolution, request validation, quota
// reservation, upstream generation, completeness validation and persistence
// into the end-to-end generation cycle.
//
// Each call is an independent, stateless execution; the only cross-request
// coordination is inside the quota ledger. The upstream call happens with no
// lock held: the reservation before it and the commit/rollback after it are
// separate short-lived steps.
type Orchestrator struct {
	entitlements EntitlementSource
	ledger       *quota.Ledger
	completer    Completer
	plans        PlanStore
	outcomes     OutcomeRecorder
	logger       *slog.Logger
	now          func() time.Time
}

// NewOrchestrator creates a generation Orchestrator.
func NewOrchestrator(
	entitlements EntitlementSource,
	ledger *quota.Ledger,
	completer Completer,
	plans PlanStore,
	outcomes OutcomeRecorder,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		entitlements: entitlements,
		ledger:       ledger,
		completer:    completer,
		plans:        plans,
		outcomes:     outcomes,
		logger:       logger,
		now:          time.Now,
	}
}

// Generate runs one generation call for the authenticated user.
//
// Error exits, in pipeline order:
//   - auth_token_missing: empty user ID; nothing else runs (fail closed).
//   - subscription_inactive (402): terminal business decision, carries the
//     current plan tier and status.
//   - validation_* / style_not_allowed: fails before any quota or upstream
//     cost is incurred.
//   - weekly_limit_reached (429): the upstream service is never invoked for
//     a request that cannot be accepted; carries used/limit.
//   - upstream_generation_failed (502): reservation rolled back; the
//     upstream error payload is forwarded unmodified.
//   - plan_parse_failed / plan_missing_recipes (500): the upstream answered
//     badly; reservation rolled back.
//   - persist_failed (500): plan generated and validated but not saved;
//     reservation rolled back and the in-memory plan is still returned.
//
// There is no retry loop here: every failure is terminal for this call and
// the caller may re-invoke the whole orchestration.
func (o *Orchestrator) Generate(ctx context.Context, userID string, req types.GenerationRequest) (*Result, error) {
	started := o.now()

	if userID == "" {
		return nil, o.finish(ctx, started, types.OutcomeUnauthorized, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"authentication required",
			nil,
		))
	}

	// Resolving: subscription record + derived entitlement.
	rec, ent, err := o.entitlements.Current(ctx, userID)
	if err != nil {
		return nil, o.finish(ctx, started, types.OutcomeRejected, err)
	}

	if !entitlement.Active(*rec, o.now()) {
		return nil, o.finish(ctx, started, types.OutcomeRejected, types.NewAppErrorWithDetails(
			types.ErrCodeSubscriptionInactive,
			"subscription does not permit plan generation",
			nil,
			map[string]any{
				"plan":   string(rec.Tier),
				"status": string(rec.Status),
			},
		))
	}

	// Validating: shape and policy legality against the entitlement.
	valid, err := ValidateRequest(req, ent)
	if err != nil {
		return nil, o.finish(ctx, started, types.OutcomeRejected, err)
	}

	// Reserving: short-lived atomic quota step. A denial exits before the
	// adapter so the upstream service is never invoked for a request that
	// cannot possibly be accepted.
	reservation, denial, err := o.ledger.TryReserve(ctx, userID, valid.WeekStart, ent.GenerationLimitPerWeek)
	if err != nil {
		return nil, o.finish(ctx, started, types.OutcomeRejected, err)
	}
	if denial != nil {
		return nil, o.finish(ctx, started, types.OutcomeQuotaExceeded, types.NewAppErrorWithDetails(
			types.ErrCodeWeeklyLimitReached,
			"weekly generation limit reached",
			nil,
			map[string]any{
				"used":  denial.Used,
				"limit": denial.Limit,
				"plan":  string(ent.EffectiveTier),
			},
		))
	}

	// Generating: the single long-latency call of the pipeline. No lock on
	// the usage counter is held while it is in flight.
	prompt := BuildPrompt(*valid, ent.CaloriesEnabled)
	rawText, err := o.completer.Complete(ctx, prompt)
	if err != nil {
		o.rollback(ctx, reservation)
		return nil, o.finish(ctx, started, types.OutcomeUpstreamFailed, err)
	}

	// Verifying: structural contract on the artifact. A rejected output
	// must not consume quota.
	generated, err := plan.ValidateAndNormalize(rawText)
	if err != nil {
		o.rollback(ctx, reservation)
		return nil, o.finish(ctx, started, types.OutcomeOutputRejected, o.mapPlanError(err))
	}

	// Committing: persist the plan, then make the reservation durable.
	stored, err := o.plans.Upsert(ctx, userID, valid.WeekStart, *generated)
	if err != nil {
		o.rollback(ctx, reservation)
		return &Result{Plan: generated}, o.finish(ctx, started, types.OutcomePersistFailed, types.NewAppError(
			types.ErrCodePersistFailed,
			"plan was generated but could not be saved",
			err,
		))
	}

	reservation.Commit(ctx)

	o.logger.InfoContext(ctx, "plan generation committed",
		slog.String("user_id", userID),
		slog.Time("week_start", valid.WeekStart),
		slog.String("style", string(valid.Style)),
		slog.Int("used_before", reservation.UsedBefore),
		slog.Duration("duration", o.now().Sub(started)),
	)
	o.record(types.OutcomeCommitted, o.now().Sub(started))

	return &Result{Plan: generated, Stored: stored}, nil
}

// mapPlanError translates the plan package's typed validation errors into
// the AppError taxonomy, preserving their diagnostics in details.
func (o *Orchestrator) mapPlanError(err error) error {
	var parseErr *plan.ParseError
	if errors.As(err, &parseErr) {
		return types.NewAppErrorWithDetails(
			types.ErrCodePlanParseFailed,
			"generated output could not be parsed as a plan",
			parseErr,
			map[string]any{"raw": parseErr.Raw},
		)
	}

	var incompleteErr *plan.IncompleteError
	if errors.As(err, &incompleteErr) {
		return types.NewAppErrorWithDetails(
			types.ErrCodePlanMissingRecipes,
			"generated plan is structurally incomplete",
			incompleteErr,
			map[string]any{
				"missing":    incompleteErr.Missing,
				"days_found": incompleteErr.DaysFound,
			},
		)
	}

	return types.NewAppError(types.ErrCodeInternalUnexpected, "plan validation failed", err)
}

// rollback releases a reservation, logging but not propagating release
// failures: the caller's error is the one the user must see.
func (o *Orchestrator) rollback(ctx context.Context, r *quota.Reservation) {
	if err := r.Rollback(ctx); err != nil {
		o.logger.ErrorContext(ctx, "reservation rollback failed",
			slog.String("user_id", r.UserID),
			slog.String("error", err.Error()),
		)
	}
}

// finish records the outcome and returns err unchanged, so error exits can
// be single-expression returns.
func (o *Orchestrator) finish(ctx context.Context, started time.Time, outcome types.GenerationOutcome, err error) error {
	duration := o.now().Sub(started)
	if err != nil {
		o.logger.WarnContext(ctx, "plan generation did not commit",
			slog.String("outcome", string(outcome)),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
	}
	o.record(outcome, duration)
	return err
}

// record forwards the outcome to the recorder when one is configured.
func (o *Orchestrator) record(outcome types.GenerationOutcome, duration time.Duration) {
	if o.outcomes != nil {
		o.outcomes.RecordGeneration(outcome, duration)
	}
}
