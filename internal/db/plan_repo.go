package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mealweek/internal/types"
)

// PlanRepo provides data access for the plans table and implements
// generation.PlanStore. Plans are stored as JSONB keyed by
// (user_id, week_start); each upsert increments the row's generation_count.
type PlanRepo struct {
	db DBTX
}

// NewPlanRepo creates a PlanRepo backed by the given database connection
// (pool or transaction).
func NewPlanRepo(db DBTX) *PlanRepo {
	return &PlanRepo{db: db}
}

// Upsert stores the generated plan for the key, replacing any previous plan
// for the same week and incrementing generation_count.
func (r *PlanRepo) Upsert(ctx context.Context, userID string, weekStart time.Time, p types.GeneratedPlan) (*types.StoredPlan, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to serialize plan", err)
	}

	stored := types.StoredPlan{
		UserID:    userID,
		WeekStart: weekStart,
		Plan:      p,
	}
	err = r.db.QueryRow(ctx,
		`INSERT INTO plans (id, user_id, week_start, plan, generation_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 1, NOW(), NOW())
		 ON CONFLICT (user_id, week_start) DO UPDATE
		 SET plan = EXCLUDED.plan,
		     generation_count = plans.generation_count + 1,
		     updated_at = NOW()
		 RETURNING id, generation_count, created_at, updated_at`,
		uuid.NewString(),
		userID,
		weekStart,
		payload,
	).Scan(&stored.ID, &stored.GenerationCount, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to persist plan", err)
	}

	return &stored, nil
}

// Get returns the stored plan for the key, or not_found_plan.
func (r *PlanRepo) Get(ctx context.Context, userID string, weekStart time.Time) (*types.StoredPlan, error) {
	var (
		stored  types.StoredPlan
		payload []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, week_start, plan, generation_count, created_at, updated_at
		 FROM plans
		 WHERE user_id = $1 AND week_start = $2`,
		userID,
		weekStart,
	).Scan(
		&stored.ID,
		&stored.UserID,
		&stored.WeekStart,
		&payload,
		&stored.GenerationCount,
		&stored.CreatedAt,
		&stored.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundPlan, "no plan for this week", err)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read plan", err)
	}

	if err := json.Unmarshal(payload, &stored.Plan); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to decode stored plan", err)
	}

	return &stored, nil
}
