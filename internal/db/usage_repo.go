package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"mealweek/internal/types"
)

// UsageRepo provides data access for the usage_counters table and implements
// quota.CounterStore.
//
// The table has a composite primary key (user_id, week_start) with one row
// per user per ISO week-start date. The increment is a single server-side
// conditional statement, never a read-then-write upsert: two simultaneous
// reservations for the same key cannot both slip past the limit.
type UsageRepo struct {
	db DBTX
}

// NewUsageRepo creates a UsageRepo backed by the given database connection
// (pool or transaction).
func NewUsageRepo(db DBTX) *UsageRepo {
	return &UsageRepo{db: db}
}

// ReserveIncrement atomically advances the counter while it is below limit.
//
// The statement inserts the week's row on first use and otherwise performs a
// guarded increment; the WHERE clause re-reads the stored count under the
// row lock, so concurrent callers serialize on the row and at most limit
// increments ever succeed. When the guard fails nothing is returned and the
// current count is read separately for the denial diagnostics.
func (r *UsageRepo) ReserveIncrement(ctx context.Context, userID string, weekStart time.Time, limit int) (int, bool, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`INSERT INTO usage_counters (user_id, week_start, count)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (user_id, week_start) DO UPDATE
		 SET count = usage_counters.count + 1
		 WHERE usage_counters.count < $3
		 RETURNING count`,
		userID,
		weekStart,
		limit,
	).Scan(&count)

	if errors.Is(err, pgx.ErrNoRows) {
		// Guard failed: the counter is at or above the limit.
		current, readErr := r.Count(ctx, userID, weekStart)
		if readErr != nil {
			return 0, false, readErr
		}
		return current, false, nil
	}
	if err != nil {
		return 0, false, types.NewAppError(types.ErrCodeInternalDB, "failed to reserve usage increment", err)
	}

	return count, true, nil
}

// ReleaseDecrement undoes one reserved increment. The guard keeps the
// counter non-negative even if a release is replayed.
func (r *UsageRepo) ReleaseDecrement(ctx context.Context, userID string, weekStart time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE usage_counters
		 SET count = count - 1
		 WHERE user_id = $1 AND week_start = $2 AND count > 0`,
		userID,
		weekStart,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release usage increment", err)
	}
	return nil
}

// Count returns the current counter value for the key, zero when the week
// has no row yet.
func (r *UsageRepo) Count(ctx context.Context, userID string, weekStart time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT count FROM usage_counters WHERE user_id = $1 AND week_start = $2`,
		userID,
		weekStart,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to read usage counter", err)
	}
	return count, nil
}
