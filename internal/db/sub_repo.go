package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"mealweek/internal/types"
)

// SubscriptionRepo provides data access for the subscriptions table.
//
// Key invariants:
//   - At most one row per user (user_id is the primary key).
//   - GetOrCreate provisions the trial row race-safely: concurrent first
//     calls for one user resolve to the same single row.
//   - UpdateFromEvent uses optimistic locking via last_event_at to handle
//     out-of-order payment-processor webhooks.
type SubscriptionRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewSubscriptionRepo creates a SubscriptionRepo backed by the given
// database connection (pool or transaction).
func NewSubscriptionRepo(db DBTX, logger *slog.Logger) *SubscriptionRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionRepo{db: db, logger: logger}
}

// GetOrCreate returns the subscription record for the user, inserting the
// provided defaults when no row exists. The INSERT uses ON CONFLICT DO
// NOTHING so a racing concurrent insert is harmless; the subsequent SELECT
// observes whichever row won.
func (r *SubscriptionRepo) GetOrCreate(ctx context.Context, userID string, defaults types.SubscriptionRecord) (*types.SubscriptionRecord, error) {
	_, err := r.db.Exec(ctx,
		`INSERT INTO subscriptions (user_id, tier, status, trial_until, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())
		 ON CONFLICT (user_id) DO NOTHING`,
		userID,
		defaults.Tier,
		defaults.Status,
		defaults.TrialUntil,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to provision subscription", err)
	}

	return r.Get(ctx, userID)
}

// Get returns the subscription record for the user, or not_found_user when
// no row exists.
func (r *SubscriptionRepo) Get(ctx context.Context, userID string) (*types.SubscriptionRecord, error) {
	var rec types.SubscriptionRecord
	err := r.db.QueryRow(ctx,
		`SELECT user_id, tier, status, trial_until, current_period_end,
		        COALESCE(stripe_customer_id, ''), created_at, updated_at
		 FROM subscriptions
		 WHERE user_id = $1`,
		userID,
	).Scan(
		&rec.UserID,
		&rec.Tier,
		&rec.Status,
		&rec.TrialUntil,
		&rec.CurrentPeriodEnd,
		&rec.StripeCustomerID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundUser, "subscription not found", err)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read subscription", err)
	}
	return &rec, nil
}

// UpdateFromEvent applies a payment-processor event to the subscription row.
//
// Optimistic locking: the update only applies when the event is newer than
// the last processed one, so stale or duplicate webhook deliveries are
// idempotent no-ops.
func (r *SubscriptionRepo) UpdateFromEvent(
	ctx context.Context,
	userID string,
	tier types.Tier,
	status types.SubscriptionStatus,
	currentPeriodEnd *time.Time,
	eventTimestamp time.Time,
) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions
		 SET tier = $1,
		     status = $2,
		     current_period_end = $3,
		     last_event_at = $4,
		     updated_at = NOW()
		 WHERE user_id = $5
		   AND (last_event_at IS NULL OR last_event_at < $4)`,
		tier,
		status,
		currentPeriodEnd,
		eventTimestamp,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update subscription from event", err)
	}

	if tag.RowsAffected() == 0 {
		// Event is older than or equal to what we already have, or the user
		// has no subscription row yet. Idempotent no-op either way.
		r.logger.InfoContext(ctx, "stale subscription event ignored (optimistic lock)",
			slog.String("user_id", userID),
			slog.Time("event_timestamp", eventTimestamp),
		)
	}

	return nil
}

// SetStripeCustomerID links the payment-processor customer handle to the
// user's subscription row.
func (r *SubscriptionRepo) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE subscriptions
		 SET stripe_customer_id = $1, updated_at = NOW()
		 WHERE user_id = $2`,
		customerID,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to set stripe customer id", err)
	}
	return nil
}

// FindByStripeCustomerID resolves the user that owns a payment-processor
// customer handle, for webhook events that only carry the customer ID.
func (r *SubscriptionRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (string, error) {
	var userID string
	err := r.db.QueryRow(ctx,
		`SELECT user_id FROM subscriptions WHERE stripe_customer_id = $1`,
		customerID,
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", types.NewAppError(types.ErrCodeNotFoundUser, "no subscription for stripe customer", err)
	}
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to look up stripe customer", err)
	}
	return userID, nil
}
