// Package quota tracks the per-user-per-week generation counter and exposes
// it as an explicit reserve/commit/rollback capability.
//
// The reservation model is increment-at-reserve: TryReserve atomically
// advances the counter only while count < limit, and Rollback restores it if
// the generation fails downstream. Committed increments therefore never
// exceed the weekly limit, even when concurrent requests for the same
// (user, week) both pass the pre-check.
package quota

import (
	"context"
	"log/slog"
	"time"
)

// rollbackTimeout bounds the release call. Rollback frequently runs after
// the request context that triggered it has been canceled (client timeout,
// disconnect mid-generation), so it detaches from that context and carries
// its own deadline instead.
const rollbackTimeout = 5 * time.Second

// CounterStore is the storage contract the ledger requires. The increment
// must be a server-side conditional operation, not a read-then-write upsert:
// ReserveIncrement only succeeds while the stored count is below limit.
// Implemented by db.UsageRepo.
type CounterStore interface {
	// ReserveIncrement atomically increments the counter for the key if and
	// only if the current count is below limit. Returns the count after the
	// increment and true, or the unchanged current count and false when the
	// limit has been reached.
	ReserveIncrement(ctx context.Context, userID string, weekStart time.Time, limit int) (count int, ok bool, err error)

	// ReleaseDecrement undoes one reserved increment. It must never take the
	// counter below zero.
	ReleaseDecrement(ctx context.Context, userID string, weekStart time.Time) error

	// Count returns the current counter value, zero if no row exists.
	Count(ctx context.Context, userID string, weekStart time.Time) (int, error)
}

// Reservation is a tentative quota consumption pending generation success.
// Exactly one of Commit or Rollback should be called; both are idempotent.
type Reservation struct {
	UserID     string
	WeekStart  time.Time
	UsedBefore int

	ledger  *Ledger
	settled bool
}

// Denial reports a reservation refused because the weekly limit was reached.
// It is a business outcome, not a fault; callers translate it to the
// weekly_limit_reached rejection.
type Denial struct {
	Used  int
	Limit int
}

// Ledger coordinates quota reservations against the counter store.
type Ledger struct {
	store  CounterStore
	logger *slog.Logger
}

// NewLedger creates a quota Ledger backed by the given counter store.
func NewLedger(store CounterStore, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, logger: logger}
}

// TryReserve attempts to reserve one generation for the key. On success the
// counter has already been advanced and the returned Reservation must be
// settled with Commit or Rollback. When the limit is reached it returns a
// Denial carrying the observed used/limit pair and no Reservation.
//
// The reservation is a short-lived step: no lock is held while the caller
// performs the long-latency upstream generation call.
func (l *Ledger) TryReserve(ctx context.Context, userID string, weekStart time.Time, limit int) (*Reservation, *Denial, error) {
	count, ok, err := l.store.ReserveIncrement(ctx, userID, weekStart, limit)
	if err != nil {
		return nil, nil, err
	}

	if !ok {
		l.logger.InfoContext(ctx, "quota reservation denied",
			slog.String("user_id", userID),
			slog.Time("week_start", weekStart),
			slog.Int("used", count),
			slog.Int("limit", limit),
		)
		return nil, &Denial{Used: count, Limit: limit}, nil
	}

	return &Reservation{
		UserID:     userID,
		WeekStart:  weekStart,
		UsedBefore: count - 1,
		ledger:     l,
	}, nil, nil
}

// Commit makes the reservation durable. With increment-at-reserve the
// counter already reflects the consumption, so Commit only seals the
// reservation against a later Rollback.
func (r *Reservation) Commit(ctx context.Context) {
	if r == nil || r.settled {
		return
	}
	r.settled = true
}

// Rollback releases the reservation, restoring the counter to its
// pre-reservation value. A failed or rejected generation must leave the
// counter unchanged, so every non-committed path calls Rollback — including
// the paths where the request context itself is what failed. The decrement
// therefore runs on a detached context: a canceled request must still get
// its refund.
func (r *Reservation) Rollback(ctx context.Context) error {
	if r == nil || r.settled {
		return nil
	}
	r.settled = true

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	if err := r.ledger.store.ReleaseDecrement(ctx, r.UserID, r.WeekStart); err != nil {
		// The decrement failed; the user may be over-charged for this week.
		// Surface it loudly for operators rather than swallowing it.
		r.ledger.logger.ErrorContext(ctx, "quota rollback failed; counter may over-count",
			slog.String("user_id", r.UserID),
			slog.Time("week_start", r.WeekStart),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// Used returns the current counter value for the key, for display alongside
// the entitlement limit.
func (l *Ledger) Used(ctx context.Context, userID string, weekStart time.Time) (int, error) {
	return l.store.Count(ctx, userID, weekStart)
}
