package entitlement

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"mealweek/internal/types"
)

// SubscriptionStore is the data access the service needs for subscription
// records. Implemented by db.SubscriptionRepo.
type SubscriptionStore interface {
	// GetOrCreate returns the subscription record for the user, lazily
	// provisioning the trial record if none exists. The insert must be
	// race-safe: two concurrent first calls for one user yield one row.
	GetOrCreate(ctx context.Context, userID string, defaults types.SubscriptionRecord) (*types.SubscriptionRecord, error)
}

// Service resolves the current entitlement for a user, provisioning the
// 14-day trial record on first use.
type Service struct {
	store    SubscriptionStore
	resolver *Resolver
	logger   *slog.Logger
	now      func() time.Time

	// group collapses concurrent first-use lookups for the same user into a
	// single provisioning round trip.
	group singleflight.Group
}

// NewService creates an entitlement Service.
func NewService(store SubscriptionStore, resolver *Resolver, logger *slog.Logger) *Service {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// Current returns the user's subscription record and its resolved entitlement.
// A missing record triggers trial provisioning: tier=basic, status=trialing,
// trial_until = now + 14 days.
func (s *Service) Current(ctx context.Context, userID string) (*types.SubscriptionRecord, types.Entitlement, error) {
	now := s.now()

	v, err, _ := s.group.Do(userID, func() (any, error) {
		trialUntil := now.Add(types.TrialDuration)
		defaults := types.SubscriptionRecord{
			UserID:     userID,
			Tier:       types.TierBasic,
			Status:     types.StatusTrialing,
			TrialUntil: &trialUntil,
		}
		return s.store.GetOrCreate(ctx, userID, defaults)
	})
	if err != nil {
		return nil, types.Entitlement{}, err
	}

	rec := v.(*types.SubscriptionRecord)
	ent := s.resolver.Resolve(*rec, now)

	s.logger.DebugContext(ctx, "entitlement resolved",
		slog.String("user_id", userID),
		slog.String("tier", string(rec.Tier)),
		slog.String("effective_tier", string(ent.EffectiveTier)),
		slog.Bool("in_trial", ent.InTrial),
		slog.Int("weekly_limit", ent.GenerationLimitPerWeek),
	)

	return rec, ent, nil
}

// Resolver exposes the underlying pure resolver, for callers that already
// hold a subscription record.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}
