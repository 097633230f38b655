package entitlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"mealweek/internal/types"
)

// fakeSubscriptionStore returns an existing record if set, otherwise echoes
// the provisioning defaults back like the real INSERT ... ON CONFLICT path.
type fakeSubscriptionStore struct {
	mu       sync.Mutex
	existing *types.SubscriptionRecord
	calls    int
	lastDef  types.SubscriptionRecord
}

func (f *fakeSubscriptionStore) GetOrCreate(_ context.Context, userID string, defaults types.SubscriptionRecord) (*types.SubscriptionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastDef = defaults
	if f.existing != nil {
		return f.existing, nil
	}
	rec := defaults
	rec.UserID = userID
	return &rec, nil
}

func TestServiceCurrent_ProvisionsTrial(t *testing.T) {
	store := &fakeSubscriptionStore{}
	svc := NewService(store, nil, nil)
	svc.now = func() time.Time { return testNow }

	rec, ent, err := svc.Current(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}

	if rec.Tier != types.TierBasic || rec.Status != types.StatusTrialing {
		t.Errorf("provisioned record = %+v", rec)
	}
	wantTrialEnd := testNow.Add(types.TrialDuration)
	if rec.TrialUntil == nil || !rec.TrialUntil.Equal(wantTrialEnd) {
		t.Errorf("TrialUntil = %v, want %v", rec.TrialUntil, wantTrialEnd)
	}

	// A fresh trial resolves to plus.
	if !ent.InTrial || ent.EffectiveTier != types.TierPlus {
		t.Errorf("entitlement = %+v, want in-trial plus", ent)
	}
}

func TestServiceCurrent_ExistingRecordWins(t *testing.T) {
	periodEnd := testNow.Add(30 * 24 * time.Hour)
	store := &fakeSubscriptionStore{
		existing: &types.SubscriptionRecord{
			UserID:           "u1",
			Tier:             types.TierPlus,
			Status:           types.StatusActive,
			CurrentPeriodEnd: &periodEnd,
		},
	}
	svc := NewService(store, nil, nil)
	svc.now = func() time.Time { return testNow }

	rec, ent, err := svc.Current(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if rec.Tier != types.TierPlus {
		t.Errorf("Tier = %s, want plus", rec.Tier)
	}
	if ent.InTrial {
		t.Error("InTrial = true for a paid record without trial")
	}
	if ent.EffectiveTier != types.TierPlus {
		t.Errorf("EffectiveTier = %s, want plus", ent.EffectiveTier)
	}
}

func TestServiceCurrent_DistinctUsersAreNotCollapsed(t *testing.T) {
	store := &fakeSubscriptionStore{}
	svc := NewService(store, nil, nil)
	svc.now = func() time.Time { return testNow }

	recA, _, err := svc.Current(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Current(alice) error = %v", err)
	}
	recB, _, err := svc.Current(context.Background(), "bob")
	if err != nil {
		t.Fatalf("Current(bob) error = %v", err)
	}

	if recA.UserID == recB.UserID {
		t.Error("distinct users resolved to the same record")
	}
	if store.calls != 2 {
		t.Errorf("store calls = %d, want 2", store.calls)
	}
}
