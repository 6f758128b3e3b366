package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
	memoryusers "github.com/Ambro19/pixelperfect-sub000/internal/users/memory"
)

type fakeProvider struct {
	snap *screenshot.SubscriptionSnapshot
	err  error
}

func (f *fakeProvider) ActiveSubscription(context.Context, string) (*screenshot.SubscriptionSnapshot, error) {
	return f.snap, f.err
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func paidUser() screenshot.User {
	expiry := testNow.Add(30 * 24 * time.Hour)
	return screenshot.User{
		ID:               "u1",
		Tier:             screenshot.TierPro,
		Status:           screenshot.StatusActive,
		StripeCustomerID: "cus_123",
		ExpiresAt:        &expiry,
		Usage:            screenshot.UsageCounters{Screenshots: 42},
	}
}

func newSubService(provider screenshot.BillingProvider, user screenshot.User) (*Service, *memoryusers.Store) {
	users := memoryusers.New()
	users.Put(user)
	return NewService(provider, users, fixedClock{now: testNow}, zap.NewNop()), users
}

func TestSyncUpdatesTierFromSnapshot(t *testing.T) {
	t.Parallel()

	periodEnd := testNow.Add(20 * 24 * time.Hour)
	provider := &fakeProvider{snap: &screenshot.SubscriptionSnapshot{
		TierTag:          "business",
		Status:           screenshot.StatusActive,
		CurrentPeriodEnd: periodEnd,
	}}
	user := paidUser()
	svc, users := newSubService(provider, user)

	synced, err := svc.SyncFromProvider(context.Background(), &user)
	require.NoError(t, err)
	assert.True(t, synced)
	assert.Equal(t, screenshot.TierBusiness, user.Tier)
	require.NotNil(t, user.ExpiresAt)
	assert.Equal(t, periodEnd, *user.ExpiresAt)

	stored, err := users.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, screenshot.TierBusiness, stored.Tier)
}

func TestSyncDowngradesWhenNoActiveSubscription(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{snap: nil}
	user := paidUser()
	svc, users := newSubService(provider, user)

	synced, err := svc.SyncFromProvider(context.Background(), &user)
	require.NoError(t, err)
	assert.True(t, synced)
	assert.Equal(t, screenshot.TierFree, user.Tier)
	assert.Equal(t, screenshot.StatusInactive, user.Status)
	assert.Nil(t, user.ExpiresAt)

	stored, err := users.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, screenshot.TierFree, stored.Tier)
}

func TestSyncProviderErrorKeepsLocalState(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{err: errors.New("stripe timeout")}
	user := paidUser()
	svc, users := newSubService(provider, user)

	synced, err := svc.SyncFromProvider(context.Background(), &user)
	require.ErrorIs(t, err, screenshot.ErrProviderSync)
	assert.False(t, synced)
	assert.Equal(t, screenshot.TierPro, user.Tier, "a failed call must never downgrade")

	stored, err := users.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, screenshot.TierPro, stored.Tier)
}

func TestSyncNoopWithoutProviderOrCustomerID(t *testing.T) {
	t.Parallel()

	user := paidUser()
	svc, _ := newSubService(nil, user)
	synced, err := svc.SyncFromProvider(context.Background(), &user)
	require.NoError(t, err)
	assert.False(t, synced)

	user2 := paidUser()
	user2.StripeCustomerID = ""
	svc2, _ := newSubService(&fakeProvider{}, user2)
	synced, err = svc2.SyncFromProvider(context.Background(), &user2)
	require.NoError(t, err)
	assert.False(t, synced)
}

func TestApplyLocalExpiryDowngradesAndZeroesCounters(t *testing.T) {
	t.Parallel()

	user := paidUser()
	past := testNow.Add(-time.Hour)
	user.ExpiresAt = &past
	svc, users := newSubService(nil, user)

	downgraded, err := svc.ApplyLocalExpiryIfDue(context.Background(), &user)
	require.NoError(t, err)
	assert.True(t, downgraded)
	assert.Equal(t, screenshot.TierFree, user.Tier)
	assert.Equal(t, screenshot.StatusExpired, user.Status)
	assert.Zero(t, user.Usage.Screenshots)

	stored, err := users.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, screenshot.StatusExpired, stored.Status)
}

func TestApplyLocalExpiryNotDue(t *testing.T) {
	t.Parallel()

	user := paidUser()
	svc, _ := newSubService(nil, user)

	downgraded, err := svc.ApplyLocalExpiryIfDue(context.Background(), &user)
	require.NoError(t, err)
	assert.False(t, downgraded)
	assert.Equal(t, screenshot.TierPro, user.Tier)
}

func TestRefreshSwallowsProviderErrorAndFallsBackToExpiry(t *testing.T) {
	t.Parallel()

	user := paidUser()
	past := testNow.Add(-time.Hour)
	user.ExpiresAt = &past
	provider := &fakeProvider{err: errors.New("stripe down")}
	svc, _ := newSubService(provider, user)

	err := svc.Refresh(context.Background(), &user)
	require.NoError(t, err)
	assert.Equal(t, screenshot.TierFree, user.Tier,
		"expiry safety net applies when sync fails")
}

func TestRefreshSuccessfulSyncSuppressesExpiryPath(t *testing.T) {
	t.Parallel()

	// Provider says active even though local expiry passed; the sync's fresh
	// period end wins.
	user := paidUser()
	past := testNow.Add(-time.Hour)
	user.ExpiresAt = &past
	provider := &fakeProvider{snap: &screenshot.SubscriptionSnapshot{
		TierTag:          "pro",
		Status:           screenshot.StatusActive,
		CurrentPeriodEnd: testNow.Add(30 * 24 * time.Hour),
	}}
	svc, _ := newSubService(provider, user)

	err := svc.Refresh(context.Background(), &user)
	require.NoError(t, err)
	assert.Equal(t, screenshot.TierPro, user.Tier)
	assert.Equal(t, screenshot.StatusActive, user.Status)
}
