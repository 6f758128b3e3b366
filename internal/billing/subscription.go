// Package billing keeps local subscription state consistent with the
// external payment provider and applies local-only expiry downgrades.
package billing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
)

// Service reconciles User.tier/status with provider-reported subscription
// state. A nil provider means billing is not configured and sync is a no-op.
type Service struct {
	provider screenshot.BillingProvider
	users    screenshot.UserStore
	clock    screenshot.Clock
	logger   *zap.Logger
}

// NewService constructs the subscription state service.
func NewService(provider screenshot.BillingProvider, users screenshot.UserStore, clock screenshot.Clock, logger *zap.Logger) *Service {
	return &Service{
		provider: provider,
		users:    users,
		clock:    clock,
		logger:   logger,
	}
}

// SyncFromProvider refreshes the user's tier/status/expiry from the billing
// provider. Returns whether a successful, authoritative sync happened.
// Provider failures return ErrProviderSync with the user left untouched; a
// failed network call must never produce a synthetic downgrade.
func (s *Service) SyncFromProvider(ctx context.Context, user *screenshot.User) (bool, error) {
	if s.provider == nil || user.StripeCustomerID == "" {
		return false, nil
	}

	snap, err := s.provider.ActiveSubscription(ctx, user.StripeCustomerID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", screenshot.ErrProviderSync, err)
	}

	if snap == nil {
		// No active subscription at the provider: downgrade, unless the
		// user is already free (avoid redundant writes).
		if user.Tier == screenshot.TierFree && user.Status == screenshot.StatusInactive {
			return true, nil
		}
		user.Tier = screenshot.TierFree
		user.Status = screenshot.StatusInactive
		user.ExpiresAt = nil
		if err := s.users.SaveUser(ctx, *user); err != nil {
			return false, fmt.Errorf("persist downgrade for %s: %w", user.ID, err)
		}
		s.logger.Info("subscription lapsed at provider, downgraded to free",
			zap.String("user_id", user.ID))
		return true, nil
	}

	tier := InferTier(snap.TierTag, snap.PriceHint)
	expiry := snap.CurrentPeriodEnd
	user.Tier = tier
	user.Status = snap.Status
	user.ExpiresAt = &expiry
	if err := s.users.SaveUser(ctx, *user); err != nil {
		return false, fmt.Errorf("persist subscription sync for %s: %w", user.ID, err)
	}
	return true, nil
}

// ApplyLocalExpiryIfDue downgrades a user whose subscription expiry has
// passed: tier free, status expired, counters zeroed. This is the safety net
// that runs regardless of provider reachability. Reports whether a
// downgrade happened.
func (s *Service) ApplyLocalExpiryIfDue(ctx context.Context, user *screenshot.User) (bool, error) {
	if user.ExpiresAt == nil || user.Tier == screenshot.TierFree {
		return false, nil
	}
	if !s.clock.Now().After(*user.ExpiresAt) {
		return false, nil
	}

	user.Tier = screenshot.TierFree
	user.Status = screenshot.StatusExpired
	user.Usage = screenshot.UsageCounters{}
	if err := s.users.SaveUser(ctx, *user); err != nil {
		return false, fmt.Errorf("persist expiry downgrade for %s: %w", user.ID, err)
	}
	s.logger.Info("subscription expired locally, downgraded to free",
		zap.String("user_id", user.ID))
	return true, nil
}

// Refresh runs the full tier-currency check: provider sync when configured,
// with the local expiry downgrade as fallback. A successful sync is
// authoritative and suppresses the expiry path; sync errors are logged and
// swallowed so they never surface to end users.
func (s *Service) Refresh(ctx context.Context, user *screenshot.User) error {
	synced, err := s.SyncFromProvider(ctx, user)
	if err != nil {
		if !errors.Is(err, screenshot.ErrProviderSync) {
			return err
		}
		s.logger.Warn("billing provider unreachable, keeping local tier",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
	if synced {
		return nil
	}
	if _, err := s.ApplyLocalExpiryIfDue(ctx, user); err != nil {
		return err
	}
	return nil
}
