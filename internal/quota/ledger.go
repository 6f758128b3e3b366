// Package quota implements admission control and usage accounting against
// tier-derived limits.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ambro19/pixelperfect-sub000/internal/metrics"
	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
)

// OperationKind identifies which usage counter an operation charges.
type OperationKind string

// Charged operation kinds.
const (
	OpScreenshot OperationKind = "screenshot"
	OpBatch      OperationKind = "batch"
	OpAPICall    OperationKind = "api_call"
)

// Reservation is a provisional admission grant. It must be either committed
// after the operation fully succeeds (including storage) or released on any
// failure; only Commit ever increments the persisted counter.
type Reservation struct {
	UserID string
	Kind   OperationKind

	once sync.Once
}

// Ledger serializes reserve/commit/release per user so concurrent requests
// cannot both pass an admission check that only one limit slot allows.
type Ledger struct {
	users  screenshot.UserStore
	clock  screenshot.Clock
	limits map[screenshot.Tier]screenshot.TierLimits
	logger *zap.Logger

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	pending map[string]screenshot.UsageCounters
}

// New constructs a Ledger over the given user store. A nil limits table uses
// the built-in defaults.
func New(users screenshot.UserStore, clock screenshot.Clock, limits map[screenshot.Tier]screenshot.TierLimits, logger *zap.Logger) *Ledger {
	if limits == nil {
		limits = screenshot.DefaultTierLimits
	}
	return &Ledger{
		users:   users,
		clock:   clock,
		limits:  limits,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
		pending: make(map[string]screenshot.UsageCounters),
	}
}

// Limits returns the configured limit table entry for a tier.
func (l *Ledger) Limits(tier screenshot.Tier) screenshot.TierLimits {
	return screenshot.LimitsFor(l.limits, tier)
}

// CheckAndReserve admits or rejects one operation for the user. On success
// the returned reservation holds a slot that counts against the limit until
// committed or released.
func (l *Ledger) CheckAndReserve(ctx context.Context, userID string, kind OperationKind) (*Reservation, error) {
	userLock := l.userLock(userID)
	userLock.Lock()
	defer userLock.Unlock()

	user, err := l.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	if rolled := l.rolloverIfDue(&user); rolled {
		if err := l.users.SaveUser(ctx, user); err != nil {
			return nil, fmt.Errorf("persist usage rollover for %s: %w", userID, err)
		}
	}

	tier := user.EffectiveTier()
	limit, capped := limitFor(l.Limits(tier), kind)
	used := counterFor(user.Usage, kind) + counterFor(l.pendingFor(userID), kind)
	if capped && used >= limit {
		metrics.IncQuotaDenied(string(tier), string(kind))
		return nil, fmt.Errorf("%w: %s limit %d reached for tier %s", screenshot.ErrQuotaExceeded, kind, limit, tier)
	}

	l.adjustPending(userID, kind, 1)
	return &Reservation{UserID: userID, Kind: kind}, nil
}

// Commit finalizes a reservation, incrementing the persisted counter. Call
// only after the operation fully succeeded, storage included.
func (l *Ledger) Commit(ctx context.Context, res *Reservation) error {
	if res == nil {
		return nil
	}
	var commitErr error
	res.once.Do(func() {
		userLock := l.userLock(res.UserID)
		userLock.Lock()
		defer userLock.Unlock()

		l.adjustPending(res.UserID, res.Kind, -1)

		user, err := l.users.GetUser(ctx, res.UserID)
		if err != nil {
			commitErr = fmt.Errorf("load user %s: %w", res.UserID, err)
			return
		}
		l.rolloverIfDue(&user)
		incrementCounter(&user.Usage, res.Kind)
		if err := l.users.SaveUser(ctx, user); err != nil {
			commitErr = fmt.Errorf("persist usage for %s: %w", res.UserID, err)
		}
	})
	return commitErr
}

// Release discards a reservation without charging the user. Safe to call
// after Commit; the first of the two wins.
func (l *Ledger) Release(res *Reservation) {
	if res == nil {
		return
	}
	res.once.Do(func() {
		userLock := l.userLock(res.UserID)
		userLock.Lock()
		defer userLock.Unlock()
		l.adjustPending(res.UserID, res.Kind, -1)
	})
}

// CurrentUsage reports the user's counters, limits, and period end, applying
// a pending rollover first.
func (l *Ledger) CurrentUsage(ctx context.Context, userID string) (screenshot.UsageReport, error) {
	userLock := l.userLock(userID)
	userLock.Lock()
	defer userLock.Unlock()

	user, err := l.users.GetUser(ctx, userID)
	if err != nil {
		return screenshot.UsageReport{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	if rolled := l.rolloverIfDue(&user); rolled {
		if err := l.users.SaveUser(ctx, user); err != nil {
			return screenshot.UsageReport{}, fmt.Errorf("persist usage rollover for %s: %w", userID, err)
		}
	}
	tier := user.EffectiveTier()
	return screenshot.UsageReport{
		Counts:    user.Usage,
		Limits:    l.Limits(tier),
		Tier:      tier,
		PeriodEnd: user.UsageResetAt,
	}, nil
}

// rolloverIfDue zeroes the counters and advances the period end when the
// usage period has rolled over. Reports whether the user was mutated.
func (l *Ledger) rolloverIfDue(user *screenshot.User) bool {
	now := l.clock.Now()
	if user.UsageResetAt.IsZero() {
		user.UsageResetAt = nextPeriodEnd(now, now)
		return true
	}
	if !now.After(user.UsageResetAt) {
		return false
	}
	user.Usage = screenshot.UsageCounters{}
	user.UsageResetAt = nextPeriodEnd(user.UsageResetAt, now)
	l.logger.Debug("usage period rolled over",
		zap.String("user_id", user.ID),
		zap.Time("next_reset", user.UsageResetAt),
	)
	return true
}

// nextPeriodEnd advances from the last period boundary in whole months until
// it lands past now, keeping period edges aligned to the original anchor.
func nextPeriodEnd(anchor, now time.Time) time.Time {
	next := anchor
	for !next.After(now) {
		next = next.AddDate(0, 1, 0)
	}
	return next
}

func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}

func (l *Ledger) pendingFor(userID string) screenshot.UsageCounters {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending[userID]
}

func (l *Ledger) adjustPending(userID string, kind OperationKind, delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	counters := l.pending[userID]
	switch kind {
	case OpScreenshot:
		counters.Screenshots += delta
	case OpBatch:
		counters.Batches += delta
	case OpAPICall:
		counters.APICalls += delta
	}
	l.pending[userID] = counters
}

func counterFor(usage screenshot.UsageCounters, kind OperationKind) int {
	switch kind {
	case OpScreenshot:
		return usage.Screenshots
	case OpBatch:
		return usage.Batches
	case OpAPICall:
		return usage.APICalls
	}
	return 0
}

func incrementCounter(usage *screenshot.UsageCounters, kind OperationKind) {
	switch kind {
	case OpScreenshot:
		usage.Screenshots++
	case OpBatch:
		usage.Batches++
	case OpAPICall:
		usage.APICalls++
	}
}

// limitFor returns the cap for an operation kind and whether the kind is
// capped at all. A capped limit of zero admits nothing, so operators can
// suspend a tier outright.
func limitFor(limits screenshot.TierLimits, kind OperationKind) (int, bool) {
	switch kind {
	case OpScreenshot:
		return limits.ScreenshotsPerPeriod, true
	case OpBatch:
		return limits.BatchesPerPeriod, true
	case OpAPICall:
		// API calls are tracked but never capped.
		return 0, false
	}
	return 0, false
}
