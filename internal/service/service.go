// Package service orchestrates one capture end-to-end: subscription
// refresh, quota admission, rendering, storage, and usage commit.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Ambro19/pixelperfect-sub000/internal/billing"
	"github.com/Ambro19/pixelperfect-sub000/internal/metrics"
	"github.com/Ambro19/pixelperfect-sub000/internal/quota"
	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
)

// Config controls service behavior.
type Config struct {
	// KeyPrefix is the leading path segment of generated storage keys.
	KeyPrefix string
	// Topic is the event topic capture completions are published to.
	Topic string
}

// Renderer is the capture surface the service depends on; *capture.Pipeline
// is the production implementation.
type Renderer interface {
	Validate(req screenshot.CaptureRequest) error
	Capture(ctx context.Context, req screenshot.CaptureRequest) (screenshot.CaptureResult, error)
}

// Service is the facade the routing layer calls into.
type Service struct {
	pipeline  Renderer
	blobs     screenshot.BlobStore
	ledger    *quota.Ledger
	subs      *billing.Service
	users     screenshot.UserStore
	publisher screenshot.Publisher
	idGen     screenshot.IDGenerator
	clock     screenshot.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Service. The publisher may be nil when eventing is not
// configured.
func New(
	pipeline Renderer,
	blobs screenshot.BlobStore,
	ledger *quota.Ledger,
	subs *billing.Service,
	users screenshot.UserStore,
	publisher screenshot.Publisher,
	idGen screenshot.IDGenerator,
	clock screenshot.Clock,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "users"
	}
	if cfg.Topic == "" {
		cfg.Topic = "captures"
	}
	return &Service{
		pipeline:  pipeline,
		blobs:     blobs,
		ledger:    ledger,
		subs:      subs,
		users:     users,
		publisher: publisher,
		idGen:     idGen,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// BatchItem reports the outcome of one entry in a batch capture.
type BatchItem struct {
	Index  int
	Result *screenshot.CaptureResult
	Err    error
}

// Capture renders, stores, and charges a single screenshot for the user.
// Quota is only committed once the artifact has a URL; every failure after
// admission releases the reservation so failed captures are never billed.
func (s *Service) Capture(ctx context.Context, userID string, req screenshot.CaptureRequest) (screenshot.CaptureResult, error) {
	user, err := s.refreshUser(ctx, userID)
	if err != nil {
		return screenshot.CaptureResult{}, err
	}
	if err := s.admitRequest(user, req); err != nil {
		return screenshot.CaptureResult{}, err
	}
	s.countAPICall(ctx, userID)

	res, err := s.ledger.CheckAndReserve(ctx, userID, quota.OpScreenshot)
	if err != nil {
		return screenshot.CaptureResult{}, err
	}

	result, err := s.captureAndStore(ctx, user, req)
	if err != nil {
		s.ledger.Release(res)
		metrics.ObserveCapture(string(user.EffectiveTier()), "error", string(req.Format), 0, 0)
		return screenshot.CaptureResult{}, err
	}

	if err := s.ledger.Commit(ctx, res); err != nil {
		// The artifact is stored and returned; a usage-accounting write
		// failure is an operator problem, not the client's.
		s.logger.Error("usage commit failed after successful capture",
			zap.String("user_id", userID),
			zap.String("key", result.StorageKey),
			zap.Error(err),
		)
	}

	metrics.ObserveCapture(string(user.EffectiveTier()), "ok", string(req.Format), result.Duration, result.ByteSize)
	s.publishEvent(ctx, user, result)
	return result, nil
}

// CaptureBatch fans out multiple captures under one batch admission. Items
// are independently reserved, committed, and released; one item's failure
// does not abort its siblings.
func (s *Service) CaptureBatch(ctx context.Context, userID string, reqs []screenshot.CaptureRequest) ([]BatchItem, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", screenshot.ErrInvalidRequest)
	}
	user, err := s.refreshUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.countAPICall(ctx, userID)

	batchRes, err := s.ledger.CheckAndReserve(ctx, userID, quota.OpBatch)
	if err != nil {
		return nil, err
	}
	// The batch request itself is the billable unit; admission commits it.
	if err := s.ledger.Commit(ctx, batchRes); err != nil {
		s.logger.Error("batch usage commit failed", zap.String("user_id", userID), zap.Error(err))
	}

	parallel := s.ledger.Limits(user.EffectiveTier()).MaxConcurrent
	if parallel <= 0 {
		parallel = 1
	}
	sem := make(chan struct{}, parallel)
	items := make([]BatchItem, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req screenshot.CaptureRequest) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := s.captureOne(ctx, user, req)
			if err != nil {
				items[i] = BatchItem{Index: i, Err: err}
				return
			}
			items[i] = BatchItem{Index: i, Result: &result}
		}(i, req)
	}
	wg.Wait()
	return items, nil
}

// CurrentUsage reports the user's counters, limits, and period end with the
// subscription state refreshed first.
func (s *Service) CurrentUsage(ctx context.Context, userID string) (screenshot.UsageReport, error) {
	if _, err := s.refreshUser(ctx, userID); err != nil {
		return screenshot.UsageReport{}, err
	}
	return s.ledger.CurrentUsage(ctx, userID)
}

// captureOne is the per-item path used by batches: reserve, render, store,
// commit.
func (s *Service) captureOne(ctx context.Context, user screenshot.User, req screenshot.CaptureRequest) (screenshot.CaptureResult, error) {
	if err := s.admitRequest(user, req); err != nil {
		return screenshot.CaptureResult{}, err
	}
	res, err := s.ledger.CheckAndReserve(ctx, user.ID, quota.OpScreenshot)
	if err != nil {
		return screenshot.CaptureResult{}, err
	}
	result, err := s.captureAndStore(ctx, user, req)
	if err != nil {
		s.ledger.Release(res)
		metrics.ObserveCapture(string(user.EffectiveTier()), "error", string(req.Format), 0, 0)
		return screenshot.CaptureResult{}, err
	}
	if err := s.ledger.Commit(ctx, res); err != nil {
		s.logger.Error("usage commit failed after successful capture",
			zap.String("user_id", user.ID),
			zap.String("key", result.StorageKey),
			zap.Error(err),
		)
	}
	metrics.ObserveCapture(string(user.EffectiveTier()), "ok", string(req.Format), result.Duration, result.ByteSize)
	s.publishEvent(ctx, user, result)
	return result, nil
}

func (s *Service) captureAndStore(ctx context.Context, user screenshot.User, req screenshot.CaptureRequest) (screenshot.CaptureResult, error) {
	result, err := s.pipeline.Capture(ctx, req)
	if err != nil {
		return screenshot.CaptureResult{}, err
	}

	id, err := s.idGen.NewID()
	if err != nil {
		return screenshot.CaptureResult{}, fmt.Errorf("generate storage id: %w", err)
	}
	key := fmt.Sprintf("%s/%s/%s.%s", s.cfg.KeyPrefix, user.ID, id, req.Format.Extension())

	url, err := s.blobs.Put(ctx, key, result.ContentType, result.Data)
	if err != nil {
		// A rendered but unstorable artifact is discarded, never returned.
		if !errors.Is(err, screenshot.ErrStorage) {
			err = fmt.Errorf("%w: %v", screenshot.ErrStorage, err)
		}
		return screenshot.CaptureResult{}, err
	}
	result.URL = url
	result.StorageKey = key
	return result, nil
}

// admitRequest enforces tier entitlements (full-page, output format) before
// any browser resource is touched.
func (s *Service) admitRequest(user screenshot.User, req screenshot.CaptureRequest) error {
	if err := s.pipeline.Validate(req); err != nil {
		return err
	}
	limits := s.ledger.Limits(user.EffectiveTier())
	if req.FullPage && !limits.FullPage {
		return fmt.Errorf("%w: full-page capture is not available on the %s tier", screenshot.ErrQuotaExceeded, user.EffectiveTier())
	}
	if !limits.AllowsFormat(req.Format) {
		return fmt.Errorf("%w: format %s is not available on the %s tier", screenshot.ErrQuotaExceeded, req.Format, user.EffectiveTier())
	}
	return nil
}

// refreshUser loads the user and brings their tier up to date before any
// admission decision.
func (s *Service) refreshUser(ctx context.Context, userID string) (screenshot.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return screenshot.User{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	if err := s.subs.Refresh(ctx, &user); err != nil {
		return screenshot.User{}, err
	}
	return user, nil
}

// countAPICall tracks the API-call counter. It is uncapped, so reservation
// cannot fail for quota reasons; failures are logged and ignored.
func (s *Service) countAPICall(ctx context.Context, userID string) {
	res, err := s.ledger.CheckAndReserve(ctx, userID, quota.OpAPICall)
	if err != nil {
		s.logger.Debug("api call accounting skipped", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if err := s.ledger.Commit(ctx, res); err != nil {
		s.logger.Debug("api call accounting failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *Service) publishEvent(ctx context.Context, user screenshot.User, result screenshot.CaptureResult) {
	if s.publisher == nil {
		return
	}
	event := screenshot.CaptureEvent{
		UserID:      user.ID,
		Tier:        user.EffectiveTier(),
		StorageKey:  result.StorageKey,
		URL:         result.URL,
		ContentType: result.ContentType,
		ByteSize:    result.ByteSize,
		CapturedAt:  s.clock.Now(),
	}
	if _, err := s.publisher.Publish(ctx, s.cfg.Topic, event); err != nil {
		s.logger.Warn("capture event publish failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
}
