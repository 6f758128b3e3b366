package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/Ambro19/pixelperfect-sub000/internal/api"
	"github.com/Ambro19/pixelperfect-sub000/internal/billing"
	"github.com/Ambro19/pixelperfect-sub000/internal/browser"
	"github.com/Ambro19/pixelperfect-sub000/internal/capture"
	"github.com/Ambro19/pixelperfect-sub000/internal/clock/system"
	"github.com/Ambro19/pixelperfect-sub000/internal/config"
	"github.com/Ambro19/pixelperfect-sub000/internal/id/uuid"
	"github.com/Ambro19/pixelperfect-sub000/internal/logging"
	"github.com/Ambro19/pixelperfect-sub000/internal/metrics"
	memorypublisher "github.com/Ambro19/pixelperfect-sub000/internal/publisher/memory"
	pubsubpublisher "github.com/Ambro19/pixelperfect-sub000/internal/publisher/pubsub"
	"github.com/Ambro19/pixelperfect-sub000/internal/quota"
	"github.com/Ambro19/pixelperfect-sub000/internal/ratelimit"
	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
	"github.com/Ambro19/pixelperfect-sub000/internal/service"
	"github.com/Ambro19/pixelperfect-sub000/internal/storage"
	"github.com/Ambro19/pixelperfect-sub000/internal/storage/gcs"
	"github.com/Ambro19/pixelperfect-sub000/internal/storage/local"
	memoryusers "github.com/Ambro19/pixelperfect-sub000/internal/users/memory"
	postgresusers "github.com/Ambro19/pixelperfect-sub000/internal/users/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	for _, warning := range cfg.Warnings() {
		logger.Warn(warning)
	}

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	idGen := uuid.New()

	users, err := buildUserStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("user store init failed", zap.Error(err))
	}

	blobs, localDir, err := buildBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	pool := browser.New(browser.Config{
		MaxSessions: cfg.Browser.MaxSessions,
		UserAgent:   cfg.Browser.UserAgent,
	}, logger.Named("browser"))
	defer pool.Stop()

	pipeline := capture.New(pool, capture.Config{
		NavigationTimeout: cfg.NavTimeout(),
		QuietWindow:       cfg.QuietWindow(),
		MaxDelay:          cfg.MaxDelay(),
		MaxViewport:       cfg.Capture.MaxViewport,
	}, logger.Named("capture"))

	ledger := quota.New(users, clock, cfg.TierTable(), logger.Named("quota"))

	var provider screenshot.BillingProvider
	if cfg.BillingConfigured() {
		provider = billing.NewStripeProvider(cfg.Billing.StripeSecretKey)
	}
	subs := billing.NewService(provider, users, clock, logger.Named("billing"))

	publisher, closePublisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer closePublisher()

	svc := service.New(
		pipeline,
		blobs,
		ledger,
		subs,
		users,
		publisher,
		idGen,
		clock,
		service.Config{
			KeyPrefix: cfg.Storage.KeyPrefix,
			Topic:     cfg.PubSub.TopicName,
		},
		logger.Named("service"),
	)

	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.RateLimit.RPS,
		Burst: cfg.RateLimit.Burst,
	})

	apiServer := api.NewServer(svc, users, limiter, logger.Named("api"), api.Config{
		AuthEnabled:      cfg.Auth.Enabled,
		LocalFilesDir:    localDir,
		LocalFilesPrefix: cfg.Storage.LocalURLPrefix,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildUserStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (screenshot.UserStore, error) {
	if cfg.DB.DSN != "" {
		store, err := postgresusers.New(ctx, postgresusers.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Info("using postgres user store")
		return store, nil
	}

	store := memoryusers.New()
	if !cfg.Auth.Enabled {
		// With auth off every request runs as this account.
		store.Put(screenshot.User{
			ID:     "dev",
			Tier:   screenshot.TierBusiness,
			Status: screenshot.StatusActive,
		})
	}
	logger.Info("using in-memory user store")
	return store, nil
}

// newRemoteStore connects the GCS-backed store. Overridden in tests.
var newRemoteStore = func(ctx context.Context, cfg config.Config) (screenshot.BlobStore, error) {
	client, err := gcstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("init gcs client: %w", err)
	}
	remote, err := gcs.New(ctx, client, gcs.Config{
		Bucket:        cfg.Storage.GCSBucket,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		SignedURLTTL:  cfg.SignedURLTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("init gcs storage: %w", err)
	}
	return remote, nil
}

// buildBlobStore returns the blob store plus the local directory to serve
// over HTTP. Remote storage is selected only when it is configured AND its
// startup probe succeeds; an unreachable bucket degrades the process to
// local-only mode rather than failing it. The selection is made once here
// and never revisited per request.
func buildBlobStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (screenshot.BlobStore, string, error) {
	localStore, err := local.New(local.Config{
		BaseDir:   cfg.Storage.LocalDir,
		URLPrefix: cfg.Storage.LocalURLPrefix,
	})
	if err != nil {
		return nil, "", fmt.Errorf("init local storage: %w", err)
	}

	if !cfg.RemoteStorageConfigured() {
		logger.Info("using local blob storage", zap.String("dir", cfg.Storage.LocalDir))
		return localStore, cfg.Storage.LocalDir, nil
	}

	remote, err := newRemoteStore(ctx, cfg)
	if err != nil {
		logger.Warn("remote storage unavailable, using local blob storage",
			zap.String("bucket", cfg.Storage.GCSBucket),
			zap.Error(err),
		)
		return localStore, cfg.Storage.LocalDir, nil
	}
	logger.Info("using gcs blob storage with local fallback", zap.String("bucket", cfg.Storage.GCSBucket))
	return storage.NewFailover(remote, localStore, logger.Named("storage")), cfg.Storage.LocalDir, nil
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (screenshot.Publisher, func(), error) {
	if !cfg.PubSubConfigured() {
		logger.Info("using in-memory event publisher")
		return memorypublisher.New(), func() {}, nil
	}
	pub, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
	if err != nil {
		return nil, nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	logger.Info("using pubsub event publisher", zap.String("topic", cfg.PubSub.TopicName))
	closeFn := func() {
		if err := pub.Close(); err != nil {
			logger.Error("close publisher failed", zap.Error(err))
		}
	}
	return pub, closeFn, nil
}
