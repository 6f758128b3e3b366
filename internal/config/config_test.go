package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, 4, cfg.Browser.MaxSessions)
	assert.Equal(t, 30*time.Second, cfg.NavTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.QuietWindow())
	assert.Equal(t, 10*time.Second, cfg.MaxDelay())
	assert.Equal(t, 7*24*time.Hour, cfg.SignedURLTTL())
	assert.Equal(t, "./screenshots", cfg.Storage.LocalDir)
	assert.Equal(t, "captures", cfg.PubSub.TopicName)
	assert.False(t, cfg.RemoteStorageConfigured())
	assert.False(t, cfg.BillingConfigured())
	assert.False(t, cfg.PubSubConfigured())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
browser:
  max_sessions: 8
storage:
  gcs_bucket: prod-captures
billing:
  stripe_secret_key: sk_live_abc
tiers:
  free:
    screenshots_per_period: 10
    batches_per_period: 1
    max_concurrent: 1
    formats: ["png"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Browser.MaxSessions)
	assert.True(t, cfg.RemoteStorageConfigured())
	assert.True(t, cfg.BillingConfigured())

	table := cfg.TierTable()
	assert.Equal(t, 10, table[screenshot.TierFree].ScreenshotsPerPeriod)
	// Tiers without overrides keep their built-in limits.
	assert.Equal(t, screenshot.DefaultTierLimits[screenshot.TierPro], table[screenshot.TierPro])
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"bad port", "server:\n  port: -1\n"},
		{"bad sessions", "browser:\n  max_sessions: 0\n"},
		{"unknown tier", "tiers:\n  platinum:\n    screenshots_per_period: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestPlaceholderDetection(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	cfg.Storage.GCSBucket = "your-bucket-name"
	cfg.Billing.StripeSecretKey = "sk_test_CHANGEME"
	assert.False(t, cfg.RemoteStorageConfigured())
	assert.False(t, cfg.BillingConfigured())
	assert.Len(t, cfg.Warnings(), 2)

	cfg.Storage.GCSBucket = "prod-captures"
	cfg.Billing.StripeSecretKey = "sk_live_real"
	assert.True(t, cfg.RemoteStorageConfigured())
	assert.True(t, cfg.BillingConfigured())
	assert.Empty(t, cfg.Warnings())
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PIXELPERFECT_SERVER_PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}
