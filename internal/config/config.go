// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig                     `mapstructure:"server"`
	Auth      AuthConfig                       `mapstructure:"auth"`
	Browser   BrowserConfig                    `mapstructure:"browser"`
	Capture   CaptureConfig                    `mapstructure:"capture"`
	Storage   StorageConfig                    `mapstructure:"storage"`
	DB        DBConfig                         `mapstructure:"db"`
	Billing   BillingConfig                    `mapstructure:"billing"`
	PubSub    PubSubConfig                     `mapstructure:"pubsub"`
	RateLimit RateLimitConfig                  `mapstructure:"ratelimit"`
	Logging   LoggingConfig                    `mapstructure:"logging"`
	Tiers     map[string]screenshot.TierLimits `mapstructure:"tiers"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// BrowserConfig configures the shared headless browser.
type BrowserConfig struct {
	MaxSessions int    `mapstructure:"max_sessions"`
	UserAgent   string `mapstructure:"user_agent"`
}

// CaptureConfig governs the capture pipeline's bounds.
type CaptureConfig struct {
	NavTimeoutSec int `mapstructure:"nav_timeout_seconds"`
	QuietWindowMs int `mapstructure:"quiet_window_ms"`
	MaxDelaySec   int `mapstructure:"max_delay_seconds"`
	MaxViewport   int `mapstructure:"max_viewport"`
}

// StorageConfig selects and parameterizes blob persistence.
type StorageConfig struct {
	GCSBucket        string `mapstructure:"gcs_bucket"`
	PublicBaseURL    string `mapstructure:"public_base_url"`
	LocalDir         string `mapstructure:"local_dir"`
	LocalURLPrefix   string `mapstructure:"local_url_prefix"`
	SignedURLTTLHour int    `mapstructure:"signed_url_ttl_hours"`
	KeyPrefix        string `mapstructure:"key_prefix"`
}

// DBConfig controls access to the relational user store. An empty DSN keeps
// the in-memory store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// BillingConfig holds the payment provider credentials. An absent key
// disables provider sync entirely.
type BillingConfig struct {
	StripeSecretKey string `mapstructure:"stripe_secret_key"`
}

// PubSubConfig holds metadata for capture-completed notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// RateLimitConfig bounds per-user request bursts.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// LoggingConfig toggles zap development features. Level accepts zap level
// names ("debug", "info", "warn", ...); empty keeps zap's default.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PIXELPERFECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", true)
	v.SetDefault("browser.max_sessions", 4)
	v.SetDefault("browser.user_agent", "pixelperfect-bot/1.0")
	v.SetDefault("capture.nav_timeout_seconds", 30)
	v.SetDefault("capture.quiet_window_ms", 500)
	v.SetDefault("capture.max_delay_seconds", 10)
	v.SetDefault("capture.max_viewport", 7680)
	v.SetDefault("storage.local_dir", "./screenshots")
	v.SetDefault("storage.local_url_prefix", "/files")
	v.SetDefault("storage.signed_url_ttl_hours", 168)
	v.SetDefault("storage.key_prefix", "users")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("pubsub.topic_name", "captures")
	v.SetDefault("ratelimit.rps", 5)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Browser.MaxSessions <= 0 {
		return fmt.Errorf("browser.max_sessions must be > 0")
	}
	if c.Capture.NavTimeoutSec <= 0 {
		return fmt.Errorf("capture.nav_timeout_seconds must be > 0")
	}
	if c.Storage.LocalDir == "" {
		return fmt.Errorf("storage.local_dir must be set")
	}
	for name := range c.Tiers {
		if !screenshot.Tier(name).Valid() {
			return fmt.Errorf("tiers: unknown tier %q", name)
		}
	}
	return nil
}

// Warnings reports non-fatal configuration oddities for startup logging,
// chiefly placeholder values that silently disable integrations.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Storage.GCSBucket != "" && isPlaceholder(c.Storage.GCSBucket) {
		warnings = append(warnings, fmt.Sprintf("storage.gcs_bucket %q looks like a placeholder; using local storage", c.Storage.GCSBucket))
	}
	if c.Billing.StripeSecretKey != "" && isPlaceholder(c.Billing.StripeSecretKey) {
		warnings = append(warnings, "billing.stripe_secret_key looks like a placeholder; provider sync disabled")
	}
	return warnings
}

// RemoteStorageConfigured reports whether the remote object store should be
// attempted at startup. Placeholder values count as unconfigured; the choice
// is made once here and never re-evaluated per request.
func (c Config) RemoteStorageConfigured() bool {
	return c.Storage.GCSBucket != "" && !isPlaceholder(c.Storage.GCSBucket)
}

// BillingConfigured reports whether provider sync is enabled.
func (c Config) BillingConfigured() bool {
	return c.Billing.StripeSecretKey != "" && !isPlaceholder(c.Billing.StripeSecretKey)
}

// PubSubConfigured reports whether capture events should be published to
// Cloud Pub/Sub.
func (c Config) PubSubConfigured() bool {
	return c.PubSub.ProjectID != "" && !isPlaceholder(c.PubSub.ProjectID)
}

// TierTable merges configured overrides onto the built-in limit table.
func (c Config) TierTable() map[screenshot.Tier]screenshot.TierLimits {
	table := make(map[screenshot.Tier]screenshot.TierLimits, len(screenshot.DefaultTierLimits))
	for tier, limits := range screenshot.DefaultTierLimits {
		table[tier] = limits
	}
	for name, limits := range c.Tiers {
		table[screenshot.Tier(name)] = limits
	}
	return table
}

// NavTimeout returns the navigation timeout as a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Capture.NavTimeoutSec) * time.Second
}

// QuietWindow returns the network quiet window as a duration.
func (c Config) QuietWindow() time.Duration {
	return time.Duration(c.Capture.QuietWindowMs) * time.Millisecond
}

// MaxDelay returns the maximum pre-capture delay as a duration.
func (c Config) MaxDelay() time.Duration {
	return time.Duration(c.Capture.MaxDelaySec) * time.Second
}

// SignedURLTTL returns the presigned URL validity window.
func (c Config) SignedURLTTL() time.Duration {
	return time.Duration(c.Storage.SignedURLTTLHour) * time.Hour
}

var placeholderFragments = []string{
	"your-", "your_", "changeme", "change-me", "placeholder", "example", "<", "xxx",
}

func isPlaceholder(value string) bool {
	lower := strings.ToLower(strings.TrimSpace(value))
	if lower == "" {
		return true
	}
	for _, fragment := range placeholderFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
