// Package screenshot defines core types shared across subsystems.
package screenshot

import (
	"time"
)

// ImageFormat identifies the encoding of a captured image.
type ImageFormat string

// Supported output formats.
const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
	FormatWebP ImageFormat = "webp"
)

// ContentType returns the MIME type for the format.
func (f ImageFormat) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// Extension returns the file extension (without dot) for the format.
func (f ImageFormat) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatWebP:
		return "webp"
	default:
		return "png"
	}
}

// Valid reports whether the format is one of the supported encodings.
func (f ImageFormat) Valid() bool {
	switch f {
	case FormatPNG, FormatJPEG, FormatWebP:
		return true
	}
	return false
}

// SubscriptionStatus represents the billing state of a user account.
type SubscriptionStatus string

// Subscription status values persisted on the user record.
const (
	StatusActive    SubscriptionStatus = "active"
	StatusInactive  SubscriptionStatus = "inactive"
	StatusExpired   SubscriptionStatus = "expired"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// UsageCounters tracks per-period consumption for a user.
type UsageCounters struct {
	Screenshots int `json:"screenshots"`
	Batches     int `json:"batches"`
	APICalls    int `json:"api_calls"`
}

// User is the account record the core reads and mutates. Identity and
// authentication are owned by the surrounding service; the core only touches
// subscription and usage fields.
type User struct {
	ID               string             `json:"id"`
	APIKey           string             `json:"-"`
	Tier             Tier               `json:"tier"`
	Status           SubscriptionStatus `json:"status"`
	StripeCustomerID string             `json:"stripe_customer_id,omitempty"`
	ExpiresAt        *time.Time         `json:"subscription_expires_at,omitempty"`
	Usage            UsageCounters      `json:"usage"`
	UsageResetAt     time.Time          `json:"usage_reset_at"`
}

// CaptureRequest captures everything needed to screenshot a URL. The routing
// layer validates URL syntax and option ranges before the core is invoked;
// the pipeline still enforces semantic pairings (format/quality).
type CaptureRequest struct {
	URL          string      `json:"url"`
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	FullPage     bool        `json:"full_page"`
	Format       ImageFormat `json:"format"`
	Quality      int         `json:"quality,omitempty"`
	DelaySecs    float64     `json:"delay,omitempty"`
	DarkMode     bool        `json:"dark_mode"`
	HideElements []string    `json:"hide_elements,omitempty"`
}

// CaptureResult is the outcome of one capture. A result without a URL is
// transient: it must never be treated as a committed artifact.
type CaptureResult struct {
	Data        []byte        `json:"-"`
	ContentType string        `json:"content_type"`
	ByteSize    int           `json:"byte_size"`
	URL         string        `json:"url,omitempty"`
	StorageKey  string        `json:"storage_key,omitempty"`
	Duration    time.Duration `json:"-"`
}

// SubscriptionSnapshot is the provider-reported subscription state pulled at
// sync time. It is translated into the User's tier/status fields, never
// stored verbatim.
type SubscriptionSnapshot struct {
	PriceID          string
	PriceHint        string
	TierTag          string
	Status           SubscriptionStatus
	CurrentPeriodEnd time.Time
}

// CaptureEvent is published after a capture has been stored and committed.
type CaptureEvent struct {
	UserID      string    `json:"user_id"`
	Tier        Tier      `json:"tier"`
	StorageKey  string    `json:"storage_key"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	ByteSize    int       `json:"byte_size"`
	CapturedAt  time.Time `json:"captured_at"`
}

// UsageReport is returned by the usage endpoint.
type UsageReport struct {
	Counts    UsageCounters `json:"counts"`
	Limits    TierLimits    `json:"limits"`
	Tier      Tier          `json:"tier"`
	PeriodEnd time.Time     `json:"period_end"`
}
