package screenshot

// Tier is a named subscription level determining usage limits.
type Tier string

// Known subscription tiers, cheapest first.
const (
	TierFree     Tier = "free"
	TierStarter  Tier = "starter"
	TierPro      Tier = "pro"
	TierBusiness Tier = "business"
)

// AllTiers lists the known tiers in ascending order.
var AllTiers = []Tier{TierFree, TierStarter, TierPro, TierBusiness}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierStarter, TierPro, TierBusiness:
		return true
	}
	return false
}

// TierLimits is the immutable per-tier limit table entry. Loaded once at
// startup and read-only thereafter.
type TierLimits struct {
	ScreenshotsPerPeriod int           `json:"screenshots_per_period" mapstructure:"screenshots_per_period"`
	BatchesPerPeriod     int           `json:"batches_per_period" mapstructure:"batches_per_period"`
	MaxConcurrent        int           `json:"max_concurrent" mapstructure:"max_concurrent"`
	FullPage             bool          `json:"full_page" mapstructure:"full_page"`
	Formats              []ImageFormat `json:"formats" mapstructure:"formats"`
}

// AllowsFormat reports whether the tier may request the given output format.
func (l TierLimits) AllowsFormat(f ImageFormat) bool {
	for _, allowed := range l.Formats {
		if allowed == f {
			return true
		}
	}
	return false
}

// DefaultTierLimits is the built-in limit table. Values can be overridden
// via configuration but the set of tiers is fixed.
var DefaultTierLimits = map[Tier]TierLimits{
	TierFree: {
		ScreenshotsPerPeriod: 50,
		BatchesPerPeriod:     5,
		MaxConcurrent:        1,
		FullPage:             false,
		Formats:              []ImageFormat{FormatPNG, FormatJPEG},
	},
	TierStarter: {
		ScreenshotsPerPeriod: 500,
		BatchesPerPeriod:     25,
		MaxConcurrent:        2,
		FullPage:             true,
		Formats:              []ImageFormat{FormatPNG, FormatJPEG},
	},
	TierPro: {
		ScreenshotsPerPeriod: 5000,
		BatchesPerPeriod:     100,
		MaxConcurrent:        5,
		FullPage:             true,
		Formats:              []ImageFormat{FormatPNG, FormatJPEG, FormatWebP},
	},
	TierBusiness: {
		ScreenshotsPerPeriod: 25000,
		BatchesPerPeriod:     500,
		MaxConcurrent:        10,
		FullPage:             true,
		Formats:              []ImageFormat{FormatPNG, FormatJPEG, FormatWebP},
	},
}

// LimitsFor returns the limit table entry for a tier, falling back to the
// free tier for unknown values.
func LimitsFor(table map[Tier]TierLimits, tier Tier) TierLimits {
	if limits, ok := table[tier]; ok {
		return limits
	}
	return table[TierFree]
}

// EffectiveTier returns the tier whose limits apply to the user: anything
// other than an active subscription is billed as free.
func (u User) EffectiveTier() Tier {
	if u.Status != StatusActive {
		return TierFree
	}
	return u.Tier
}
