package screenshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierValid(t *testing.T) {
	t.Parallel()

	for _, tier := range AllTiers {
		assert.True(t, tier.Valid(), "tier %s", tier)
	}
	assert.False(t, Tier("platinum").Valid())
	assert.False(t, Tier("").Valid())
}

func TestAllowsFormat(t *testing.T) {
	t.Parallel()

	free := DefaultTierLimits[TierFree]
	assert.True(t, free.AllowsFormat(FormatPNG))
	assert.True(t, free.AllowsFormat(FormatJPEG))
	assert.False(t, free.AllowsFormat(FormatWebP))

	pro := DefaultTierLimits[TierPro]
	assert.True(t, pro.AllowsFormat(FormatWebP))
}

func TestLimitsForUnknownTierFallsBackToFree(t *testing.T) {
	t.Parallel()

	limits := LimitsFor(DefaultTierLimits, Tier("platinum"))
	assert.Equal(t, DefaultTierLimits[TierFree], limits)
}

func TestDefaultLimitsMonotonic(t *testing.T) {
	t.Parallel()

	prev := 0
	for _, tier := range AllTiers {
		limits, ok := DefaultTierLimits[tier]
		require.True(t, ok, "tier %s missing from table", tier)
		assert.Greater(t, limits.ScreenshotsPerPeriod, prev, "tier %s", tier)
		prev = limits.ScreenshotsPerPeriod
	}
}

func TestEffectiveTier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		user   User
		expect Tier
	}{
		{"active pro keeps pro", User{Tier: TierPro, Status: StatusActive}, TierPro},
		{"expired pro billed as free", User{Tier: TierPro, Status: StatusExpired}, TierFree},
		{"cancelled business billed as free", User{Tier: TierBusiness, Status: StatusCancelled}, TierFree},
		{"inactive starter billed as free", User{Tier: TierStarter, Status: StatusInactive}, TierFree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, tt.user.EffectiveTier())
		})
	}
}

func TestImageFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/png", FormatPNG.ContentType())
	assert.Equal(t, "image/jpeg", FormatJPEG.ContentType())
	assert.Equal(t, "image/webp", FormatWebP.ContentType())

	assert.Equal(t, "png", FormatPNG.Extension())
	assert.Equal(t, "jpg", FormatJPEG.Extension())
	assert.Equal(t, "webp", FormatWebP.Extension())

	assert.True(t, FormatWebP.Valid())
	assert.False(t, ImageFormat("gif").Valid())
}
