package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
)

func TestInferTier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		tierTag   string
		priceHint string
		expect    screenshot.Tier
	}{
		{"metadata tag wins", "pro", "Starter Monthly", screenshot.TierPro},
		{"metadata case insensitive", "BUSINESS", "", screenshot.TierBusiness},
		{"price name substring", "", "PixelPerfect Starter (monthly)", screenshot.TierStarter},
		{"price nickname pro", "", "pro_annual", screenshot.TierPro},
		{"unknown hints map to free", "vip", "Legacy Plan", screenshot.TierFree},
		{"empty everything", "", "", screenshot.TierFree},
		{"whitespace tag ignored", "   ", "business yearly", screenshot.TierBusiness},
		{"ambiguous hint prefers most expensive", "", "pro-to-business upgrade", screenshot.TierBusiness},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, InferTier(tt.tierTag, tt.priceHint))
		})
	}
}
