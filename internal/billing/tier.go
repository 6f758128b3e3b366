package billing

import (
	"strings"

	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
)

// InferTier maps provider-reported subscription hints to a local tier. The
// metadata tag takes precedence over price-name inference; both are matched
// case-insensitively by substring against the known tier names. Unknown
// hints map to free.
//
// Kept as a single pure function so the substring heuristic can later be
// swapped for an explicit price-to-tier table without touching sync logic.
func InferTier(tierTag, priceHint string) screenshot.Tier {
	if tier, ok := matchTier(tierTag); ok {
		return tier
	}
	if tier, ok := matchTier(priceHint); ok {
		return tier
	}
	return screenshot.TierFree
}

func matchTier(hint string) (screenshot.Tier, bool) {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return screenshot.TierFree, false
	}
	// Paid tiers only, most expensive first.
	for i := len(screenshot.AllTiers) - 1; i > 0; i-- {
		tier := screenshot.AllTiers[i]
		if strings.Contains(hint, string(tier)) {
			return tier, true
		}
	}
	return screenshot.TierFree, false
}
