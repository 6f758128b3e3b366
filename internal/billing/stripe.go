package billing

import (
	"context"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/subscription"

	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
)

// StripeProvider implements screenshot.BillingProvider with the Stripe API.
type StripeProvider struct{}

// NewStripeProvider configures the global Stripe client key and returns the
// provider.
func NewStripeProvider(apiKey string) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{}
}

// ActiveSubscription returns the customer's currently active subscription as
// a snapshot, or nil when none exists.
func (p *StripeProvider) ActiveSubscription(_ context.Context, customerID string) (*screenshot.SubscriptionSnapshot, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Limit = stripe.Int64(1)

	iter := subscription.List(params)
	for iter.Next() {
		return snapshotFromStripe(iter.Subscription()), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list stripe subscriptions for %s: %w", customerID, err)
	}
	return nil, nil
}

func snapshotFromStripe(sub *stripe.Subscription) *screenshot.SubscriptionSnapshot {
	snap := &screenshot.SubscriptionSnapshot{
		Status:  screenshot.SubscriptionStatus(sub.Status),
		TierTag: sub.Metadata["tier"],
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		snap.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		if item.Price != nil {
			snap.PriceID = item.Price.ID
			snap.PriceHint = item.Price.Nickname
			if snap.TierTag == "" {
				snap.TierTag = item.Price.Metadata["tier"]
			}
			if snap.PriceHint == "" {
				snap.PriceHint = item.Price.ID
			}
		}
	}
	return snap
}
