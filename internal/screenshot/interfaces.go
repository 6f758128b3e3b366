package screenshot

import (
	"context"
	"time"
)

// BlobStore persists captured bytes and returns a client-addressable URL.
type BlobStore interface {
	// Put writes data under key and returns a URL usable to retrieve it.
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
	// Delete removes the object at key. Deleting a missing key returns
	// (false, nil), not an error.
	Delete(ctx context.Context, key string) (bool, error)
}

// UserStore reads and writes the subscription and usage fields of users.
// The schema itself is owned by the surrounding persistence layer.
type UserStore interface {
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByAPIKey(ctx context.Context, apiKey string) (User, error)
	SaveUser(ctx context.Context, user User) error
}

// BillingProvider queries the external payment provider for subscription
// state. Implementations return (nil, nil) when the customer has no active
// subscription.
type BillingProvider interface {
	ActiveSubscription(ctx context.Context, customerID string) (*SubscriptionSnapshot, error)
}

// Publisher pushes capture-completed events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces storage-key identifiers (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
