package screenshot

import "errors"

// Failure kinds surfaced across component boundaries. Callers branch with
// errors.Is; implementations wrap these with contextual detail.
var (
	// ErrInvalidRequest marks a bad option combination, rejected before any
	// resource is touched.
	ErrInvalidRequest = errors.New("invalid capture request")

	// ErrQuotaExceeded marks an admission denial by the quota ledger.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrLaunch marks a failure to start the shared browser process.
	ErrLaunch = errors.New("browser launch failed")

	// ErrCapacityExceeded marks rejection because too many browser contexts
	// are already in flight.
	ErrCapacityExceeded = errors.New("browser capacity exceeded")

	// ErrNavigationTimeout marks a navigation that did not settle within the
	// pipeline's hard bound.
	ErrNavigationTimeout = errors.New("navigation timeout")

	// ErrRender marks a capture or encode failure after navigation.
	ErrRender = errors.New("render failed")

	// ErrStorage marks persistence failure in both the remote and local
	// backends. A render that cannot be stored is not a billable success.
	ErrStorage = errors.New("storage failed")

	// ErrProviderSync marks an unreachable billing provider. It never
	// surfaces to end users; the prior local tier is kept.
	ErrProviderSync = errors.New("billing provider sync failed")

	// ErrUserNotFound is returned by user stores for unknown IDs or keys.
	ErrUserNotFound = errors.New("user not found")
)
