package domain

import "errors"

// Sentinel errors for cross-provider error classification.
// Providers should wrap these so the lifecycle can handle error categories
// uniformly without importing provider-specific SDKs.
//
//	return fmt.Errorf("failed to delete snapshot: %w", domain.ErrNotFound)
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates the request was rejected due to
	// invalid, expired, or missing credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrConflict indicates a state conflict, such as an action submitted
	// while another one is still running on the same droplet.
	ErrConflict = errors.New("conflict")

	// ErrStepFailed indicates a lifecycle step finished without completing
	// and the configured step policy does not allow the cycle to continue.
	ErrStepFailed = errors.New("lifecycle step failed")
)
