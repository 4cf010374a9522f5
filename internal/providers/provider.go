package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"nathanbeddoewebdev/snapcycle/internal/domain"
	"nathanbeddoewebdev/snapcycle/internal/retry"

	"github.com/digitalocean/godo"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// Provider names accepted by Get and the default-provider config key.
const (
	NameDigitalOcean = "digitalocean"
	NameHetzner      = "hetzner"
)

// requestTimeout bounds a single API round trip.
const requestTimeout = 30 * time.Second

// readRetry controls retries of idempotent reads. Overridden in tests.
var readRetry = retry.DefaultConfig()

// RegisterAll registers every built-in provider.
func RegisterAll() {
	RegisterDigitalOcean()
	RegisterHetzner()
}

// read runs an idempotent API call with a per-attempt timeout, retrying
// transient failures.
func read(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, readRetry, isRetryable, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		return fn(reqCtx)
	})
}

// write runs a mutating API call once with a timeout.
func write(ctx context.Context, fn func(ctx context.Context) error) error {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	return fn(reqCtx)
}

// isRetryable extends retry.IsRetryable with provider server errors.
func isRetryable(err error) bool {
	if retry.IsRetryable(err) {
		return true
	}

	var doErr *godo.ErrorResponse
	if errors.As(err, &doErr) && doErr.Response != nil {
		return doErr.Response.StatusCode >= http.StatusInternalServerError
	}

	return hcloud.IsError(err, hcloud.ErrorCodeServiceError) ||
		hcloud.IsError(err, hcloud.ErrorCodeTimeout) ||
		hcloud.IsError(err, hcloud.ErrorCodeMaintenance)
}

// mapDigitalOceanError wraps a godo error with the matching domain sentinel.
// Unclassified errors are returned unchanged.
func mapDigitalOceanError(err error) error {
	var doErr *godo.ErrorResponse
	if !errors.As(err, &doErr) || doErr.Response == nil {
		return err
	}

	switch doErr.Response.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	}
	return err
}

// mapHetznerError wraps an hcloud error with the matching domain sentinel.
// Unclassified errors are returned unchanged.
func mapHetznerError(err error) error {
	switch {
	case err == nil:
		return nil
	case hcloud.IsError(err, hcloud.ErrorCodeUnauthorized), hcloud.IsError(err, hcloud.ErrorCodeForbidden):
		return fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	case hcloud.IsError(err, hcloud.ErrorCodeNotFound):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case hcloud.IsError(err, hcloud.ErrorCodeConflict), hcloud.IsError(err, hcloud.ErrorCodeLocked):
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	case hcloud.IsError(err, hcloud.ErrorCodeRateLimitExceeded):
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	}
	return err
}
