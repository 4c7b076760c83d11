// Package upstreamerr defines the error taxonomy shared by every upstream
// client and the boundary layer. Clients classify failures into these types;
// the boundary maps them to status codes without echoing upstream details.
package upstreamerr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ConfigError reports a missing or malformed required setting. It names the
// exact environment variable so the operator can fix it; it is never retried.
type ConfigError struct {
	Var    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("config: %s %s", e.Var, e.Reason)
	}
	return fmt.Sprintf("config: missing %s environment variable", e.Var)
}

// AuthError reports rejected credentials. Infra marks failures of the
// authentication infrastructure itself (token exchange, signing service)
// rather than a plain credential rejection; those surface as 502.
type AuthError struct {
	Source string
	Infra  bool
}

func (e *AuthError) Error() string {
	if e.Infra {
		return fmt.Sprintf("%s: authentication infrastructure failure", e.Source)
	}
	return fmt.Sprintf("%s: authentication failed", e.Source)
}

type NotFoundError struct {
	Source string
	Entity string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s not found", e.Source, e.Entity)
}

type PermissionError struct {
	Source string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: permission denied", e.Source)
}

// RateLimitError reports quota exhaustion, ours or an upstream's. ResetAt is
// zero when the upstream did not report a reset time.
type RateLimitError struct {
	Source  string
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return fmt.Sprintf("%s: rate limit exceeded", e.Source)
	}
	return fmt.Sprintf("%s: rate limit exceeded, resets at %s", e.Source, e.ResetAt.UTC().Format(time.RFC3339))
}

// RetryAfter returns the whole seconds until the limit resets, at least 1.
func (e *RateLimitError) RetryAfter(now time.Time) int {
	if e.ResetAt.IsZero() || !e.ResetAt.After(now) {
		return 1
	}
	secs := int((e.ResetAt.Sub(now) + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

type TimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out after %s", e.URL, e.Timeout)
}

// UpstreamError is the generic non-2xx classification.
type UpstreamError struct {
	Source string
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream error, status %d", e.Source, e.Status)
}

// StatusFor maps a classified error to the external status code contract.
// Unclassified errors fall through to 500.
func StatusFor(err error) int {
	var (
		authErr     *AuthError
		notFoundErr *NotFoundError
		permErr     *PermissionError
		rateErr     *RateLimitError
	)
	switch {
	case errors.As(err, &rateErr):
		return http.StatusTooManyRequests
	case errors.As(err, &authErr):
		if authErr.Infra {
			return http.StatusBadGateway
		}
		return http.StatusUnauthorized
	case errors.As(err, &permErr):
		return http.StatusForbidden
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	default:
		// Config, timeout, generic upstream and unclassified failures all
		// surface as 500; the envelope message still distinguishes them.
		return http.StatusInternalServerError
	}
}

// Message returns the safe external message for a classified error. Raw
// upstream bodies and credential material never pass through here.
func Message(err error) string {
	var (
		cfgErr      *ConfigError
		authErr     *AuthError
		notFoundErr *NotFoundError
		permErr     *PermissionError
		rateErr     *RateLimitError
		timeoutErr  *TimeoutError
	)
	switch {
	case errors.As(err, &rateErr):
		return "Rate limit exceeded. Please try again later."
	case errors.As(err, &authErr):
		if authErr.Infra {
			return "Service authentication failed"
		}
		return "Authentication failed"
	case errors.As(err, &permErr):
		return "Access denied"
	case errors.As(err, &notFoundErr):
		return notFoundErr.Error()
	case errors.As(err, &timeoutErr):
		return "Upstream request timed out"
	case errors.As(err, &cfgErr):
		return cfgErr.Error()
	default:
		return "Failed to fetch analytics data"
	}
}
