// ABOUTME: Typed errors for the Kagi API client with status classification
// ABOUTME: APIError unwraps to one of four sentinel classes and never carries the API key

package kagi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Upstream failure classes. Every error returned by Client unwraps to exactly one of these.
var (
	// ErrAuth indicates the API key was rejected (401/403).
	ErrAuth = errors.New("authentication failed")

	// ErrRateLimited indicates a rate limit or an exhausted API balance (402/429).
	ErrRateLimited = errors.New("rate limit or quota exceeded")

	// ErrNotFound indicates the target does not exist or was rejected as invalid (400/404/422).
	ErrNotFound = errors.New("not found or invalid target")

	// ErrUpstream covers everything else: 5xx, transport failures, timeouts, bad payloads.
	ErrUpstream = errors.New("upstream request failed")
)

// ErrMissingAPIKey is returned by NewClient when no key is configured.
var ErrMissingAPIKey = errors.New("kagi api key is required")

const redacted = "[REDACTED]"

// APIError describes a failed Kagi API call.
type APIError struct {
	// Status is the HTTP status, or 0 when no response was received.
	Status int
	// Code is the first error code reported in the Kagi error envelope, if any.
	Code int
	// Message is the upstream message with the API key redacted.
	Message string
	// Kind is one of ErrAuth, ErrRateLimited, ErrNotFound or ErrUpstream.
	Kind error

	cause error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%v: kagi returned status %d: %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

// Unwrap exposes both the class sentinel and the underlying cause, if any.
func (e *APIError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Kind, e.cause}
	}
	return []error{e.Kind}
}

// classifyStatus maps an HTTP status onto a failure class.
func classifyStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusPaymentRequired, http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return ErrNotFound
	default:
		return ErrUpstream
	}
}

// Redact replaces every occurrence of secret in s.
func Redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, redacted)
}
