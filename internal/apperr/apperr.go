// Package apperr defines the error kinds shared by the core engines and the
// HTTP layer. Engines return these sentinels (usually wrapped with context)
// and handlers translate them to a status exactly once.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidPayload marks a missing or malformed required field. Always a
	// client fault, never retried.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrNotFound marks an unknown device_uid or record.
	ErrNotFound = errors.New("not found")

	// ErrCrossTenant marks a tenant-isolation breach attempt. Callers treat
	// this as a security-relevant event, not a plain validation failure.
	ErrCrossTenant = errors.New("cross-tenant access denied")

	// ErrUnauthorized marks a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden marks an authenticated principal lacking the required role
	// or scope.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict marks a duplicate unique key on creation (email, tenant name).
	ErrConflict = errors.New("conflict")
)

// Status maps an error to its HTTP status code. Unrecognized errors map to
// 500, so an unclassified failure can never leak as a client fault.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrCrossTenant):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
