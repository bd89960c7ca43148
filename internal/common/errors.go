// Package common contains shared constants, sentinel errors, and small
// helpers used across sitekeeper components. Callers should use errors.Is
// to match sentinel values.
package common

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors.
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Auth errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")

	// Share-link errors.
	ErrCodeCollision = errors.New("code collision")
	ErrLinkRevoked   = errors.New("link revoked")
	ErrLinkPermanent = errors.New("link has no expiry to extend")
)

// TooManyAttemptsError is returned when a client is blocked by the login
// rate limiter. It is a distinct type so callers can surface the retry-after
// duration, as opposed to the generic ErrInvalidCredentials.
type TooManyAttemptsError struct {
	RetryAfter time.Duration
}

func (e *TooManyAttemptsError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %d seconds", int(e.RetryAfter.Seconds()+0.5))
}
