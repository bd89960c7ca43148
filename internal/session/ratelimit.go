// Package session issues and verifies the signed admin session and
// enforces the per-client login rate limit.
package session

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// attemptEntry tracks failed logins for one client identifier. Kept in
// memory only; a process restart resets all rate-limit state.
type attemptEntry struct {
	Count        int
	FirstAt      time.Time
	BlockedUntil time.Time
}

// Limiter is a sliding-window login rate limiter. The window starts at the
// first tracked failure; once Count crosses the threshold the client is
// blocked for the configured duration.
type Limiter struct {
	maxAttempts int
	window      time.Duration
	blockFor    time.Duration
	entries     *gocache.Cache
}

func NewLimiter(maxAttempts int, window, blockFor time.Duration) *Limiter {
	retain := window
	if blockFor > retain {
		retain = blockFor
	}
	return &Limiter{
		maxAttempts: maxAttempts,
		window:      window,
		blockFor:    blockFor,
		entries:     gocache.New(retain, 2*retain),
	}
}

// Check reports whether the client is currently blocked and, if so, for
// how much longer.
func (l *Limiter) Check(clientID string) (bool, time.Duration) {
	v, ok := l.entries.Get(clientID)
	if !ok {
		return false, 0
	}
	e := v.(attemptEntry)
	now := time.Now()
	if !e.BlockedUntil.IsZero() && now.Before(e.BlockedUntil) {
		return true, e.BlockedUntil.Sub(now)
	}
	return false, 0
}

// Fail records a failed attempt and returns the attempt count inside the
// current window. When the window has elapsed since the first attempt the
// counter restarts at one.
func (l *Limiter) Fail(clientID string) int {
	now := time.Now()

	e := attemptEntry{Count: 1, FirstAt: now}
	if v, ok := l.entries.Get(clientID); ok {
		prev := v.(attemptEntry)
		if now.Sub(prev.FirstAt) < l.window {
			e = prev
			e.Count++
		}
	}

	ttl := l.window
	if e.Count >= l.maxAttempts {
		e.BlockedUntil = now.Add(l.blockFor)
		if l.blockFor > ttl {
			ttl = l.blockFor
		}
	}

	l.entries.Set(clientID, e, ttl)
	return e.Count
}

// Reset clears the client's counter, e.g. after a successful login.
func (l *Limiter) Reset(clientID string) {
	l.entries.Delete(clientID)
}
