package session

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/badrabdoph/sitekeeper/internal/common"
	"github.com/badrabdoph/sitekeeper/internal/config"
	"github.com/badrabdoph/sitekeeper/internal/logging"
)

const (
	sessionIssuer   = "sitekeeper"
	sessionAudience = "admin"
	sessionSubject  = "admin-session"

	// maxBackoff caps the escalating delay so a long failure streak cannot
	// hold a handler goroutine for arbitrarily long.
	maxBackoff = 5 * time.Second
)

// Guard validates admin credentials and manages the session token. All
// state besides the rate limiter lives in the token itself.
type Guard struct {
	user         string
	password     string
	passwordHash string
	secret       []byte
	ttl          time.Duration
	renewBelow   time.Duration
	backoffStep  time.Duration
	limiter      *Limiter
	log          logging.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration)
}

func NewGuard(cfg *config.Config, log logging.Logger) *Guard {
	return &Guard{
		user:         cfg.AdminUser,
		password:     cfg.AdminPassword,
		passwordHash: cfg.AdminPasswordHash,
		secret:       []byte(cfg.SecretKey),
		ttl:          cfg.SessionTTL,
		renewBelow:   cfg.SessionRenewBelow,
		backoffStep:  cfg.LoginBackoffStep,
		limiter:      NewLimiter(cfg.LoginMaxAttempts, cfg.LoginWindow, cfg.LoginBlockFor),
		log:          log.With("module", "session"),
		sleep:        sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Login checks the credentials for a client identified by clientID
// (typically the remote address) and returns a fresh session token. The
// rate limiter is consulted before the credentials, so a blocked client
// learns nothing about their validity.
func (g *Guard) Login(ctx context.Context, clientID, username, password string) (string, time.Time, error) {
	if blocked, retryAfter := g.limiter.Check(clientID); blocked {
		return "", time.Time{}, &common.TooManyAttemptsError{RetryAfter: retryAfter}
	}

	if !g.checkCredentials(username, password) {
		count := g.limiter.Fail(clientID)
		g.log.Warn(ctx, "failed login attempt", "client", clientID, "attempt", count)
		g.backoff(ctx, count)
		return "", time.Time{}, common.ErrInvalidCredentials
	}

	g.limiter.Reset(clientID)
	return g.issue()
}

// checkCredentials compares both fields in constant time and without
// short-circuiting, so a correct username alone does not change timing.
func (g *Guard) checkCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(g.user)) == 1

	var passOK bool
	if g.passwordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(g.passwordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(g.password)) == 1
	}

	return userOK && passOK
}

// backoff delays the failure response in proportion to the attempt count.
func (g *Guard) backoff(ctx context.Context, count int) {
	if g.backoffStep <= 0 {
		return
	}
	delay := time.Duration(count) * g.backoffStep
	if delay > maxBackoff {
		delay = maxBackoff
	}
	g.sleep(ctx, delay)
}

func (g *Guard) issue() (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(g.ttl)

	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   sessionSubject,
		Audience:  jwt.ClaimStrings{sessionAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify parses the session token and returns its expiry. Any parse or
// claim failure yields ok == false; the caller does not need the reason.
func (g *Guard) Verify(token string) (time.Time, bool) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) { return g.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithAudience(sessionAudience),
		jwt.WithSubject(sessionSubject),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return time.Time{}, false
	}
	claims := parsed.Claims.(*jwt.RegisteredClaims)
	return claims.ExpiresAt.Time, true
}

// Status reports whether the token is still valid. When less than the
// renewal threshold remains it also mints a replacement token, so an
// active session never expires mid-use.
func (g *Guard) Status(token string) (valid bool, expiresAt time.Time, renewed string, err error) {
	expiresAt, ok := g.Verify(token)
	if !ok {
		return false, time.Time{}, "", nil
	}

	if time.Until(expiresAt) < g.renewBelow {
		renewed, expiresAt, err = g.issue()
		if err != nil {
			return false, time.Time{}, "", err
		}
		return true, expiresAt, renewed, nil
	}

	return true, expiresAt, "", nil
}
