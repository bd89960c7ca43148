package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/badrabdoph/sitekeeper/internal/common"
	"github.com/badrabdoph/sitekeeper/internal/config"
	"github.com/badrabdoph/sitekeeper/internal/logging"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.AdminUser = "admin"
	cfg.AdminPassword = "s3cret"
	cfg.SecretKey = "0123456789abcdef"
	cfg.SessionTTL = time.Hour
	cfg.SessionRenewBelow = time.Minute
	cfg.LoginMaxAttempts = 3
	cfg.LoginWindow = time.Hour
	cfg.LoginBlockFor = 80 * time.Millisecond
	cfg.LoginBackoffStep = 0
	return cfg
}

func testGuard(t *testing.T, cfg *config.Config) *Guard {
	t.Helper()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	g := NewGuard(cfg, log)
	g.sleep = func(ctx context.Context, d time.Duration) {}
	return g
}

func TestLoginAndVerify(t *testing.T) {
	g := testGuard(t, testConfig())

	token, expiresAt, err := g.Login(context.Background(), "1.2.3.4", "admin", "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	got, ok := g.Verify(token)
	require.True(t, ok)
	assert.WithinDuration(t, expiresAt, got, time.Second)
}

func TestLoginWrongCredentials(t *testing.T) {
	g := testGuard(t, testConfig())

	_, _, err := g.Login(context.Background(), "1.2.3.4", "admin", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, _, err = g.Login(context.Background(), "1.2.3.4", "nobody", "s3cret")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestLoginBcryptHash(t *testing.T) {
	cfg := testConfig()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg.AdminPasswordHash = string(hash)
	g := testGuard(t, cfg)

	// plain-text password from config is ignored once a hash is set
	_, _, err = g.Login(context.Background(), "1.2.3.4", "admin", "s3cret")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, _, err = g.Login(context.Background(), "1.2.3.4", "admin", "hunter2")
	assert.NoError(t, err)
}

func TestLoginBlockedAfterRepeatedFailures(t *testing.T) {
	g := testGuard(t, testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := g.Login(ctx, "9.9.9.9", "admin", "wrong")
		assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	}

	// correct credentials are rejected while the block holds
	_, _, err := g.Login(ctx, "9.9.9.9", "admin", "s3cret")
	var tooMany *common.TooManyAttemptsError
	require.True(t, errors.As(err, &tooMany))
	assert.Greater(t, tooMany.RetryAfter, time.Duration(0))

	// a different client can still log in
	_, _, err = g.Login(ctx, "8.8.8.8", "admin", "s3cret")
	assert.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	_, _, err = g.Login(ctx, "9.9.9.9", "admin", "s3cret")
	assert.NoError(t, err)
}

func TestLoginBackoffEscalates(t *testing.T) {
	cfg := testConfig()
	cfg.LoginBackoffStep = 100 * time.Millisecond
	g := testGuard(t, cfg)

	var delays []time.Duration
	g.sleep = func(ctx context.Context, d time.Duration) {
		delays = append(delays, d)
	}

	ctx := context.Background()
	g.Login(ctx, "1.1.1.1", "admin", "wrong")
	g.Login(ctx, "1.1.1.1", "admin", "wrong")

	require.Len(t, delays, 2)
	assert.Equal(t, 100*time.Millisecond, delays[0])
	assert.Equal(t, 200*time.Millisecond, delays[1])
}

func TestSuccessfulLoginResetsCounter(t *testing.T) {
	g := testGuard(t, testConfig())
	ctx := context.Background()

	g.Login(ctx, "1.1.1.1", "admin", "wrong")
	g.Login(ctx, "1.1.1.1", "admin", "wrong")
	_, _, err := g.Login(ctx, "1.1.1.1", "admin", "s3cret")
	require.NoError(t, err)

	// the earlier failures no longer count toward the threshold
	for i := 0; i < 2; i++ {
		_, _, err = g.Login(ctx, "1.1.1.1", "admin", "wrong")
		assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	}
}

func TestVerifyRejectsForeignToken(t *testing.T) {
	g := testGuard(t, testConfig())

	other := testConfig()
	other.SecretKey = "another-secret!!"
	g2 := testGuard(t, other)

	token, _, err := g2.Login(context.Background(), "1.2.3.4", "admin", "s3cret")
	require.NoError(t, err)

	_, ok := g.Verify(token)
	assert.False(t, ok)

	_, ok = g.Verify("not-a-token")
	assert.False(t, ok)
}

func TestStatusRenewsExpiringSession(t *testing.T) {
	cfg := testConfig()
	cfg.SessionTTL = 30 * time.Second
	cfg.SessionRenewBelow = time.Hour
	g := testGuard(t, cfg)

	token, _, err := g.Login(context.Background(), "1.2.3.4", "admin", "s3cret")
	require.NoError(t, err)

	valid, expiresAt, renewed, err := g.Status(token)
	require.NoError(t, err)
	assert.True(t, valid)
	require.NotEmpty(t, renewed)
	assert.NotEqual(t, token, renewed)

	got, ok := g.Verify(renewed)
	require.True(t, ok)
	assert.WithinDuration(t, expiresAt, got, time.Second)
}

func TestStatusLeavesFreshSessionAlone(t *testing.T) {
	g := testGuard(t, testConfig())

	token, _, err := g.Login(context.Background(), "1.2.3.4", "admin", "s3cret")
	require.NoError(t, err)

	valid, _, renewed, err := g.Status(token)
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Empty(t, renewed)

	valid, _, _, err = g.Status("garbage")
	require.NoError(t, err)
	assert.False(t, valid)
}
