// Package config handles configuration for the sitekeeper server,
// including defaults, environment overlay, JSON overlay, and command-line
// flags.
package config

import "time"

// Config holds runtime settings for the sitekeeper server.
//
// Fields:
//   - EndpointAddr: bind address for the HTTP endpoint.
//   - DataDir: directory for the per-entity collection files.
//   - SecretKey: HMAC secret for signing JWTs and short codes (HS256).
//     Do not use test defaults in prod.
//   - AdminUser / AdminPassword / AdminPasswordHash: admin credentials;
//     when AdminPasswordHash (bcrypt) is set it takes precedence over the
//     plain AdminPassword.
//   - SessionTTL / SessionRenewBelow: session token lifetime and the
//     remaining-lifetime mark below which a status check reissues a token.
//   - ShareTokenTTL: default lifetime for stateless share tokens.
//   - ShareCodePrefix / ShareCodeLength: short-code shape.
//   - LoginMaxAttempts / LoginWindow / LoginBlockFor / LoginBackoffStep:
//     login rate-limiter settings.
//   - SyncDebounce: debounce window before a remote sync flush.
//   - GithubToken / GithubRepo / GithubBranch / GithubPathPrefix /
//     GithubAPIBase: remote durable backend settings. Remote sync is
//     disabled entirely when token or repo is empty.
type Config struct {
	EndpointAddr      string
	DataDir           string
	SecretKey         string
	AdminUser         string
	AdminPassword     string
	AdminPasswordHash string
	SessionTTL        time.Duration
	SessionRenewBelow time.Duration
	ShareTokenTTL     time.Duration
	ShareCodePrefix   string
	ShareCodeLength   int
	LoginMaxAttempts  int
	LoginWindow       time.Duration
	LoginBlockFor     time.Duration
	LoginBackoffStep  time.Duration
	SyncDebounce      time.Duration
	GithubToken       string
	GithubRepo        string
	GithubBranch      string
	GithubPathPrefix  string
	GithubAPIBase     string
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8080"
	c.DataDir = "data"
	c.SecretKey = "secretKey"
	c.AdminUser = "admin"
	c.AdminPassword = "admin"
	c.SessionTTL = 12 * time.Hour
	c.SessionRenewBelow = 1 * time.Hour
	c.ShareTokenTTL = 72 * time.Hour
	c.ShareCodePrefix = "sk"
	c.ShareCodeLength = 10
	c.LoginMaxAttempts = 5
	c.LoginWindow = 15 * time.Minute
	c.LoginBlockFor = 15 * time.Minute
	c.LoginBackoffStep = 500 * time.Millisecond
	c.SyncDebounce = 5 * time.Second
	c.GithubBranch = "main"
	c.GithubPathPrefix = "content"
	c.GithubAPIBase = "https://api.github.com"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from the environment, an optional JSON file, and finally command-line
// flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
