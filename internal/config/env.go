package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv overlays Config values from SITEKEEPER_* environment variables.
// A typical deployment sets these through an .env file loaded at startup.
func parseEnv(config *Config) {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setDuration := func(dst *time.Duration, key string) {
		if v, ok := os.LookupEnv(key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	setString(&config.EndpointAddr, "SITEKEEPER_ADDR")
	setString(&config.DataDir, "SITEKEEPER_DATA_DIR")
	setString(&config.SecretKey, "SITEKEEPER_SECRET_KEY")
	setString(&config.AdminUser, "SITEKEEPER_ADMIN_USER")
	setString(&config.AdminPassword, "SITEKEEPER_ADMIN_PASSWORD")
	setString(&config.AdminPasswordHash, "SITEKEEPER_ADMIN_PASSWORD_HASH")
	setDuration(&config.SessionTTL, "SITEKEEPER_SESSION_TTL")
	setDuration(&config.SessionRenewBelow, "SITEKEEPER_SESSION_RENEW_BELOW")
	setDuration(&config.ShareTokenTTL, "SITEKEEPER_SHARE_TOKEN_TTL")
	setString(&config.ShareCodePrefix, "SITEKEEPER_SHARE_CODE_PREFIX")
	setInt(&config.ShareCodeLength, "SITEKEEPER_SHARE_CODE_LENGTH")
	setInt(&config.LoginMaxAttempts, "SITEKEEPER_LOGIN_MAX_ATTEMPTS")
	setDuration(&config.LoginWindow, "SITEKEEPER_LOGIN_WINDOW")
	setDuration(&config.LoginBlockFor, "SITEKEEPER_LOGIN_BLOCK_FOR")
	setDuration(&config.LoginBackoffStep, "SITEKEEPER_LOGIN_BACKOFF_STEP")
	setDuration(&config.SyncDebounce, "SITEKEEPER_SYNC_DEBOUNCE")
	setString(&config.GithubToken, "SITEKEEPER_GITHUB_TOKEN")
	setString(&config.GithubRepo, "SITEKEEPER_GITHUB_REPO")
	setString(&config.GithubBranch, "SITEKEEPER_GITHUB_BRANCH")
	setString(&config.GithubPathPrefix, "SITEKEEPER_GITHUB_PATH_PREFIX")
	setString(&config.GithubAPIBase, "SITEKEEPER_GITHUB_API_BASE")
}
