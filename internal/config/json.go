package config

import (
	"encoding/json"
	"os"

	"github.com/badrabdoph/sitekeeper/internal/flagx"
	"github.com/badrabdoph/sitekeeper/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. It uses timex.Duration for interval fields, which allows parsing
// both string values such as "5s" and integer nanoseconds. After
// unmarshalling, set fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddr      *string         `json:"endpoint_addr"`
	DataDir           *string         `json:"data_dir"`
	SecretKey         *string         `json:"secret_key"`
	AdminUser         *string         `json:"admin_user"`
	AdminPassword     *string         `json:"admin_password"`
	AdminPasswordHash *string         `json:"admin_password_hash"`
	SessionTTL        *timex.Duration `json:"session_ttl"`
	SessionRenewBelow *timex.Duration `json:"session_renew_below"`
	ShareTokenTTL     *timex.Duration `json:"share_token_ttl"`
	ShareCodePrefix   *string         `json:"share_code_prefix"`
	ShareCodeLength   *int            `json:"share_code_length"`
	LoginMaxAttempts  *int            `json:"login_max_attempts"`
	LoginWindow       *timex.Duration `json:"login_window"`
	LoginBlockFor     *timex.Duration `json:"login_block_for"`
	LoginBackoffStep  *timex.Duration `json:"login_backoff_step"`
	SyncDebounce      *timex.Duration `json:"sync_debounce"`
	GithubToken       *string         `json:"github_token"`
	GithubRepo        *string         `json:"github_repo"`
	GithubBranch      *string         `json:"github_branch"`
	GithubPathPrefix  *string         `json:"github_path_prefix"`
	GithubAPIBase     *string         `json:"github_api_base"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. Absent flags mean no JSON file
// is loaded; unreadable or invalid files panic. Only fields present in the
// file override earlier layers.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != nil {
		config.EndpointAddr = *c.EndpointAddr
	}
	if c.DataDir != nil {
		config.DataDir = *c.DataDir
	}
	if c.SecretKey != nil {
		config.SecretKey = *c.SecretKey
	}
	if c.AdminUser != nil {
		config.AdminUser = *c.AdminUser
	}
	if c.AdminPassword != nil {
		config.AdminPassword = *c.AdminPassword
	}
	if c.AdminPasswordHash != nil {
		config.AdminPasswordHash = *c.AdminPasswordHash
	}
	if c.SessionTTL != nil {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.SessionRenewBelow != nil {
		config.SessionRenewBelow = c.SessionRenewBelow.Duration
	}
	if c.ShareTokenTTL != nil {
		config.ShareTokenTTL = c.ShareTokenTTL.Duration
	}
	if c.ShareCodePrefix != nil {
		config.ShareCodePrefix = *c.ShareCodePrefix
	}
	if c.ShareCodeLength != nil {
		config.ShareCodeLength = *c.ShareCodeLength
	}
	if c.LoginMaxAttempts != nil {
		config.LoginMaxAttempts = *c.LoginMaxAttempts
	}
	if c.LoginWindow != nil {
		config.LoginWindow = c.LoginWindow.Duration
	}
	if c.LoginBlockFor != nil {
		config.LoginBlockFor = c.LoginBlockFor.Duration
	}
	if c.LoginBackoffStep != nil {
		config.LoginBackoffStep = c.LoginBackoffStep.Duration
	}
	if c.SyncDebounce != nil {
		config.SyncDebounce = c.SyncDebounce.Duration
	}
	if c.GithubToken != nil {
		config.GithubToken = *c.GithubToken
	}
	if c.GithubRepo != nil {
		config.GithubRepo = *c.GithubRepo
	}
	if c.GithubBranch != nil {
		config.GithubBranch = *c.GithubBranch
	}
	if c.GithubPathPrefix != nil {
		config.GithubPathPrefix = *c.GithubPathPrefix
	}
	if c.GithubAPIBase != nil {
		config.GithubAPIBase = *c.GithubAPIBase
	}
}
