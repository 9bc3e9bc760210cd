// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default values applied when the corresponding variable is unset.
const (
	DefaultPort           = 3000
	DefaultSyncInterval   = 5 * time.Minute
	DefaultMatchThreshold = 0.7
	DefaultAutoLabel      = "needs-jira"
	DefaultAuthMethod     = "basic"
)

// Config holds all configuration parameters for the application.
type Config struct {
	Jira   JiraConfig
	GitHub GitHubConfig
	Server ServerConfig
}

// JiraConfig holds Jira specific configuration.
type JiraConfig struct {
	URL        string
	Username   string
	Token      string
	ProjectKey string

	// AuthMethod selects the authentication scheme, "basic" or "bearer".
	AuthMethod string
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token         string
	WebhookSecret string
	Owner         string
	Repo          string

	// Domain supports GitHub Enterprise deployments; empty means github.com.
	Domain string
}

// ServerConfig holds webhook server and pipeline tuning parameters.
type ServerConfig struct {
	Port int

	// SyncInterval is how often the issue snapshot is refreshed.
	SyncInterval time.Duration

	// MatchThreshold is the default similarity threshold for deduplication.
	MatchThreshold float64

	// AutoProcessLabel triggers issue creation for freshly opened PRs
	// carrying this label.
	AutoProcessLabel string
}

// LoadConfig initializes and loads configuration from environment variables.
// A .env file in the working directory is honored when present.
func LoadConfig() (*Config, error) {
	// Best effort - absence of a .env file is the normal production case
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Map specific environment variables
	v.BindEnv("jira.url", "JIRA_URL")
	v.BindEnv("jira.username", "JIRA_USERNAME")
	v.BindEnv("jira.token", "JIRA_TOKEN")
	v.BindEnv("jira.project_key", "JIRA_PROJECT_KEY")
	v.BindEnv("jira.auth_method", "JIRA_AUTH_METHOD")
	v.BindEnv("github.token", "GITHUB_TOKEN")
	v.BindEnv("github.webhook_secret", "GITHUB_WEBHOOK_SECRET")
	v.BindEnv("github.owner", "GITHUB_OWNER")
	v.BindEnv("github.repo", "GITHUB_REPO")
	v.BindEnv("github.domain", "GITHUB_DOMAIN")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.sync_interval", "SYNC_INTERVAL")
	v.BindEnv("server.match_threshold", "MATCH_THRESHOLD")
	v.BindEnv("server.auto_process_label", "AUTO_PROCESS_LABEL")

	v.SetDefault("jira.auth_method", DefaultAuthMethod)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.sync_interval", DefaultSyncInterval)
	v.SetDefault("server.match_threshold", DefaultMatchThreshold)
	v.SetDefault("server.auto_process_label", DefaultAutoLabel)

	config := &Config{
		Jira: JiraConfig{
			URL:        v.GetString("jira.url"),
			Username:   v.GetString("jira.username"),
			Token:      v.GetString("jira.token"),
			ProjectKey: v.GetString("jira.project_key"),
			AuthMethod: strings.ToLower(v.GetString("jira.auth_method")),
		},
		GitHub: GitHubConfig{
			Token:         v.GetString("github.token"),
			WebhookSecret: v.GetString("github.webhook_secret"),
			Owner:         v.GetString("github.owner"),
			Repo:          v.GetString("github.repo"),
			Domain:        v.GetString("github.domain"),
		},
		Server: ServerConfig{
			Port:             v.GetInt("server.port"),
			SyncInterval:     v.GetDuration("server.sync_interval"),
			MatchThreshold:   v.GetFloat64("server.match_threshold"),
			AutoProcessLabel: v.GetString("server.auto_process_label"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validateConfig ensures that all required configuration values are provided.
func validateConfig(config *Config) error {
	var missingVars []string

	if config.Jira.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Jira.Token == "" {
		missingVars = append(missingVars, "JIRA_TOKEN")
	}
	if config.Jira.ProjectKey == "" {
		missingVars = append(missingVars, "JIRA_PROJECT_KEY")
	}
	if config.GitHub.Token == "" {
		missingVars = append(missingVars, "GITHUB_TOKEN")
	}
	if config.GitHub.Owner == "" {
		missingVars = append(missingVars, "GITHUB_OWNER")
	}
	if config.GitHub.Repo == "" {
		missingVars = append(missingVars, "GITHUB_REPO")
	}

	// Basic auth additionally needs the username half of the pair
	if config.Jira.AuthMethod != "bearer" && config.Jira.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	if config.Server.MatchThreshold < 0 || config.Server.MatchThreshold > 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be between 0 and 1, got %v", config.Server.MatchThreshold)
	}
	if config.Server.SyncInterval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive, got %v", config.Server.SyncInterval)
	}

	return nil
}

// ValidateWebhookConfig validates settings only the webhook server needs.
func ValidateWebhookConfig(config *Config) error {
	if config.GitHub.WebhookSecret == "" {
		return fmt.Errorf("missing required environment variables: [GITHUB_WEBHOOK_SECRET]")
	}
	return nil
}
