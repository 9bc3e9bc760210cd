package jira

import (
	"fmt"
	"net/http"

	jira "github.com/andygrunwald/go-jira"

	"github.com/jiralink/jiralink/internal/config"
	"github.com/jiralink/jiralink/internal/logging"
)

// newAuthClient builds the HTTP client carrying authentication for the
// configured scheme. Basic auth (username + API token) is the broadly
// compatible default; bearer covers deployments that only accept personal
// access tokens. An unrecognized method falls back to basic with a warning
// rather than failing startup.
func newAuthClient(cfg config.JiraConfig) (*http.Client, error) {
	switch cfg.AuthMethod {
	case "basic", "":
		return basicClient(cfg)
	case "bearer":
		if cfg.Token == "" {
			return nil, fmt.Errorf("bearer authentication requires JIRA_TOKEN")
		}
		tp := jira.BearerAuthTransport{Token: cfg.Token}
		return tp.Client(), nil
	default:
		logging.Warn("unknown jira auth method, falling back to basic",
			"auth_method", cfg.AuthMethod)
		return basicClient(cfg)
	}
}

func basicClient(cfg config.JiraConfig) (*http.Client, error) {
	if cfg.Username == "" || cfg.Token == "" {
		return nil, fmt.Errorf("basic authentication requires JIRA_USERNAME and JIRA_TOKEN")
	}
	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.Token,
	}
	return tp.Client(), nil
}
