package github

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-github/v41/github"

	"github.com/jiralink/jiralink/internal/config"
	"github.com/jiralink/jiralink/internal/faults"
)

func TestNewClientValidation(t *testing.T) {
	testCases := []struct {
		name      string
		cfg       config.GitHubConfig
		wantError bool
	}{
		{
			name: "Valid default domain",
			cfg: config.GitHubConfig{
				Token: "test-token",
				Owner: "example",
				Repo:  "service",
			},
			wantError: false,
		},
		{
			name: "Valid enterprise domain",
			cfg: config.GitHubConfig{
				Token:  "test-token",
				Owner:  "example",
				Repo:   "service",
				Domain: "github.example.com",
			},
			wantError: false,
		},
		{
			name:      "Missing token",
			cfg:       config.GitHubConfig{Owner: "example", Repo: "service"},
			wantError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(tc.cfg)
			if tc.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client == nil {
				t.Fatal("expected a client")
			}
		})
	}
}

func TestNewClientEnterpriseBaseURL(t *testing.T) {
	client, err := NewClient(config.GitHubConfig{
		Token:  "test-token",
		Owner:  "example",
		Repo:   "service",
		Domain: "github.example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := client.client.BaseURL.String(); got != "https://github.example.com/api/v3/" {
		t.Errorf("BaseURL = %q", got)
	}
}

func TestPullRequestURL(t *testing.T) {
	client, err := NewClient(config.GitHubConfig{
		Token: "test-token",
		Owner: "example",
		Repo:  "service",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://github.com/example/service/pull/42"
	if got := client.PullRequestURL(42); got != want {
		t.Errorf("PullRequestURL = %q, want %q", got, want)
	}
}

func TestToPullRequest(t *testing.T) {
	created := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	pr := &github.PullRequest{
		Number:    github.Int(42),
		Title:     github.String("Add retry logic"),
		Body:      github.String("Retries transient failures"),
		State:     github.String("open"),
		CreatedAt: &created,
		HTMLURL:   github.String("https://github.com/example/service/pull/42"),
		User:      &github.User{Login: github.String("octocat")},
		Labels: []*github.Label{
			{Name: github.String("needs-jira")},
			{Name: github.String("backend")},
		},
	}

	got := toPullRequest(pr)
	if got.Number != 42 || got.Title != "Add retry logic" || got.Author != "octocat" {
		t.Errorf("conversion wrong: %+v", got)
	}
	if len(got.Labels) != 2 || got.Labels[0] != "needs-jira" {
		t.Errorf("Labels = %v", got.Labels)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v", got.CreatedAt)
	}
}

func TestToPullRequestNilFields(t *testing.T) {
	got := toPullRequest(&github.PullRequest{Number: github.Int(7)})
	if got.Number != 7 {
		t.Errorf("Number = %d", got.Number)
	}
	if got.Title != "" || got.Author != "" || got.Body != "" {
		t.Errorf("expected zero values for nil fields: %+v", got)
	}
}

func TestToComment(t *testing.T) {
	comment := &github.IssueComment{
		ID:   github.Int64(9001),
		Body: github.String("create jira for this"),
		User: &github.User{Login: github.String("reviewer")},
	}

	got := toComment(comment, 42)
	if got.ID != 9001 || got.Body != "create jira for this" || got.Author != "reviewer" {
		t.Errorf("conversion wrong: %+v", got)
	}
	if got.PullRequestNumber != 42 {
		t.Errorf("PullRequestNumber = %d", got.PullRequestNumber)
	}
}

func TestRemoteErrorClassification(t *testing.T) {
	rejected := remoteError(
		&github.Response{Response: &http.Response{StatusCode: 422}},
		"validation failed",
		errors.New("unprocessable"),
	)
	re, ok := faults.AsRemote(rejected)
	if !ok {
		t.Fatal("expected RemoteError")
	}
	if !re.Rejected() {
		t.Errorf("422 should classify as rejected: %+v", re)
	}

	unavailable := remoteError(nil, "timeout", errors.New("dial tcp: timeout"))
	re, ok = faults.AsRemote(unavailable)
	if !ok {
		t.Fatal("expected RemoteError")
	}
	if !re.Unavailable() {
		t.Errorf("network failure should classify as unavailable: %+v", re)
	}
}
