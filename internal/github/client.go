// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/jiralink/jiralink/internal/config"
	"github.com/jiralink/jiralink/internal/faults"
	"github.com/jiralink/jiralink/internal/logging"
	"github.com/jiralink/jiralink/pkg/models"
)

// callTimeout bounds every remote GitHub call.
const callTimeout = 30 * time.Second

// Client encapsulates the GitHub API client, scoped to one repository.
type Client struct {
	client *github.Client
	owner  string
	repo   string
}

// NewClient creates a new GitHub API client from configuration. It supports
// GitHub Enterprise through the domain setting by rewriting the API base URL.
func NewClient(cfg config.GitHubConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("github token not found in configuration")
	}

	domain := cfg.Domain
	if domain == "" {
		domain = "github.com"
	}

	var apiURL string
	if domain == "github.com" {
		apiURL = "https://api.github.com/"
	} else {
		apiURL = fmt.Sprintf("https://%s/api/v3/", domain)
	}

	logging.Info("github configuration",
		"domain", domain,
		"api_url", apiURL,
		"repository", cfg.Owner+"/"+cfg.Repo,
		"token", logging.MaskSensitive(cfg.Token))

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: cfg.Token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	client := github.NewClient(tc)

	if domain != "github.com" {
		parsedURL, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = parsedURL
		client.UploadURL = parsedURL
	}

	return &Client{client: client, owner: cfg.Owner, repo: cfg.Repo}, nil
}

// GetPullRequest retrieves a single pull request by number.
func (c *Client) GetPullRequest(ctx context.Context, number int) (models.PullRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	pr, resp, err := c.client.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return models.PullRequest{}, remoteError(resp, fmt.Sprintf("failed to get pull request #%d", number), err)
	}
	return toPullRequest(pr), nil
}

// ListPullRequests retrieves pull requests filtered by state ("open",
// "closed" or "all"), following pagination.
func (c *Client) ListPullRequests(ctx context.Context, state string) ([]models.PullRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if state == "" {
		state = "all"
	}

	opts := &github.PullRequestListOptions{
		State: state,
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	var result []models.PullRequest
	for {
		prs, resp, err := c.client.PullRequests.List(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, remoteError(resp, "failed to list pull requests", err)
		}
		for _, pr := range prs {
			result = append(result, toPullRequest(pr))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	logging.Debug("fetched pull requests", "state", state, "count", len(result))
	return result, nil
}

// ListComments retrieves the conversation comments on a pull request,
// following pagination. PR conversation comments live on the issues API.
func (c *Client) ListComments(ctx context.Context, number int) ([]models.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	var result []models.Comment
	for {
		comments, resp, err := c.client.Issues.ListComments(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, remoteError(resp, fmt.Sprintf("failed to list comments for #%d", number), err)
		}
		for _, comment := range comments {
			result = append(result, toComment(comment, number))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return result, nil
}

// PostComment adds a comment to a pull request's conversation.
func (c *Client) PostComment(ctx context.Context, number int, body string) (models.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	comment, resp, err := c.client.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return models.Comment{}, remoteError(resp, fmt.Sprintf("failed to post comment on #%d", number), err)
	}

	logging.Debug("posted pull request comment", "pr", number, "comment_id", comment.GetID())
	return toComment(comment, number), nil
}

// PullRequestURL returns the web URL for a pull request number.
func (c *Client) PullRequestURL(number int) string {
	return fmt.Sprintf("https://github.com/%s/%s/pull/%d", c.owner, c.repo, number)
}

func toPullRequest(pr *github.PullRequest) models.PullRequest {
	labels := make([]string, 0, len(pr.Labels))
	for _, label := range pr.Labels {
		labels = append(labels, label.GetName())
	}

	return models.PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Body:      pr.GetBody(),
		Author:    pr.GetUser().GetLogin(),
		State:     pr.GetState(),
		Labels:    labels,
		CreatedAt: pr.GetCreatedAt(),
		HTMLURL:   pr.GetHTMLURL(),
	}
}

func toComment(comment *github.IssueComment, prNumber int) models.Comment {
	return models.Comment{
		ID:                comment.GetID(),
		Body:              comment.GetBody(),
		Author:            comment.GetUser().GetLogin(),
		CreatedAt:         comment.GetCreatedAt(),
		PullRequestNumber: prNumber,
	}
}

// remoteError classifies a failed GitHub call into the shared taxonomy.
func remoteError(resp *github.Response, detail string, err error) error {
	statusCode := 0
	if resp != nil && resp.Response != nil {
		statusCode = resp.StatusCode
	}
	return faults.Remote("github", statusCode, detail, err)
}
