// Package jira provides functionality for interacting with the Jira API.
package jira

import (
	"context"
	"fmt"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"golang.org/x/time/rate"

	"github.com/jiralink/jiralink/internal/config"
	"github.com/jiralink/jiralink/internal/faults"
	"github.com/jiralink/jiralink/internal/logging"
	"github.com/jiralink/jiralink/pkg/models"
)

// maxSearchResults caps a single project fetch.
const maxSearchResults = 1000

// callTimeout bounds every remote Jira call.
const callTimeout = 30 * time.Second

// Client handles interactions with the Jira API.
type Client struct {
	client  *jira.Client
	limiter *rate.Limiter
}

// NewClient creates a new Jira client using the supplied configuration.
// Outbound calls are rate limited so a burst of webhook deliveries cannot
// hammer the remote API.
func NewClient(cfg config.JiraConfig) (*Client, error) {
	httpClient, err := newAuthClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build jira auth transport: %w", err)
	}

	client, err := jira.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	logging.Info("jira client initialized",
		"url", cfg.URL,
		"auth_method", cfg.AuthMethod,
		"token", logging.MaskSensitive(cfg.Token))

	return &Client{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}, nil
}

// SearchIssues fetches all issues for a project, most recently updated
// first, converted to the internal model.
func (c *Client) SearchIssues(ctx context.Context, projectKey string) ([]models.TrackedIssue, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, faults.Remote("jira", 0, "", err)
	}

	jql := fmt.Sprintf("project = %s ORDER BY updated DESC", projectKey)
	issues, resp, err := c.client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
		MaxResults: maxSearchResults,
		Fields: []string{
			"id", "key", "summary", "description", "status",
			"issuetype", "assignee", "created", "updated", "labels",
		},
	})
	if err != nil {
		return nil, remoteError(resp, "failed to search issues", err)
	}

	result := make([]models.TrackedIssue, 0, len(issues))
	for i := range issues {
		result = append(result, toTrackedIssue(&issues[i]))
	}

	logging.Debug("fetched jira issues", "project", projectKey, "count", len(result))
	return result, nil
}

// GetIssue fetches a single issue by key directly from Jira.
func (c *Client) GetIssue(ctx context.Context, key string) (models.TrackedIssue, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return models.TrackedIssue{}, faults.Remote("jira", 0, "", err)
	}

	issue, resp, err := c.client.Issue.GetWithContext(ctx, key, nil)
	if err != nil {
		return models.TrackedIssue{}, remoteError(resp, fmt.Sprintf("failed to get issue %s", key), err)
	}
	return toTrackedIssue(issue), nil
}

// CreateIssue creates a new issue and returns it with the remote-assigned
// key and server-side fields populated.
func (c *Client) CreateIssue(ctx context.Context, request models.CreateIssueRequest) (models.TrackedIssue, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return models.TrackedIssue{}, faults.Remote("jira", 0, "", err)
	}

	fields := &jira.IssueFields{
		Project: jira.Project{
			Key: request.ProjectKey,
		},
		Summary:     request.Summary,
		Description: request.Description,
		Type: jira.IssueType{
			Name: request.IssueType,
		},
		Labels: request.Labels,
	}
	if request.Assignee != "" {
		fields.Assignee = &jira.User{Name: request.Assignee}
	}
	if request.Priority != "" {
		fields.Priority = &jira.Priority{Name: request.Priority}
	}

	created, resp, err := c.client.Issue.CreateWithContext(ctx, &jira.Issue{Fields: fields})
	if err != nil {
		return models.TrackedIssue{}, remoteError(resp, "failed to create issue", err)
	}

	logging.Info("created jira issue", "key", created.Key, "type", request.IssueType)

	// The create response only carries id/key; fetch the full issue so the
	// caller gets server-populated fields.
	full, err := c.GetIssue(ctx, created.Key)
	if err != nil {
		logging.Warn("created issue but failed to fetch details", "key", created.Key, "error", err)
		return models.TrackedIssue{
			ID:      created.ID,
			Key:     created.Key,
			Summary: request.Summary,
			Type:    request.IssueType,
			Labels:  request.Labels,
		}, nil
	}
	return full, nil
}

// GetBoards lists the boards belonging to a project.
func (c *Client) GetBoards(ctx context.Context, projectKey string) ([]models.Board, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, faults.Remote("jira", 0, "", err)
	}

	boards, resp, err := c.client.Board.GetAllBoardsWithContext(ctx, &jira.BoardListOptions{
		ProjectKeyOrID: projectKey,
	})
	if err != nil {
		return nil, remoteError(resp, "failed to list boards", err)
	}

	result := make([]models.Board, 0, len(boards.Values))
	for _, board := range boards.Values {
		result = append(result, models.Board{
			ID:         board.ID,
			Name:       board.Name,
			Type:       board.Type,
			ProjectKey: projectKey,
		})
	}
	return result, nil
}

// toTrackedIssue converts a go-jira issue to the internal model.
func toTrackedIssue(issue *jira.Issue) models.TrackedIssue {
	tracked := models.TrackedIssue{
		ID:  issue.ID,
		Key: issue.Key,
	}
	if issue.Fields == nil {
		return tracked
	}

	tracked.Summary = issue.Fields.Summary
	tracked.Description = issue.Fields.Description
	tracked.Type = issue.Fields.Type.Name
	tracked.Labels = issue.Fields.Labels
	tracked.Created = time.Time(issue.Fields.Created)
	tracked.Updated = time.Time(issue.Fields.Updated)

	if issue.Fields.Status != nil {
		tracked.Status = issue.Fields.Status.Name
	}
	if issue.Fields.Assignee != nil {
		tracked.Assignee = issue.Fields.Assignee.DisplayName
		tracked.AssigneeEmail = issue.Fields.Assignee.EmailAddress
	}
	return tracked
}

// remoteError classifies a failed Jira call into the shared taxonomy.
func remoteError(resp *jira.Response, detail string, err error) error {
	statusCode := 0
	if resp != nil && resp.Response != nil {
		statusCode = resp.StatusCode
	}
	return faults.Remote("jira", statusCode, detail, err)
}
