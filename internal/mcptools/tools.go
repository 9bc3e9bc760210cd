// Package mcptools exposes the linking system to MCP clients as a set of
// tools over stdio. Each tool returns JSON text so the client can feed
// results back into a model without scraping.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jiralink/jiralink/internal/similarity"
	"github.com/jiralink/jiralink/pkg/models"
)

// IssueService is the tracked-issue operations the tools need.
type IssueService interface {
	CreateIssue(ctx context.Context, request models.CreateIssueRequest) (models.TrackedIssue, error)
	GetBoards(ctx context.Context, projectKey string) ([]models.Board, error)
}

// DiscussionService is the code-review operations the tools need.
type DiscussionService interface {
	ListPullRequests(ctx context.Context, state string) ([]models.PullRequest, error)
	ListComments(ctx context.Context, number int) ([]models.Comment, error)
}

// SnapshotStore provides the local issue snapshot.
type SnapshotStore interface {
	Refresh(ctx context.Context) (*models.Snapshot, error)
	Current() (*models.Snapshot, error)
}

// Processor runs the full linking pipeline for one comment.
type Processor interface {
	ProcessCommentWithThreshold(ctx context.Context, prNumber int, comment string, threshold float64) (models.ProcessingResult, error)
}

// Toolset bundles the dependencies behind the MCP tool surface.
type Toolset struct {
	issues      IssueService
	discussions DiscussionService
	snapshots   SnapshotStore
	processor   Processor
	projectKey  string
	threshold   float64
}

// NewToolset creates the tool surface. threshold is the default used by
// process_pr_comment_for_jira when the caller supplies none.
func NewToolset(issues IssueService, discussions DiscussionService, snapshots SnapshotStore,
	processor Processor, projectKey string, threshold float64) *Toolset {
	return &Toolset{
		issues:      issues,
		discussions: discussions,
		snapshots:   snapshots,
		processor:   processor,
		projectKey:  projectKey,
		threshold:   threshold,
	}
}

// NewServer builds the MCP server with every tool registered.
func (t *Toolset) NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"jiralink",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	t.register(s)
	return s
}

// Serve runs the MCP server over stdio until the client disconnects.
func (t *Toolset) Serve(version string) error {
	return server.ServeStdio(t.NewServer(version))
}

func (t *Toolset) register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("sync_jira_issues",
		mcp.WithDescription("Refresh the local snapshot of Jira issues from the configured project"),
	), t.handleSync)

	s.AddTool(mcp.NewTool("get_jira_issues",
		mcp.WithDescription("List issues from the local snapshot, optionally filtered by status or assignee substring"),
		mcp.WithString("status", mcp.Description("Case-insensitive substring to match against issue status")),
		mcp.WithString("assignee", mcp.Description("Case-insensitive substring to match against assignee name or email")),
	), t.handleGetIssues)

	s.AddTool(mcp.NewTool("get_jira_boards",
		mcp.WithDescription("List Jira boards for the configured project"),
	), t.handleGetBoards)

	s.AddTool(mcp.NewTool("search_similar_issues",
		mcp.WithDescription("Search the issue snapshot for entries similar to the given text"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to compare against issue summaries and descriptions")),
		mcp.WithNumber("threshold", mcp.Description("Similarity threshold between 0 and 1, defaults to 0.6")),
	), t.handleSearchSimilar)

	s.AddTool(mcp.NewTool("create_jira_issue",
		mcp.WithDescription("Create a new Jira issue in the configured project"),
		mcp.WithString("summary", mcp.Required(), mcp.Description("Issue summary")),
		mcp.WithString("description", mcp.Description("Issue description")),
		mcp.WithString("issue_type", mcp.Description("Issue type name, defaults to Bug")),
		mcp.WithString("labels", mcp.Description("Comma-separated labels")),
	), t.handleCreateIssue)

	s.AddTool(mcp.NewTool("get_github_pull_requests",
		mcp.WithDescription("List pull requests from the configured repository"),
		mcp.WithString("state", mcp.Description("PR state filter: open, closed or all, defaults to open")),
	), t.handleGetPullRequests)

	s.AddTool(mcp.NewTool("get_pull_request_comments",
		mcp.WithDescription("List conversation comments on a pull request"),
		mcp.WithNumber("pr_number", mcp.Required(), mcp.Description("Pull request number")),
	), t.handleGetComments)

	s.AddTool(mcp.NewTool("process_pr_comment_for_jira",
		mcp.WithDescription("Run the full linking pipeline for a pull request comment: parse intent, search for duplicates, then create or link a Jira issue"),
		mcp.WithNumber("pr_number", mcp.Required(), mcp.Description("Pull request number")),
		mcp.WithString("comment", mcp.Required(), mcp.Description("Comment text to process")),
		mcp.WithNumber("threshold", mcp.Description("Similarity threshold override between 0 and 1")),
	), t.handleProcessComment)
}

func (t *Toolset) handleSync(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshot, err := t.snapshots.Refresh(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("refreshing snapshot: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"issue_count": len(snapshot.Issues),
		"fetched_at":  snapshot.FetchedAt,
		"project_key": snapshot.SourceProjectKey,
	})
}

func (t *Toolset) handleGetIssues(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshot, err := t.snapshots.Current()
	if err != nil {
		return mcp.NewToolResultError("no issue snapshot available, run sync_jira_issues first"), nil
	}

	status := request.GetString("status", "")
	assignee := request.GetString("assignee", "")

	issues := make([]models.TrackedIssue, 0, len(snapshot.Issues))
	for _, issue := range snapshot.Issues {
		if status != "" && !containsFold(issue.Status, status) {
			continue
		}
		if assignee != "" && !containsFold(issue.Assignee, assignee) && !containsFold(issue.AssigneeEmail, assignee) {
			continue
		}
		issues = append(issues, issue)
	}

	return jsonResult(map[string]any{
		"issue_count": len(issues),
		"issues":      issues,
		"fetched_at":  snapshot.FetchedAt,
	})
}

func (t *Toolset) handleGetBoards(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	boards, err := t.issues.GetBoards(ctx, t.projectKey)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing boards: %v", err)), nil
	}
	return jsonResult(map[string]any{"boards": boards})
}

func (t *Toolset) handleSearchSimilar(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	threshold := request.GetFloat("threshold", 0.6)
	if threshold < 0 || threshold > 1 {
		return mcp.NewToolResultError("threshold must be between 0 and 1"), nil
	}

	snapshot, err := t.snapshots.Current()
	if err != nil {
		return mcp.NewToolResultError("no issue snapshot available, run sync_jira_issues first"), nil
	}

	// Report every issue at or above the threshold, best first.
	type scored struct {
		Issue models.TrackedIssue `json:"issue"`
		Score float64             `json:"score"`
	}
	var matches []scored
	for _, issue := range snapshot.Issues {
		score := similarity.Score(query, issue.Summary)
		if issue.Description != "" {
			if ds := similarity.Score(query, issue.Description); ds > score {
				score = ds
			}
		}
		if score >= threshold {
			matches = append(matches, scored{Issue: issue, Score: score})
		}
	}
	for i := 0; i < len(matches); i++ {
		for j := i + 1; j < len(matches); j++ {
			if matches[j].Score > matches[i].Score {
				matches[i], matches[j] = matches[j], matches[i]
			}
		}
	}

	return jsonResult(map[string]any{
		"match_count": len(matches),
		"threshold":   threshold,
		"matches":     matches,
	})
}

func (t *Toolset) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := request.RequireString("summary")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	issueType := request.GetString("issue_type", "Bug")
	var labels []string
	if raw := request.GetString("labels", ""); raw != "" {
		for _, label := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(label); trimmed != "" {
				labels = append(labels, trimmed)
			}
		}
	}

	created, err := t.issues.CreateIssue(ctx, models.CreateIssueRequest{
		Summary:     summary,
		Description: request.GetString("description", ""),
		IssueType:   issueType,
		ProjectKey:  t.projectKey,
		Labels:      labels,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("creating issue: %v", err)), nil
	}
	return jsonResult(created)
}

func (t *Toolset) handleGetPullRequests(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state := request.GetString("state", "open")
	switch state {
	case "open", "closed", "all":
	default:
		return mcp.NewToolResultError("state must be open, closed or all"), nil
	}

	prs, err := t.discussions.ListPullRequests(ctx, state)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing pull requests: %v", err)), nil
	}
	return jsonResult(map[string]any{"pull_request_count": len(prs), "pull_requests": prs})
}

func (t *Toolset) handleGetComments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prNumber, err := request.RequireInt("pr_number")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	comments, err := t.discussions.ListComments(ctx, prNumber)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing comments: %v", err)), nil
	}
	return jsonResult(map[string]any{"comment_count": len(comments), "comments": comments})
}

func (t *Toolset) handleProcessComment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prNumber, err := request.RequireInt("pr_number")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	comment, err := request.RequireString("comment")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	threshold := request.GetFloat("threshold", t.threshold)
	if threshold < 0 || threshold > 1 {
		return mcp.NewToolResultError("threshold must be between 0 and 1"), nil
	}

	result, err := t.processor.ProcessCommentWithThreshold(ctx, prNumber, comment, threshold)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("processing comment: %v", err)), nil
	}

	response := map[string]any{
		"action": string(result.Action),
		"reason": result.Reason,
	}
	if result.Issue != nil {
		response["issue"] = result.Issue
		response["similarity"] = result.Similarity
	}
	return jsonResult(response)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
