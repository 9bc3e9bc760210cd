// Package orchestrator sequences one pass over a pull-request event:
// parse the comment for intent, search the issue snapshot for a duplicate,
// then either link the existing issue or create a new one, and record the
// outcome as a reply on the pull request.
//
// A pass is at-most-once per delivery: remote failures abort the pass and
// are never retried internally; webhook redelivery is the retry mechanism,
// and the reply-scan idempotency guard keeps redeliveries from creating
// duplicates.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/jiralink/jiralink/internal/faults"
	"github.com/jiralink/jiralink/internal/intent"
	"github.com/jiralink/jiralink/internal/logging"
	"github.com/jiralink/jiralink/internal/similarity"
	"github.com/jiralink/jiralink/pkg/models"
)

// linkMarker is embedded invisibly in every reply this system posts, so a
// later pass can recognize its own prior work when scanning the PR
// conversation.
const linkMarker = "<!-- jiralink -->"

// issueKeyPattern matches a Jira issue key such as PROJ-123.
var issueKeyPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]+-\d+\b`)

// IssueService is the slice of the tracked-issue system the orchestrator
// writes to.
type IssueService interface {
	CreateIssue(ctx context.Context, request models.CreateIssueRequest) (models.TrackedIssue, error)
}

// DiscussionService is the slice of the code-review system the orchestrator
// reads from and replies to.
type DiscussionService interface {
	GetPullRequest(ctx context.Context, number int) (models.PullRequest, error)
	ListComments(ctx context.Context, number int) ([]models.Comment, error)
	PostComment(ctx context.Context, number int, body string) (models.Comment, error)
}

// SnapshotStore is the local issue snapshot the duplicate search runs
// against.
type SnapshotStore interface {
	Current() (*models.Snapshot, error)
	Refresh(ctx context.Context) (*models.Snapshot, error)
	Stale() bool
}

// Orchestrator wires the parser, matcher, cache and remote clients into the
// linking pipeline. It is stateless per call; passes for distinct events may
// run concurrently.
type Orchestrator struct {
	issues      IssueService
	discussions DiscussionService
	snapshots   SnapshotStore

	projectKey string
	jiraURL    string
	threshold  float64
	autoLabel  string
}

// New creates an orchestrator. threshold is the default similarity
// threshold; autoLabel enables PR-opened auto-processing when non-empty.
func New(issues IssueService, discussions DiscussionService, snapshots SnapshotStore,
	projectKey, jiraURL string, threshold float64, autoLabel string) *Orchestrator {
	return &Orchestrator{
		issues:      issues,
		discussions: discussions,
		snapshots:   snapshots,
		projectKey:  projectKey,
		jiraURL:     strings.TrimRight(jiraURL, "/"),
		threshold:   threshold,
		autoLabel:   autoLabel,
	}
}

// ProcessComment runs the pipeline for one comment on a pull request using
// the configured similarity threshold.
func (o *Orchestrator) ProcessComment(ctx context.Context, prNumber int, comment string) (models.ProcessingResult, error) {
	return o.ProcessCommentWithThreshold(ctx, prNumber, comment, o.threshold)
}

// ProcessCommentWithThreshold runs the pipeline with an explicit threshold.
//
// Two near-simultaneous comments on the same PR can both pass the
// idempotency scan before either has posted its reply; the guard narrows
// that window, it does not close it.
func (o *Orchestrator) ProcessCommentWithThreshold(ctx context.Context, prNumber int, comment string, threshold float64) (models.ProcessingResult, error) {
	pass := uuid.NewString()
	logging.Info("processing pull request comment", "pass", pass, "pr", prNumber)

	parsed := intent.Parse(comment)
	if !parsed.TriggerDetected {
		logging.Debug("no creation intent detected", "pass", pass, "pr", prNumber)
		return models.ProcessingResult{
			Action: models.ActionSkipped,
			Reason: "comment does not request issue creation",
		}, nil
	}
	parsed.SourcePullRequest = prNumber

	pr, err := o.discussions.GetPullRequest(ctx, prNumber)
	if err != nil {
		return fail(pass, "fetching pull request", err)
	}

	// Idempotency guard: a reply we authored earlier, referencing an issue
	// key, means this PR was already linked by a prior delivery.
	comments, err := o.discussions.ListComments(ctx, prNumber)
	if err != nil {
		return fail(pass, "scanning for prior replies", err)
	}
	if key, found := findLinkReply(comments); found {
		logging.Info("pull request already linked, skipping", "pass", pass, "pr", prNumber, "issue", key)
		return models.ProcessingResult{
			Action: models.ActionAlreadyProcessed,
			Reason: fmt.Sprintf("pull request already has a linking reply referencing %s", key),
		}, nil
	}

	summary := parsed.Summary
	if summary == "" {
		// The comment carried nothing usable as a title
		summary = "[GitHub PR] " + pr.Title
	}

	snapshot, err := o.currentSnapshot(ctx, pass)
	if err != nil {
		return fail(pass, "loading issue snapshot", err)
	}

	match := similarity.Match(summary, snapshot, threshold)
	logging.Info("similarity search complete",
		"pass", pass,
		"pr", prNumber,
		"decision", string(match.Decision),
		"score", match.Score,
		"threshold", threshold)

	if match.Decision == models.DecisionMatched {
		return o.linkExisting(ctx, pass, prNumber, match)
	}
	return o.createAndReply(ctx, pass, prNumber, pr, parsed, summary)
}

// ProcessPullRequestOpened applies the auto-process rule to a freshly
// opened pull request: when it carries the configured label, the PR's own
// title and body stand in for a triggering comment.
func (o *Orchestrator) ProcessPullRequestOpened(ctx context.Context, pr models.PullRequest) (models.ProcessingResult, error) {
	if o.autoLabel == "" || !hasLabel(pr.Labels, o.autoLabel) {
		return models.ProcessingResult{
			Action: models.ActionSkipped,
			Reason: "pull request does not carry the auto-process label",
		}, nil
	}

	synthetic := fmt.Sprintf("Auto-triggered: create jira issue for this pull request\n\nType: Task\nSummary: %s", pr.Title)
	logging.Info("auto-processing opened pull request", "pr", pr.Number, "label", o.autoLabel)
	return o.ProcessComment(ctx, pr.Number, synthetic)
}

// currentSnapshot refreshes the snapshot when stale, degrading to the
// previous one when the refresh fails and one exists.
func (o *Orchestrator) currentSnapshot(ctx context.Context, pass string) (*models.Snapshot, error) {
	if o.snapshots.Stale() {
		if _, err := o.snapshots.Refresh(ctx); err != nil {
			logging.Warn("snapshot refresh failed, trying previous snapshot", "pass", pass, "error", err)
		}
	}

	snapshot, err := o.snapshots.Current()
	if err != nil {
		return nil, fmt.Errorf("no issue snapshot available: %w", err)
	}
	return snapshot, nil
}

func (o *Orchestrator) linkExisting(ctx context.Context, pass string, prNumber int, match models.MatchResult) (models.ProcessingResult, error) {
	issue := match.BestCandidate
	body := fmt.Sprintf("%s\n🔍 **Found similar existing Jira issue:**\n\n[%s](%s) - %s\n\n**Similarity score:** %.1f%%\n\nPlease check whether the existing issue covers this request before creating a new one.",
		linkMarker, issue.Key, o.browseURL(issue.Key), issue.Summary, match.Score*100)

	if _, err := o.discussions.PostComment(ctx, prNumber, body); err != nil {
		return fail(pass, "posting link reply", err)
	}

	logging.Info("linked existing issue", "pass", pass, "pr", prNumber, "issue", issue.Key, "score", match.Score)
	return models.ProcessingResult{
		Action:     models.ActionLinkedExisting,
		Issue:      issue,
		Similarity: match.Score,
	}, nil
}

func (o *Orchestrator) createAndReply(ctx context.Context, pass string, prNumber int, pr models.PullRequest, parsed models.CommentIntent, summary string) (models.ProcessingResult, error) {
	description := fmt.Sprintf("%s\n\n----\nCreated by jiralink from pull request #%d: %s",
		parsed.Description, prNumber, pr.HTMLURL)

	request := models.CreateIssueRequest{
		Summary:     summary,
		Description: description,
		IssueType:   parsed.IssueType,
		ProjectKey:  o.projectKey,
		Labels:      parsed.Labels,
	}

	created, err := o.issues.CreateIssue(ctx, request)
	if err != nil {
		// A rejection is actionable by the requester, so report it where
		// the request was made instead of only in the server log.
		if re, ok := faults.AsRemote(err); ok && re.Rejected() {
			failure := fmt.Sprintf("%s\n❌ **Failed to create Jira issue:**\n\n%s\n\nPlease check the request fields and try again.", linkMarker, re.Error())
			if _, postErr := o.discussions.PostComment(ctx, prNumber, failure); postErr != nil {
				logging.Error("failed to post failure reply", "pass", pass, "pr", prNumber, "error", postErr)
			}
		}
		return fail(pass, "creating issue", err)
	}

	labels := "None"
	if len(created.Labels) > 0 {
		labels = strings.Join(created.Labels, ", ")
	}
	body := fmt.Sprintf("%s\n✅ **Created Jira issue:**\n\n[%s](%s) - %s\n\n**Type:** %s\n**Labels:** %s",
		linkMarker, created.Key, o.browseURL(created.Key), created.Summary, created.Type, labels)

	if _, err := o.discussions.PostComment(ctx, prNumber, body); err != nil {
		return fail(pass, "posting created reply", err)
	}

	logging.Info("created and linked new issue", "pass", pass, "pr", prNumber, "issue", created.Key)
	return models.ProcessingResult{
		Action: models.ActionCreated,
		Issue:  &created,
	}, nil
}

func (o *Orchestrator) browseURL(key string) string {
	return fmt.Sprintf("%s/browse/%s", o.jiraURL, key)
}

// findLinkReply scans a PR conversation for a reply this system posted that
// references an issue key.
func findLinkReply(comments []models.Comment) (string, bool) {
	for _, comment := range comments {
		if !strings.Contains(comment.Body, linkMarker) {
			continue
		}
		if key := issueKeyPattern.FindString(comment.Body); key != "" {
			return key, true
		}
	}
	return "", false
}

func hasLabel(labels []string, want string) bool {
	for _, label := range labels {
		if label == want {
			return true
		}
	}
	return false
}

func fail(pass, stage string, err error) (models.ProcessingResult, error) {
	logging.Error("orchestration pass failed", "pass", pass, "stage", stage, "error", err)
	return models.ProcessingResult{}, fmt.Errorf("%s: %w", stage, err)
}
