package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jiralink/jiralink/internal/faults"
	"github.com/jiralink/jiralink/pkg/models"
)

type fakeIssues struct {
	created []models.CreateIssueRequest
	err     error
}

func (f *fakeIssues) CreateIssue(_ context.Context, request models.CreateIssueRequest) (models.TrackedIssue, error) {
	if f.err != nil {
		return models.TrackedIssue{}, f.err
	}
	f.created = append(f.created, request)
	return models.TrackedIssue{
		ID:      "10001",
		Key:     "PROJ-77",
		Summary: request.Summary,
		Type:    request.IssueType,
		Labels:  request.Labels,
	}, nil
}

type fakeDiscussions struct {
	pr       models.PullRequest
	comments []models.Comment
	posted   []string
	listErr  error
	postErr  error
}

func (f *fakeDiscussions) GetPullRequest(_ context.Context, _ int) (models.PullRequest, error) {
	return f.pr, nil
}

func (f *fakeDiscussions) ListComments(_ context.Context, _ int) ([]models.Comment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.comments, nil
}

func (f *fakeDiscussions) PostComment(_ context.Context, _ int, body string) (models.Comment, error) {
	if f.postErr != nil {
		return models.Comment{}, f.postErr
	}
	f.posted = append(f.posted, body)
	return models.Comment{ID: int64(len(f.posted)), Body: body}, nil
}

type fakeSnapshots struct {
	snapshot   *models.Snapshot
	stale      bool
	refreshErr error
	refreshes  int
}

func (f *fakeSnapshots) Current() (*models.Snapshot, error) {
	if f.snapshot == nil {
		return nil, faults.ErrCacheNotInitialized
	}
	return f.snapshot, nil
}

func (f *fakeSnapshots) Refresh(_ context.Context) (*models.Snapshot, error) {
	f.refreshes++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.snapshot, nil
}

func (f *fakeSnapshots) Stale() bool { return f.stale }

func emptySnapshot() *models.Snapshot {
	return &models.Snapshot{FetchedAt: time.Now(), SourceProjectKey: "PROJ"}
}

func newTestOrchestrator(issues *fakeIssues, discussions *fakeDiscussions, snapshots *fakeSnapshots) *Orchestrator {
	return New(issues, discussions, snapshots, "PROJ", "https://jira.example.com", 0.7, "needs-jira")
}

func TestProcessCommentNoTrigger(t *testing.T) {
	issues := &fakeIssues{}
	discussions := &fakeDiscussions{pr: models.PullRequest{Number: 42, Title: "Fix login"}}
	o := newTestOrchestrator(issues, discussions, &fakeSnapshots{snapshot: emptySnapshot()})

	result, err := o.ProcessComment(context.Background(), 42, "looks good to me")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != models.ActionSkipped {
		t.Errorf("expected skipped, got %q", result.Action)
	}
	if len(issues.created) != 0 {
		t.Errorf("expected no issue creation, got %d", len(issues.created))
	}
	if len(discussions.posted) != 0 {
		t.Errorf("expected no replies, got %d", len(discussions.posted))
	}
}

func TestProcessCommentCreatesIssue(t *testing.T) {
	issues := &fakeIssues{}
	discussions := &fakeDiscussions{pr: models.PullRequest{
		Number:  42,
		Title:   "Fix login retry loop",
		HTMLURL: "https://github.com/acme/app/pull/42",
	}}
	o := newTestOrchestrator(issues, discussions, &fakeSnapshots{snapshot: emptySnapshot()})

	result, err := o.ProcessComment(context.Background(), 42,
		"create jira issue\nSummary: Login retries forever\nType: Bug\nLabels: auth, backend")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != models.ActionCreated {
		t.Fatalf("expected created, got %q", result.Action)
	}
	if result.Issue == nil || result.Issue.Key != "PROJ-77" {
		t.Fatalf("expected created issue PROJ-77, got %+v", result.Issue)
	}
	if len(issues.created) != 1 {
		t.Fatalf("expected exactly one creation, got %d", len(issues.created))
	}

	request := issues.created[0]
	if request.Summary != "Login retries forever" {
		t.Errorf("unexpected summary %q", request.Summary)
	}
	if request.IssueType != "Bug" {
		t.Errorf("unexpected type %q", request.IssueType)
	}
	if request.ProjectKey != "PROJ" {
		t.Errorf("unexpected project %q", request.ProjectKey)
	}
	if !strings.Contains(request.Description, "pull request #42") {
		t.Errorf("description should reference the source PR, got %q", request.Description)
	}

	if len(discussions.posted) != 1 {
		t.Fatalf("expected one reply, got %d", len(discussions.posted))
	}
	reply := discussions.posted[0]
	if !strings.Contains(reply, linkMarker) {
		t.Error("reply should carry the link marker")
	}
	if !strings.Contains(reply, "PROJ-77") {
		t.Error("reply should name the created issue")
	}
	if !strings.Contains(reply, "https://jira.example.com/browse/PROJ-77") {
		t.Error("reply should link to the issue")
	}
}

func TestProcessCommentLinksExistingIssue(t *testing.T) {
	issues := &fakeIssues{}
	discussions := &fakeDiscussions{pr: models.PullRequest{Number: 7, Title: "CI work"}}
	snapshots := &fakeSnapshots{snapshot: &models.Snapshot{
		Issues: []models.TrackedIssue{
			{Key: "PROJ-12", Summary: "Fix flaky test in CI", Updated: time.Now()},
		},
		FetchedAt:        time.Now(),
		SourceProjectKey: "PROJ",
	}}
	o := newTestOrchestrator(issues, discussions, snapshots)

	result, err := o.ProcessComment(context.Background(), 7,
		"create jira issue\nSummary: Fix flaky test in CI")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != models.ActionLinkedExisting {
		t.Fatalf("expected linked_existing, got %q", result.Action)
	}
	if result.Issue.Key != "PROJ-12" {
		t.Errorf("expected PROJ-12, got %q", result.Issue.Key)
	}
	if result.Similarity < 0.99 {
		t.Errorf("expected near-perfect score, got %f", result.Similarity)
	}
	if len(issues.created) != 0 {
		t.Errorf("expected no creation when linking, got %d", len(issues.created))
	}
	if len(discussions.posted) != 1 || !strings.Contains(discussions.posted[0], "PROJ-12") {
		t.Errorf("expected link reply naming PROJ-12, got %v", discussions.posted)
	}
}

func TestProcessCommentIdempotentAcrossRedelivery(t *testing.T) {
	issues := &fakeIssues{}
	discussions := &fakeDiscussions{pr: models.PullRequest{
		Number:  42,
		Title:   "Fix login",
		HTMLURL: "https://github.com/acme/app/pull/42",
	}}
	o := newTestOrchestrator(issues, discussions, &fakeSnapshots{snapshot: emptySnapshot()})

	body := "create jira issue\nSummary: Login retries forever"
	first, err := o.ProcessComment(context.Background(), 42, body)
	if err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if first.Action != models.ActionCreated {
		t.Fatalf("expected created on first delivery, got %q", first.Action)
	}

	// Redelivery sees the reply posted by the first pass.
	discussions.comments = append(discussions.comments, models.Comment{ID: 1, Body: discussions.posted[0]})

	second, err := o.ProcessComment(context.Background(), 42, body)
	if err != nil {
		t.Fatalf("second delivery failed: %v", err)
	}
	if second.Action != models.ActionAlreadyProcessed {
		t.Fatalf("expected already_processed on redelivery, got %q", second.Action)
	}
	if len(issues.created) != 1 {
		t.Errorf("expected exactly one creation across deliveries, got %d", len(issues.created))
	}
}

func TestProcessCommentRejectionPostsFailureReply(t *testing.T) {
	createErr := faults.Remote("jira", 400, "issue type Story is not valid for project PROJ", nil)
	issues := &fakeIssues{err: createErr}
	discussions := &fakeDiscussions{pr: models.PullRequest{Number: 9, Title: "Refactor"}}
	o := newTestOrchestrator(issues, discussions, &fakeSnapshots{snapshot: emptySnapshot()})

	_, err := o.ProcessComment(context.Background(), 9, "create jira issue\nSummary: Something\nType: Story")
	if err == nil {
		t.Fatal("expected error from rejected creation")
	}
	if len(discussions.posted) != 1 {
		t.Fatalf("expected a failure reply, got %d replies", len(discussions.posted))
	}
	reply := discussions.posted[0]
	if !strings.Contains(reply, "Failed to create") {
		t.Errorf("failure reply should say creation failed, got %q", reply)
	}
	// A failure reply must not trip the idempotency guard on redelivery.
	if key, found := findLinkReply([]models.Comment{{Body: reply}}); found {
		t.Errorf("failure reply should not count as a link reply, matched key %q", key)
	}
}

func TestProcessCommentUnavailableCreateNoReply(t *testing.T) {
	issues := &fakeIssues{err: faults.Remote("jira", 503, "service unavailable", nil)}
	discussions := &fakeDiscussions{pr: models.PullRequest{Number: 9, Title: "Refactor"}}
	o := newTestOrchestrator(issues, discussions, &fakeSnapshots{snapshot: emptySnapshot()})

	_, err := o.ProcessComment(context.Background(), 9, "create jira issue\nSummary: Something")
	if err == nil {
		t.Fatal("expected error from unavailable remote")
	}
	if len(discussions.posted) != 0 {
		t.Errorf("expected no reply for transient failure, got %d", len(discussions.posted))
	}
}

func TestProcessCommentStaleRefreshFailureUsesPrevious(t *testing.T) {
	issues := &fakeIssues{}
	discussions := &fakeDiscussions{pr: models.PullRequest{Number: 3, Title: "Docs"}}
	snapshots := &fakeSnapshots{
		snapshot:   emptySnapshot(),
		stale:      true,
		refreshErr: errors.New("jira down"),
	}
	o := newTestOrchestrator(issues, discussions, snapshots)

	result, err := o.ProcessComment(context.Background(), 3, "create jira issue\nSummary: Update docs")
	if err != nil {
		t.Fatalf("expected pass to proceed on stale snapshot, got %v", err)
	}
	if result.Action != models.ActionCreated {
		t.Errorf("expected created, got %q", result.Action)
	}
	if snapshots.refreshes != 1 {
		t.Errorf("expected one refresh attempt, got %d", snapshots.refreshes)
	}
}

func TestProcessCommentNoSnapshotAtAllFails(t *testing.T) {
	issues := &fakeIssues{}
	discussions := &fakeDiscussions{pr: models.PullRequest{Number: 3, Title: "Docs"}}
	snapshots := &fakeSnapshots{stale: true, refreshErr: errors.New("jira down")}
	o := newTestOrchestrator(issues, discussions, snapshots)

	_, err := o.ProcessComment(context.Background(), 3, "create jira issue\nSummary: Update docs")
	if err == nil {
		t.Fatal("expected error when no snapshot has ever been fetched")
	}
	if len(issues.created) != 0 {
		t.Errorf("expected no creation without a snapshot, got %d", len(issues.created))
	}
}

func TestProcessCommentEmptySummaryFallsBackToTitle(t *testing.T) {
	issues := &fakeIssues{}
	discussions := &fakeDiscussions{pr: models.PullRequest{Number: 5, Title: "Bump dependencies"}}
	o := newTestOrchestrator(issues, discussions, &fakeSnapshots{snapshot: emptySnapshot()})

	result, err := o.ProcessComment(context.Background(), 5, "create jira")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != models.ActionCreated {
		t.Fatalf("expected created, got %q", result.Action)
	}
	if issues.created[0].Summary != "[GitHub PR] Bump dependencies" {
		t.Errorf("expected PR-title fallback summary, got %q", issues.created[0].Summary)
	}
}

func TestProcessPullRequestOpened(t *testing.T) {
	tests := []struct {
		name       string
		labels     []string
		wantAction models.LinkAction
		wantCreate int
	}{
		{
			name:       "label present",
			labels:     []string{"enhancement", "needs-jira"},
			wantAction: models.ActionCreated,
			wantCreate: 1,
		},
		{
			name:       "label absent",
			labels:     []string{"enhancement"},
			wantAction: models.ActionSkipped,
			wantCreate: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := models.PullRequest{
				Number:  11,
				Title:   "Add request tracing",
				Labels:  tt.labels,
				HTMLURL: "https://github.com/acme/app/pull/11",
			}
			issues := &fakeIssues{}
			discussions := &fakeDiscussions{pr: pr}
			o := newTestOrchestrator(issues, discussions, &fakeSnapshots{snapshot: emptySnapshot()})

			result, err := o.ProcessPullRequestOpened(context.Background(), pr)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Action != tt.wantAction {
				t.Errorf("expected action %q, got %q", tt.wantAction, result.Action)
			}
			if len(issues.created) != tt.wantCreate {
				t.Errorf("expected %d creations, got %d", tt.wantCreate, len(issues.created))
			}
			if tt.wantCreate == 1 {
				created := issues.created[0]
				if created.Summary != "Add request tracing" {
					t.Errorf("expected PR title as summary, got %q", created.Summary)
				}
				if created.IssueType != "Task" {
					t.Errorf("expected Task type for auto-processed PR, got %q", created.IssueType)
				}
			}
		})
	}
}

func TestProcessCommentCustomThreshold(t *testing.T) {
	issues := &fakeIssues{}
	discussions := &fakeDiscussions{pr: models.PullRequest{Number: 8, Title: "CI"}}
	snapshots := &fakeSnapshots{snapshot: &models.Snapshot{
		Issues: []models.TrackedIssue{
			{Key: "PROJ-12", Summary: "Fix flaky test in CI", Updated: time.Now()},
		},
		FetchedAt:        time.Now(),
		SourceProjectKey: "PROJ",
	}}
	o := newTestOrchestrator(issues, discussions, snapshots)

	// Scores around 0.70 link at a 0.6 threshold but not at 0.95.
	comment := "create jira issue\nSummary: Fix flaky test"

	linked, err := o.ProcessCommentWithThreshold(context.Background(), 8, comment, 0.6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if linked.Action != models.ActionLinkedExisting {
		t.Errorf("expected link at low threshold, got %q", linked.Action)
	}

	discussions.posted = nil
	created, err := o.ProcessCommentWithThreshold(context.Background(), 8, comment, 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Action != models.ActionCreated {
		t.Errorf("expected creation at high threshold, got %q", created.Action)
	}
}
