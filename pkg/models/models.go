// Package models defines data structures shared across the application.
package models

import (
	"time"
)

// TrackedIssue represents a Jira issue held in the local snapshot.
type TrackedIssue struct {
	// ID is the numeric Jira issue id
	ID string `json:"id"`

	// Key is the project-scoped issue identifier (e.g., "ABC-123")
	Key string `json:"key"`

	// Summary is the issue's short title text
	Summary string `json:"summary"`

	// Description is the full body text of the issue, if any
	Description string `json:"description,omitempty"`

	// Type is the Jira issue type (e.g., "Bug", "Task", "Story", "Epic")
	Type string `json:"type"`

	// Status is the remote system's status label (e.g., "In Progress")
	Status string `json:"status"`

	// Assignee is the display name of the assigned user, empty if unassigned
	Assignee string `json:"assignee,omitempty"`

	// AssigneeEmail is the assignee's email address, if exposed by the remote
	AssigneeEmail string `json:"assignee_email,omitempty"`

	// Labels is the set of label strings attached to the issue
	Labels []string `json:"labels,omitempty"`

	// Created is when the issue was created in Jira
	Created time.Time `json:"created"`

	// Updated is when the issue was last updated in Jira
	Updated time.Time `json:"updated"`
}

// Snapshot is an immutable point-in-time copy of all tracked issues for one
// project. A refresh replaces the whole snapshot; it is never mutated in
// place once installed.
type Snapshot struct {
	// Issues is the fetch-ordered issue list
	Issues []TrackedIssue `json:"issues"`

	// FetchedAt is when this snapshot was pulled from Jira
	FetchedAt time.Time `json:"fetched_at"`

	// SourceProjectKey is the project the snapshot was fetched for
	SourceProjectKey string `json:"source_project_key"`
}

// CommentIntent is the structured result of interpreting a free-text comment
// as a request to create a tracked issue.
type CommentIntent struct {
	// TriggerDetected reports whether the comment contained a trigger phrase
	TriggerDetected bool

	// Summary is the explicit or derived issue summary
	Summary string

	// Description is the explicit or derived issue description
	Description string

	// IssueType is the requested Jira issue type, defaulting to "Bug"
	IssueType string

	// Labels are the requested labels, empty when none were given
	Labels []string

	// SourcePullRequest is the PR number the comment belongs to
	SourcePullRequest int

	// SourceCommentID identifies the originating comment, zero for synthetic
	// intents (manual triggers, PR-opened auto-processing)
	SourceCommentID int64

	// RawText is the unmodified comment text
	RawText string
}

// MatchDecision classifies the outcome of a similarity search.
type MatchDecision string

const (
	// DecisionMatched means the best candidate cleared the threshold.
	DecisionMatched MatchDecision = "matched"

	// DecisionNoMatch means no cached issue cleared the threshold.
	DecisionNoMatch MatchDecision = "no_match"

	// DecisionCacheEmpty means the snapshot held zero issues, so the
	// result carries no signal either way.
	DecisionCacheEmpty MatchDecision = "cache_empty"
)

// MatchResult is the outcome of scoring one candidate summary against a
// snapshot.
type MatchResult struct {
	// BestCandidate is the highest-scoring issue, nil when the cache was empty
	BestCandidate *TrackedIssue

	// Score is the best candidate's normalized similarity in [0,1]
	Score float64

	// ThresholdUsed echoes the threshold the decision was made against
	ThresholdUsed float64

	// Decision is the match classification
	Decision MatchDecision
}

// LinkAction records how a pull request got associated with a tracked issue.
type LinkAction string

const (
	// ActionCreated means a new Jira issue was created for the PR.
	ActionCreated LinkAction = "created"

	// ActionLinkedExisting means an existing similar issue was referenced.
	ActionLinkedExisting LinkAction = "linked_existing"

	// ActionSkipped means the comment carried no creation intent.
	ActionSkipped LinkAction = "skipped"

	// ActionAlreadyProcessed means a prior pass already linked this PR.
	ActionAlreadyProcessed LinkAction = "already_processed"
)

// ProcessingResult is the outcome of one orchestration pass over a PR comment.
type ProcessingResult struct {
	// Action is what the pass did
	Action LinkAction

	// Issue is the created or matched issue, nil for skipped passes
	Issue *TrackedIssue

	// Similarity is the match score when Action is linked_existing
	Similarity float64

	// Reason explains skipped and already_processed outcomes
	Reason string
}

// PullRequest represents a GitHub pull request with the fields we consume.
type PullRequest struct {
	// Number is the PR number in GitHub (e.g., 42)
	Number int `json:"number"`

	// Title is the PR title
	Title string `json:"title"`

	// Body is the PR description, empty if none
	Body string `json:"body,omitempty"`

	// Author is the login of the user who opened the PR
	Author string `json:"author"`

	// State is "open" or "closed"
	State string `json:"state"`

	// Labels is a slice of label names attached to the PR
	Labels []string `json:"labels,omitempty"`

	// CreatedAt is when the PR was opened
	CreatedAt time.Time `json:"created_at"`

	// HTMLURL is the web URL of the PR
	HTMLURL string `json:"html_url"`
}

// Comment represents a comment in a pull request conversation.
type Comment struct {
	// ID is the comment's GitHub identifier
	ID int64 `json:"id"`

	// Body is the comment text
	Body string `json:"body"`

	// Author is the login of the commenting user
	Author string `json:"author"`

	// CreatedAt is when the comment was posted
	CreatedAt time.Time `json:"created_at"`

	// PullRequestNumber is the PR the comment belongs to
	PullRequestNumber int `json:"pull_request_number"`
}

// Board represents a Jira board associated with the configured project.
type Board struct {
	// ID is the board's numeric identifier
	ID int `json:"id"`

	// Name is the board's display name
	Name string `json:"name"`

	// Type is the board type (e.g., "scrum", "kanban")
	Type string `json:"type"`

	// ProjectKey is the owning project, empty when Jira omits location info
	ProjectKey string `json:"project_key,omitempty"`
}

// CreateIssueRequest carries the fields for creating a new Jira issue.
type CreateIssueRequest struct {
	// Summary is the issue title (required)
	Summary string

	// Description is the issue body text
	Description string

	// IssueType is the Jira type name (required, e.g., "Bug")
	IssueType string

	// ProjectKey is the project to create the issue in (required)
	ProjectKey string

	// Labels are attached verbatim
	Labels []string

	// Assignee is an optional username to assign
	Assignee string

	// Priority is an optional priority name (e.g., "High")
	Priority string
}
