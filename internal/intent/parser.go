// Package intent turns raw pull-request comment text into a structured
// issue-creation request. Parsing is a pure function of the input text:
// malformed input degrades to field defaults, it never errors.
package intent

import (
	"regexp"
	"strings"

	"github.com/jiralink/jiralink/pkg/models"
)

// MaxSummaryLength bounds derived and explicit summaries.
const MaxSummaryLength = 200

// DefaultIssueType is used when the comment does not name a type.
const DefaultIssueType = "Bug"

// triggerPatterns are the phrases that signal issue-creation intent.
// Matching is case-insensitive and tolerant of repeated whitespace.
// Trigger phrases inside quoted or fenced text are still honored; the
// parser is deliberately not markdown-aware.
var triggerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)create\s+jira`),
	regexp.MustCompile(`(?i)make\s+jira`),
	regexp.MustCompile(`(?i)new\s+jira`),
	regexp.MustCompile(`(?i)jira\s+issue`),
	regexp.MustCompile(`(?i)create\s+issue`),
	regexp.MustCompile(`(?i)create\s+ticket`),
}

// Labeled fields are recognized anywhere in the text and capture to the
// end of their line.
var (
	summaryPattern     = regexp.MustCompile(`(?i)\bsummary:[ \t]*([^\n\r]*)`)
	typePattern        = regexp.MustCompile(`(?i)\btype:[ \t]*(bug|task|story|epic)\b`)
	labelsPattern      = regexp.MustCompile(`(?i)\blabels?:[ \t]*([^\n\r]*)`)
	descriptionPattern = regexp.MustCompile(`(?i)\bdescription:[ \t]*([^\n\r]*)`)

	// fieldLinePattern identifies lines that carry a labeled field, so
	// they are not reused as a derived summary.
	fieldLinePattern = regexp.MustCompile(`(?i)^\s*(summary|type|labels?|description):`)
)

// HasTrigger reports whether text contains any trigger phrase. Multiple
// trigger phrases still count as a single intent.
func HasTrigger(text string) bool {
	for _, pattern := range triggerPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// Parse extracts a CommentIntent from raw comment text. When no trigger
// phrase is present only TriggerDetected and RawText are populated. Every
// unlabeled field falls back to its documented default: summary derives
// from the first usable line (and may be empty when the comment has none),
// description defaults to the full raw text, type to Bug, labels to empty.
func Parse(rawText string) models.CommentIntent {
	result := models.CommentIntent{RawText: rawText}

	if !HasTrigger(rawText) {
		return result
	}
	result.TriggerDetected = true

	result.Summary = extractSummary(rawText)
	result.IssueType = extractType(rawText)
	result.Labels = extractLabels(rawText)
	result.Description = extractDescription(rawText)

	return result
}

func extractSummary(text string) string {
	if m := summaryPattern.FindStringSubmatch(text); m != nil {
		if value := strings.TrimSpace(m[1]); value != "" {
			return truncate(value, MaxSummaryLength)
		}
		// An empty value after the colon is treated as absent
	}
	return deriveSummary(text)
}

// deriveSummary picks the first non-empty line that is neither a trigger
// phrase nor a labeled field line. Returns "" when no line qualifies; the
// caller is expected to substitute outside context (e.g., the PR title).
func deriveSummary(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if fieldLinePattern.MatchString(line) {
			continue
		}
		if HasTrigger(line) {
			continue
		}
		return truncate(line, MaxSummaryLength)
	}
	return ""
}

func extractType(text string) string {
	if m := typePattern.FindStringSubmatch(text); m != nil {
		value := strings.ToLower(m[1])
		return strings.ToUpper(value[:1]) + value[1:]
	}
	return DefaultIssueType
}

func extractLabels(text string) []string {
	m := labelsPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var labels []string
	for _, part := range strings.Split(m[1], ",") {
		if label := strings.TrimSpace(part); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

func extractDescription(text string) string {
	if m := descriptionPattern.FindStringSubmatch(text); m != nil {
		if value := strings.TrimSpace(m[1]); value != "" {
			return value
		}
	}
	// The whole comment is the best description we have
	return text
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
