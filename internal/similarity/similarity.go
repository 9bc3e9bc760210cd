// Package similarity implements the deterministic string-similarity measure
// used for duplicate detection, and the best-match scan over an issue
// snapshot.
//
// The measure is a token-sort ratio: both inputs are lowercased, stripped of
// punctuation, tokenized, sorted, rejoined, and compared by normalized
// Levenshtein distance. The normalization is fixed here on purpose so scores
// are stable across runs and reproducible from the two input strings alone.
package similarity

import (
	"sort"
	"strings"
	"unicode"

	"github.com/jiralink/jiralink/pkg/models"
)

// DefaultThreshold is the matching threshold used when a caller does not
// supply one.
const DefaultThreshold = 0.7

// Score returns the normalized similarity of a and b in [0,1]. It is a pure
// function: identical inputs always produce the identical score. Token order
// is irrelevant, so "flaky fix test" scores 1.0 against "fix flaky test".
func Score(a, b string) float64 {
	na := normalize(a)
	nb := normalize(b)

	if na == nb {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0.0
	}

	dist := levenshtein(na, nb)
	longest := len(na)
	if len(nb) > longest {
		longest = len(nb)
	}
	return 1.0 - float64(dist)/float64(longest)
}

// Match scores candidateSummary against every issue in the snapshot and
// decides whether the best match clears the threshold. An empty snapshot
// yields DecisionCacheEmpty regardless of threshold, since an absent corpus
// carries no evidence either way. Ties on score prefer the most recently
// updated issue.
func Match(candidateSummary string, snapshot *models.Snapshot, threshold float64) models.MatchResult {
	result := models.MatchResult{ThresholdUsed: threshold, Decision: models.DecisionCacheEmpty}
	if snapshot == nil || len(snapshot.Issues) == 0 {
		return result
	}

	var best *models.TrackedIssue
	bestScore := -1.0

	for i := range snapshot.Issues {
		issue := &snapshot.Issues[i]
		score := Score(candidateSummary, issue.Summary)
		if issue.Description != "" {
			if descScore := Score(candidateSummary, issue.Description); descScore > score {
				score = descScore
			}
		}

		if score > bestScore || (score == bestScore && best != nil && issue.Updated.After(best.Updated)) {
			best = issue
			bestScore = score
		}
	}

	result.BestCandidate = best
	result.Score = bestScore
	if bestScore >= threshold {
		result.Decision = models.DecisionMatched
	} else {
		result.Decision = models.DecisionNoMatch
	}
	return result
}

// normalize lowercases, strips punctuation, and sorts the remaining tokens.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// levenshtein computes the edit distance between a and b using two rows.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
