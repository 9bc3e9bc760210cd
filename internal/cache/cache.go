// Package cache maintains the local snapshot of tracked Jira issues.
//
// The current snapshot is an immutable value behind an atomic pointer:
// refresh builds a complete replacement and swaps it in, readers scan
// whatever was last installed without locking. A refresh that fails leaves
// the previous snapshot in place, so reads serve stale-but-consistent data
// in preference to fresh-but-partial data.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jiralink/jiralink/internal/faults"
	"github.com/jiralink/jiralink/internal/logging"
	"github.com/jiralink/jiralink/pkg/models"
)

// IssueFetcher pulls the full issue list for a project from the remote
// system of record.
type IssueFetcher interface {
	SearchIssues(ctx context.Context, projectKey string) ([]models.TrackedIssue, error)
}

// Cache holds the current issue snapshot for one project.
type Cache struct {
	fetcher    IssueFetcher
	projectKey string
	interval   time.Duration

	current atomic.Pointer[models.Snapshot]
	group   singleflight.Group
}

// New creates a cache for projectKey. interval controls both the periodic
// refresh schedule (see Run) and the staleness cutoff.
func New(fetcher IssueFetcher, projectKey string, interval time.Duration) *Cache {
	return &Cache{
		fetcher:    fetcher,
		projectKey: projectKey,
		interval:   interval,
	}
}

// Refresh fetches all issues for the project and installs a new snapshot.
// Concurrent calls are coalesced: while a fetch is in flight, additional
// callers wait for its result instead of issuing duplicate remote queries.
// On failure the previous snapshot, if any, is retained unchanged.
func (c *Cache) Refresh(ctx context.Context) (*models.Snapshot, error) {
	result, err, shared := c.group.Do("refresh", func() (any, error) {
		issues, err := c.fetcher.SearchIssues(ctx, c.projectKey)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch issues for %s: %w", c.projectKey, err)
		}

		snapshot := &models.Snapshot{
			Issues:           issues,
			FetchedAt:        time.Now(),
			SourceProjectKey: c.projectKey,
		}
		c.current.Store(snapshot)

		logging.Debug("installed issue snapshot",
			"project", c.projectKey,
			"issue_count", len(issues))
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logging.Debug("coalesced concurrent refresh", "project", c.projectKey)
	}
	return result.(*models.Snapshot), nil
}

// Current returns the last fully-installed snapshot. It fails with
// faults.ErrCacheNotInitialized until the first successful refresh.
func (c *Cache) Current() (*models.Snapshot, error) {
	snapshot := c.current.Load()
	if snapshot == nil {
		return nil, faults.ErrCacheNotInitialized
	}
	return snapshot, nil
}

// GetByID looks up an issue by id or key in the current snapshot, without
// a remote call.
func (c *Cache) GetByID(id string) (models.TrackedIssue, error) {
	snapshot, err := c.Current()
	if err != nil {
		return models.TrackedIssue{}, err
	}
	for _, issue := range snapshot.Issues {
		if issue.ID == id || issue.Key == id {
			return issue, nil
		}
	}
	return models.TrackedIssue{}, fmt.Errorf("issue %s: %w", id, faults.ErrNotFound)
}

// Stale reports whether the current snapshot is older than the refresh
// interval, or missing entirely.
func (c *Cache) Stale() bool {
	snapshot := c.current.Load()
	if snapshot == nil {
		return true
	}
	return time.Since(snapshot.FetchedAt) > c.interval
}

// Run refreshes the snapshot on the configured interval until ctx is
// canceled. Refresh failures are logged and the loop keeps going; readers
// continue to see the prior snapshot.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Debug("snapshot refresh loop stopped", "project", c.projectKey)
			return
		case <-ticker.C:
			if _, err := c.Refresh(ctx); err != nil {
				logging.Error("scheduled snapshot refresh failed, serving stale data",
					"project", c.projectKey,
					"error", err)
			}
		}
	}
}
