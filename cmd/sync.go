package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jiralink/jiralink/internal/cache"
	"github.com/jiralink/jiralink/internal/config"
	"github.com/jiralink/jiralink/internal/jira"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the Jira issue snapshot once and exit",
	Long: `Performs a single snapshot fetch against the configured Jira project and
reports how many issues were retrieved. Useful for verifying credentials
and project configuration before running the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		jiraClient, err := jira.NewClient(cfg.Jira)
		if err != nil {
			return fmt.Errorf("initializing jira client: %w", err)
		}

		issueCache := cache.New(jiraClient, cfg.Jira.ProjectKey, cfg.Server.SyncInterval)
		snapshot, err := issueCache.Refresh(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetching snapshot: %w", err)
		}

		fmt.Printf("Fetched %d issues from project '%s'\n", len(snapshot.Issues), snapshot.SourceProjectKey)
		return nil
	},
}
