package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jiralink/jiralink/internal/cache"
	"github.com/jiralink/jiralink/internal/config"
	"github.com/jiralink/jiralink/internal/github"
	"github.com/jiralink/jiralink/internal/jira"
	"github.com/jiralink/jiralink/internal/mcptools"
	"github.com/jiralink/jiralink/internal/orchestrator"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP tool server over stdio",
	Long: `Exposes the linking system as MCP tools over stdio so an MCP client can
sync the issue snapshot, search for similar issues, and run the full
linking pipeline on demand.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		jiraClient, err := jira.NewClient(cfg.Jira)
		if err != nil {
			return fmt.Errorf("initializing jira client: %w", err)
		}
		githubClient, err := github.NewClient(cfg.GitHub)
		if err != nil {
			return fmt.Errorf("initializing github client: %w", err)
		}

		issueCache := cache.New(jiraClient, cfg.Jira.ProjectKey, cfg.Server.SyncInterval)
		processor := orchestrator.New(jiraClient, githubClient, issueCache,
			cfg.Jira.ProjectKey, cfg.Jira.URL, cfg.Server.MatchThreshold, cfg.Server.AutoProcessLabel)

		toolset := mcptools.NewToolset(jiraClient, githubClient, issueCache,
			processor, cfg.Jira.ProjectKey, cfg.Server.MatchThreshold)
		return toolset.Serve(Version)
	},
}
