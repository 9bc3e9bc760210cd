package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jiralink/jiralink/internal/cache"
	"github.com/jiralink/jiralink/internal/config"
	"github.com/jiralink/jiralink/internal/github"
	"github.com/jiralink/jiralink/internal/jira"
	"github.com/jiralink/jiralink/internal/logging"
	"github.com/jiralink/jiralink/internal/orchestrator"
	"github.com/jiralink/jiralink/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the GitHub webhook server",
	Long: `Starts the HTTP server that receives GitHub webhook deliveries, keeps the
Jira issue snapshot fresh in the background, and runs the linking pipeline
for pull request comments that request issue creation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if err := config.ValidateWebhookConfig(cfg); err != nil {
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
		server := webhook.NewServer(processor, cfg.GitHub.WebhookSecret, cfg.Server.Port)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Warm the snapshot so the first webhook does not pay for a full
		// fetch; a failure here is retried by the background loop.
		warmCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		if _, err := issueCache.Refresh(warmCtx); err != nil {
			logging.Warn("initial snapshot fetch failed, continuing", "error", err)
		}
		cancel()

		go issueCache.Run(ctx)

		logging.Info("starting jiralink server",
			"version", Version,
			"port", cfg.Server.Port,
			"project", cfg.Jira.ProjectKey,
			"sync_interval", cfg.Server.SyncInterval,
			"match_threshold", cfg.Server.MatchThreshold)

		return server.Run(ctx)
	},
}
