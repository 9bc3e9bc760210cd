// Package cmd provides the command-line interface for jiralink.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "jiralink",
	Short: "jiralink connects GitHub pull request discussions to Jira",
	Long: `jiralink watches GitHub pull request comments for issue-creation requests,
checks a cached snapshot of Jira issues for existing duplicates, and either
links the similar issue or creates a new one, replying on the pull request
with the outcome.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(syncCmd)
}
