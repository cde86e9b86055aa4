package main

import (
	"context"

	"github.com/spf13/cobra"
)

// managerCmd represents the manager command
var managerCmd = &cobra.Command{
	Use:   "manager",
	Short: "Make sure the manager instance is running",
	Long: `Find the EC2 instance carrying the manager tag (Name=manager by default)
and start it if it is not running. Terminated instances are ignored. When
several instances carry the tag, a running one wins; otherwise the lowest
instance ID is started.`,
	Example: `  ferry manager             # Start the manager if needed
  ferry manager --dry-run   # Only report what would happen`,
	Args: cobra.NoArgs,
	RunE: runManager,
}

func init() {
	rootCmd.AddCommand(managerCmd)
}

func runManager(cmd *cobra.Command, args []string) error {
	cfg, err := opts.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	return withSession(cmd, cfg, func(s *session) error {
		return runGroup(cmd.Context(), func(ctx context.Context) error {
			return s.runner.Manager(ctx).Err()
		})
	})
}
