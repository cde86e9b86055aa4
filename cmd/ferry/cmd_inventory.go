package main

import (
	"context"

	"github.com/spf13/cobra"
)

// inventoryCmd represents the inventory command
var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Print zone, instance, bucket and object counts",
	Long: `Print an inventory of the region: availability zones, live and terminated
instances, buckets, and the number and total size of stored objects across
every bucket. Sections that cannot be listed are shown as n/a.`,
	Args: cobra.NoArgs,
	RunE: runInventory,
}

func init() {
	rootCmd.AddCommand(inventoryCmd)
}

func runInventory(cmd *cobra.Command, args []string) error {
	cfg, err := opts.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	return withSession(cmd, cfg, func(s *session) error {
		return runGroup(cmd.Context(), func(ctx context.Context) error {
			return s.runner.Inventory(ctx).Err()
		})
	})
}
