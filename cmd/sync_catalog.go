package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCatalogCmd = &cobra.Command{
	Use:   "sync-catalog",
	Short: "Merge the shared catalog source into the local catalog",
	RunE:  runSyncCatalog,
}

func init() {
	rootCmd.AddCommand(syncCatalogCmd)
}

func runSyncCatalog(cmd *cobra.Command, args []string) error {
	c, cfg, err := newCoordinator()
	if err != nil {
		return err
	}

	delta, err := c.SyncCatalog(cmd.Context())
	if err != nil {
		return err
	}
	if delta.Empty() {
		fmt.Println("Catalog already in sync.")
		return nil
	}

	for _, ch := range delta.Added {
		fmt.Printf("+ [%s] %s = %s\n", ch.Section, ch.Key, ch.Shared)
	}
	for _, ch := range delta.Changed {
		fmt.Printf("~ [%s] %s: %s -> %s\n", ch.Section, ch.Key, ch.Local, ch.Shared)
	}
	for _, ch := range delta.Kept {
		// Shared is empty for keys only the local catalog declares.
		if ch.Shared != "" && ch.Local != ch.Shared {
			fmt.Printf("= [%s] %s kept at %s (shared has %s)\n", ch.Section, ch.Key, ch.Local, ch.Shared)
		}
	}
	fmt.Printf("Merged %s into %s\n", cfg.SharedCatalog.Source, cfg.CatalogPath)
	return nil
}
