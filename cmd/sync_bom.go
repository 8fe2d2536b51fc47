package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncBOMCmd = &cobra.Command{
	Use:   "sync-bom",
	Short: "Align catalog versions with the Spring Boot dependency BOM",
	RunE:  runSyncBOM,
}

func init() {
	rootCmd.AddCommand(syncBOMCmd)
}

func runSyncBOM(cmd *cobra.Command, args []string) error {
	c, cfg, err := newCoordinator()
	if err != nil {
		return err
	}

	changes, err := c.SyncBOM(cmd.Context())
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		fmt.Println("Catalog already matches the BOM.")
		return nil
	}

	for _, ch := range changes {
		if ch.From == "" {
			fmt.Printf("+ %s = %s\n", ch.Key, ch.To)
		} else {
			fmt.Printf("~ %s: %s -> %s\n", ch.Key, ch.From, ch.To)
		}
	}
	fmt.Printf("Synced %d entries with Spring Boot %s\n", len(changes), cfg.SpringBoot.Version)
	return nil
}
