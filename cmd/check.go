package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report available updates without touching the catalog",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	c, _, err := newCoordinator()
	if err != nil {
		return err
	}

	report, err := c.Check(cmd.Context())
	if err != nil {
		return err
	}

	report.Render(os.Stdout, colorEnabled())

	if report.HasViolations() {
		return fmt.Errorf("one or more libraries violate their declared constraints")
	}
	return nil
}
