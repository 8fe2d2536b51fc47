package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply [key ...]",
	Short: "Apply recommended updates to the catalog",
	Long: "Apply checks for updates, shows the report and rewrites the catalog for\n" +
		"the selected version keys. Without arguments every updatable entry is\n" +
		"applied. The previous catalog is kept as a timestamped backup.",
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolP("yes", "y", false, "apply without confirmation")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	c, _, err := newCoordinator()
	if err != nil {
		return err
	}

	report, err := c.Check(cmd.Context())
	if err != nil {
		return err
	}
	report.Render(os.Stdout, colorEnabled())

	if len(report.Updatable()) == 0 {
		fmt.Println("\nNothing to apply.")
		return nil
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && !confirm("Apply these updates?") {
		return c.Cancel()
	}

	backup, err := c.Apply(report, args)
	if err != nil {
		return err
	}
	if backup != "" {
		fmt.Printf("\nCatalog updated (backup: %s)\n", backup)
	} else {
		fmt.Println("\nNo selected entries needed changes.")
	}
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("\n%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
