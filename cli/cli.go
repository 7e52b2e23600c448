// Package cli implements the verso command surface: thin glue over the
// service facade, operating a bbolt-backed store in the working
// directory.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "verso",
	Short: "Verso is a versioned document store",
	Long: `Verso keeps structured documents under version control: branches,
three-way merges, tags, locks, comments, and a full audit history,
with sequence items tracked by identity instead of position.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(docsCmd)

	rootCmd.AddCommand(branchCmd)
	branchCmd.AddCommand(branchCreateCmd, branchListCmd, branchRemoveCmd, branchProtectCmd, branchUnprotectCmd)

	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(logCmd)

	rootCmd.AddCommand(tagCmd)
	tagCmd.AddCommand(tagCreateCmd, tagListCmd, tagRemoveCmd)

	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(mergeCmd)
}
