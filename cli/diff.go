package cli

import (
	"log"

	"github.com/spf13/cobra"
)

var (
	diffDoc      string
	diffBranches bool
)

var diffCmd = &cobra.Command{
	Use:   "diff <base> <other>",
	Short: "Diff two versions or two branches",
	Long: `Shows the structural changes between two versions (by id), or between
two branch heads with --branches. Sequence items are matched by
identity, so a pure reorder shows no changes.`,
	Args: cobra.ExactArgs(2),
	Run:  diffCommand,
}

func init() {
	diffCmd.Flags().StringVar(&diffDoc, "doc", "", "document name or id")
	diffCmd.Flags().BoolVar(&diffBranches, "branches", false, "treat arguments as branch names")
}

func diffCommand(cmd *cobra.Command, args []string) {
	s, _ := openStore()
	defer s.Close()

	if diffBranches {
		doc := resolveDoc(s, diffDoc)
		d, err := s.CompareBranches(doc.ID, args[0], args[1])
		if err != nil {
			log.Fatalf("Diff branches: %v", err)
		}
		printDiff(d)
		return
	}
	d, err := s.CompareVersions(args[0], args[1])
	if err != nil {
		log.Fatalf("Diff versions: %v", err)
	}
	printDiff(d)
}
