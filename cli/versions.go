package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var (
	versionsDoc    string
	versionsBranch string
	versionsLimit  int
	commitFile     string
	restoreBackup  bool
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit a new version",
	Long:  "Commits the JSON body file as a new version on a branch and prints the diff against the previous head.",
	Args:  cobra.NoArgs,
	Run:   commitCommand,
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List a branch's versions",
	Args:  cobra.NoArgs,
	Run:   versionsCommand,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <version-id>",
	Short: "Restore an older version",
	Long:  "Commits a new head whose content equals the given version's.",
	Args:  cobra.ExactArgs(1),
	Run:   restoreCommand,
}

func init() {
	for _, c := range []*cobra.Command{commitCmd, versionsCmd, restoreCmd} {
		c.Flags().StringVar(&versionsDoc, "doc", "", "document name or id")
		c.Flags().StringVarP(&versionsBranch, "branch", "b", "main", "branch name")
	}
	commitCmd.Flags().StringVarP(&commitFile, "file", "f", "", "JSON file holding the new body")
	_ = commitCmd.MarkFlagRequired("file")
	versionsCmd.Flags().IntVarP(&versionsLimit, "limit", "n", 20, "max versions to list")
	restoreCmd.Flags().BoolVar(&restoreBackup, "backup", false, "snapshot the current head first")
}

func commitCommand(cmd *cobra.Command, args []string) {
	s, cfg := openStore()
	defer s.Close()
	doc := resolveDoc(s, versionsDoc)

	v, diff, err := s.CreateVersion(doc.ID, versionsBranch, readBody(commitFile), author(cfg))
	if err != nil {
		log.Fatalf("Commit: %v", err)
	}
	fmt.Printf("Committed version %s on %s\n", shortID(v.ID), versionsBranch)
	printDiff(diff)
}

func versionsCommand(cmd *cobra.Command, args []string) {
	s, _ := openStore()
	defer s.Close()
	doc := resolveDoc(s, versionsDoc)

	versions, err := s.ListVersions(doc.ID, versionsBranch, versionsLimit)
	if err != nil {
		log.Fatalf("List versions: %v", err)
	}
	for _, v := range versions {
		kind := ""
		if v.IsMerge() {
			kind = "  (merge)"
		}
		fmt.Printf("%s  %s  %s%s\n", shortID(v.ID), v.CreatedAt.Format("2006-01-02 15:04"), v.CreatedBy, kind)
	}
}

func restoreCommand(cmd *cobra.Command, args []string) {
	s, cfg := openStore()
	defer s.Close()
	doc := resolveDoc(s, versionsDoc)

	v, err := s.RestoreVersion(doc.ID, versionsBranch, args[0], restoreBackup, author(cfg))
	if err != nil {
		log.Fatalf("Restore: %v", err)
	}
	fmt.Printf("Restored %s as new version %s on %s\n", shortID(args[0]), shortID(v.ID), versionsBranch)
}
