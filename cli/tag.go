package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var (
	tagDoc     string
	tagVersion string
	tagType    string
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage tags",
}

var tagCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Tag a version",
	Args:  cobra.ExactArgs(1),
	Run:   tagCreateCommand,
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags",
	Args:  cobra.NoArgs,
	Run:   tagListCommand,
}

var tagRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a tag pointer",
	Args:  cobra.ExactArgs(1),
	Run:   tagRemoveCommand,
}

func init() {
	tagCmd.PersistentFlags().StringVar(&tagDoc, "doc", "", "document name or id")
	tagCreateCmd.Flags().StringVarP(&tagVersion, "version", "v", "", "version id (defaults to the main head)")
	tagCreateCmd.Flags().StringVarP(&tagType, "type", "t", "", "tag type, e.g. release or baseline")
}

func tagCreateCommand(cmd *cobra.Command, args []string) {
	s, cfg := openStore()
	defer s.Close()
	doc := resolveDoc(s, tagDoc)

	versionID := tagVersion
	if versionID == "" {
		main, err := s.GetBranch(doc.ID, "main")
		if err != nil {
			log.Fatalf("Main branch: %v", err)
		}
		versionID = main.Head
	}
	t, err := s.CreateTag(doc.ID, versionID, args[0], tagType, author(cfg))
	if err != nil {
		log.Fatalf("Create tag: %v", err)
	}
	fmt.Printf("Tagged %s as %s\n", shortID(t.VersionID), t.Name)
}

func tagListCommand(cmd *cobra.Command, args []string) {
	s, _ := openStore()
	defer s.Close()
	doc := resolveDoc(s, tagDoc)

	tags, err := s.ListTags(doc.ID)
	if err != nil {
		log.Fatalf("List tags: %v", err)
	}
	for _, t := range tags {
		kind := ""
		if t.Type != "" {
			kind = "  (" + t.Type + ")"
		}
		fmt.Printf("%-20s %s%s\n", t.Name, shortID(t.VersionID), kind)
	}
}

func tagRemoveCommand(cmd *cobra.Command, args []string) {
	s, cfg := openStore()
	defer s.Close()
	doc := resolveDoc(s, tagDoc)

	tags, err := s.ListTags(doc.ID)
	if err != nil {
		log.Fatalf("List tags: %v", err)
	}
	for _, t := range tags {
		if t.Name == args[0] {
			if err := s.DeleteTag(t.ID, author(cfg)); err != nil {
				log.Fatalf("Remove tag: %v", err)
			}
			fmt.Printf("Removed tag %s\n", t.Name)
			return
		}
	}
	log.Fatalf("Tag %q not found", args[0])
}
