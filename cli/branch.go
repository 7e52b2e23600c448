package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/nholden/verso/internal/branch"
)

var (
	branchDoc         string
	branchSource      string
	branchFromVersion string
	branchForce       bool
	protectNoPush     bool
	protectReview     bool
)

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Manage branches",
}

var branchCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a branch",
	Args:  cobra.ExactArgs(1),
	Run:   branchCreateCommand,
}

var branchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List branches",
	Args:  cobra.NoArgs,
	Run:   branchListCommand,
}

var branchRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a branch",
	Args:  cobra.ExactArgs(1),
	Run:   branchRemoveCommand,
}

var branchProtectCmd = &cobra.Command{
	Use:   "protect <name>",
	Short: "Protect a branch",
	Args:  cobra.ExactArgs(1),
	Run:   branchProtectCommand,
}

var branchUnprotectCmd = &cobra.Command{
	Use:   "unprotect <name>",
	Short: "Clear a branch's protection",
	Args:  cobra.ExactArgs(1),
	Run:   branchUnprotectCommand,
}

func init() {
	branchCmd.PersistentFlags().StringVar(&branchDoc, "doc", "", "document name or id")
	branchCreateCmd.Flags().StringVarP(&branchSource, "from", "s", "main", "source branch")
	branchCreateCmd.Flags().StringVar(&branchFromVersion, "at", "", "source version id (defaults to the source head)")
	branchRemoveCmd.Flags().BoolVarP(&branchForce, "force", "f", false, "remove even if protected")
	branchProtectCmd.Flags().BoolVar(&protectNoPush, "restrict-push", true, "reject direct version creation")
	branchProtectCmd.Flags().BoolVar(&protectReview, "require-review", false, "require review before merge")
}

func branchCreateCommand(cmd *cobra.Command, args []string) {
	s, cfg := openStore()
	defer s.Close()
	doc := resolveDoc(s, branchDoc)

	b, err := s.CreateBranch(doc.ID, args[0], branchSource, branchFromVersion, author(cfg))
	if err != nil {
		log.Fatalf("Create branch: %v", err)
	}
	fmt.Printf("Created branch %s from %s at %s\n", b.Name, branchSource, shortID(b.Head))
}

func branchListCommand(cmd *cobra.Command, args []string) {
	s, _ := openStore()
	defer s.Close()
	doc := resolveDoc(s, branchDoc)

	branches, err := s.ListBranches(doc.ID)
	if err != nil {
		log.Fatalf("List branches: %v", err)
	}
	for _, b := range branches {
		marker := " "
		if b.IsRoot() {
			marker = "*"
		}
		protection := ""
		if b.IsProtected {
			protection = "  [protected]"
		}
		fmt.Printf("%s %-20s head %s%s\n", marker, b.Name, shortID(b.Head), protection)
	}
}

func branchRemoveCommand(cmd *cobra.Command, args []string) {
	s, cfg := openStore()
	defer s.Close()
	doc := resolveDoc(s, branchDoc)

	if err := s.DeleteBranch(doc.ID, args[0], branchForce, author(cfg)); err != nil {
		log.Fatalf("Remove branch: %v", err)
	}
	fmt.Printf("Removed branch %s\n", args[0])
}

func branchProtectCommand(cmd *cobra.Command, args []string) {
	s, cfg := openStore()
	defer s.Close()
	doc := resolveDoc(s, branchDoc)

	b, err := s.ProtectBranch(doc.ID, args[0], branch.Protection{
		RestrictPush:  protectNoPush,
		RequireReview: protectReview,
	}, author(cfg))
	if err != nil {
		log.Fatalf("Protect branch: %v", err)
	}
	fmt.Printf("Protected branch %s\n", b.Name)
}

func branchUnprotectCommand(cmd *cobra.Command, args []string) {
	s, cfg := openStore()
	defer s.Close()
	doc := resolveDoc(s, branchDoc)

	b, err := s.UnprotectBranch(doc.ID, args[0], author(cfg))
	if err != nil {
		log.Fatalf("Unprotect branch: %v", err)
	}
	fmt.Printf("Unprotected branch %s\n", b.Name)
}
