package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/nholden/verso/internal/history"
)

var (
	logDoc    string
	logBranch string
	logUser   string
	logLimit  int
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the audit history",
	Args:  cobra.NoArgs,
	Run:   logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logDoc, "doc", "", "document name or id")
	logCmd.Flags().StringVarP(&logBranch, "branch", "b", "", "filter by branch")
	logCmd.Flags().StringVarP(&logUser, "user", "u", "", "filter by actor")
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 30, "max entries")
}

func logCommand(cmd *cobra.Command, args []string) {
	s, _ := openStore()
	defer s.Close()
	doc := resolveDoc(s, logDoc)

	q := history.Query{DocID: doc.ID, Actor: logUser, Limit: logLimit}
	if logBranch != "" {
		b, err := s.GetBranch(doc.ID, logBranch)
		if err != nil {
			log.Fatalf("Branch %s: %v", logBranch, err)
		}
		q.BranchID = b.ID
	}
	entries, err := s.QueryHistory(q)
	if err != nil {
		log.Fatalf("History: %v", err)
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-18s %s", e.At.Format("2006-01-02 15:04"), e.Action, e.Actor)
		if e.Summary != "" {
			line += "  " + e.Summary
		}
		fmt.Println(line)
	}
}
