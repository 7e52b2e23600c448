package cli

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nholden/verso/internal/merge"
	"github.com/nholden/verso/internal/service"
)

var (
	mergeDoc    string
	mergeInto   string
	mergeValues []string
)

var mergeCmd = &cobra.Command{
	Use:   "merge <source-branch>",
	Short: "Merge a branch",
	Long: `Opens (or reuses) a merge request from the source branch into the
target and attempts an automatic three-way merge. Conflicts are
printed with suggested resolutions; resolve them by re-running with
--set path=value (JSON or bare string) for every conflicted path.`,
	Args: cobra.ExactArgs(1),
	Run:  mergeCommand,
}

func init() {
	mergeCmd.Flags().StringVar(&mergeDoc, "doc", "", "document name or id")
	mergeCmd.Flags().StringVar(&mergeInto, "into", "main", "target branch")
	mergeCmd.Flags().StringArrayVar(&mergeValues, "set", nil, "conflict resolution path=value, repeatable")
}

func mergeCommand(cmd *cobra.Command, args []string) {
	s, cfg := openStore()
	defer s.Close()
	doc := resolveDoc(s, mergeDoc)
	actor := author(cfg)

	request := findOrCreateRequest(s, doc.ID, args[0], mergeInto, actor)

	if len(mergeValues) > 0 {
		resolutions := parseResolutions(mergeValues)
		out, err := s.ManualMerge(request.ID, resolutions, actor)
		if err != nil {
			log.Fatalf("Manual merge: %v", err)
		}
		fmt.Printf("Merged %s into %s as version %s\n", args[0], mergeInto, shortID(out.MergedVersionID))
		return
	}

	out, err := s.AutoMerge(request.ID, actor)
	if err != nil {
		log.Fatalf("Merge: %v", err)
	}
	if out.Success {
		fmt.Printf("Merged %s into %s as version %s\n", args[0], mergeInto, shortID(out.MergedVersionID))
		return
	}

	fmt.Printf("Merge has %d conflicts:\n", len(out.Conflicts))
	suggestions, err := s.SuggestResolutions(request.ID)
	if err != nil {
		log.Fatalf("Suggestions: %v", err)
	}
	for _, cs := range suggestions {
		c := cs.Conflict
		fmt.Printf("  %s\n    base:   %v\n    source: %v\n    target: %v\n", c.Path, c.Base, c.Source, c.Target)
		for _, sg := range cs.Suggestions {
			fmt.Printf("    suggestion (%s): %v\n", sg.Strategy, sg.Value)
		}
	}
	fmt.Println("Resolve with: verso merge", args[0], "--into", mergeInto, "--set path=value ...")
}

// findOrCreateRequest reuses the open request for the branch pair, or
// opens a fresh one.
func findOrCreateRequest(s *service.Store, docID, source, target, actor string) merge.Request {
	src, err := s.GetBranch(docID, source)
	if err != nil {
		log.Fatalf("Branch %s: %v", source, err)
	}
	tgt, err := s.GetBranch(docID, target)
	if err != nil {
		log.Fatalf("Branch %s: %v", target, err)
	}
	open, err := s.ListMergeRequests(docID, merge.Filter{
		Status:         merge.StatusOpen,
		SourceBranchID: src.ID,
		TargetBranchID: tgt.ID,
	})
	if err != nil {
		log.Fatalf("List merge requests: %v", err)
	}
	if len(open) > 0 {
		return open[0]
	}
	r, err := s.CreateMergeRequest(docID, source, target, actor)
	if err != nil {
		log.Fatalf("Create merge request: %v", err)
	}
	return r
}

// parseResolutions parses repeated path=value flags; values parse as
// JSON when possible and fall back to bare strings.
func parseResolutions(pairs []string) []merge.Resolution {
	out := make([]merge.Resolution, 0, len(pairs))
	for _, pair := range pairs {
		path, raw, ok := strings.Cut(pair, "=")
		if !ok {
			log.Fatalf("Bad resolution %q, want path=value", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		out = append(out, merge.Resolution{Path: path, Value: value})
	}
	return out
}
