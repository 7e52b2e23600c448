package cli

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/nholden/verso/internal/colors"
	"github.com/nholden/verso/internal/config"
	"github.com/nholden/verso/internal/logging"
	"github.com/nholden/verso/internal/service"
	"github.com/nholden/verso/internal/structdiff"
)

// openStore loads the config and opens the bbolt-backed store.
func openStore() (*service.Store, *config.Config) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}
	logger := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})
	s, err := service.OpenConfig(cfg, logger)
	if err != nil {
		log.Fatalf("Open store %s: %v", cfg.Store.Path, err)
	}
	return s, cfg
}

// author resolves the acting user from config, falling back to $USER.
func author(cfg *config.Config) string {
	if a, err := cfg.Author(); err == nil {
		return a
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

// resolveDoc finds the document named by --doc, or the store's only
// document when the flag is empty.
func resolveDoc(s *service.Store, name string) service.Document {
	docs, err := s.ListDocuments()
	if err != nil {
		log.Fatalf("List documents: %v", err)
	}
	if name == "" {
		switch len(docs) {
		case 0:
			log.Fatal("No documents in store. Run: verso init <name> -f body.json")
		case 1:
			return docs[0]
		default:
			log.Fatal("Multiple documents in store; select one with --doc")
		}
	}
	for _, d := range docs {
		if d.Name == name || d.ID == name {
			return d
		}
	}
	log.Fatalf("Document %q not found", name)
	return service.Document{}
}

// readBody loads a document body from a JSON file.
func readBody(path string) any {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Read %s: %v", path, err)
	}
	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		log.Fatalf("Parse %s: %v", path, err)
	}
	return body
}

// printDiff renders a diff change-by-change.
func printDiff(d *structdiff.Diff) {
	if d.Empty() {
		fmt.Println("No changes.")
		return
	}
	for _, c := range d.Changes {
		switch c.Kind {
		case structdiff.ValueChanged:
			fmt.Printf("  %s %s: %v -> %v\n", colors.ChangedPrefix(), c.Path, c.Old, c.New)
		case structdiff.ItemAdded:
			fmt.Printf("  %s %s: %v\n", colors.AddedPrefix(), c.Path, colors.Green(compactJSON(c.New)))
		case structdiff.ItemRemoved:
			fmt.Printf("  %s %s: %v\n", colors.RemovedPrefix(), c.Path, colors.Red(compactJSON(c.Old)))
		case structdiff.TypeChanged:
			fmt.Printf("  %s %s: %s -> %s\n", colors.RetypedPrefix(), c.Path, c.OldType, c.NewType)
		}
	}
	sum := d.Summary
	fmt.Println(colors.Dim(fmt.Sprintf("%d changes: %d values, %d added, %d removed, %d retyped",
		sum.TotalChanges, sum.ValuesChanged, sum.ItemsAdded, sum.ItemsRemoved, sum.TypeChanges)))
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
