package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var initBodyFile string

var initCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Create a document",
	Long:  "Creates a document with its main branch and initial version from a JSON body file.",
	Args:  cobra.ExactArgs(1),
	Run:   initCommand,
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List documents",
	Args:  cobra.NoArgs,
	Run:   docsCommand,
}

func init() {
	initCmd.Flags().StringVarP(&initBodyFile, "file", "f", "", "JSON file holding the initial body")
	_ = initCmd.MarkFlagRequired("file")
}

func initCommand(cmd *cobra.Command, args []string) {
	s, cfg := openStore()
	defer s.Close()

	doc, main, initial, err := s.CreateDocument(args[0], readBody(initBodyFile), author(cfg))
	if err != nil {
		log.Fatalf("Create document: %v", err)
	}
	fmt.Printf("Created document %q (%s)\n", doc.Name, shortID(doc.ID))
	fmt.Printf("Branch %s at version %s\n", main.Name, shortID(initial.ID))
}

func docsCommand(cmd *cobra.Command, args []string) {
	s, _ := openStore()
	defer s.Close()

	docs, err := s.ListDocuments()
	if err != nil {
		log.Fatalf("List documents: %v", err)
	}
	if len(docs) == 0 {
		fmt.Println("No documents.")
		return
	}
	for _, d := range docs {
		fmt.Printf("%s  %s  (created by %s %s)\n",
			shortID(d.ID), d.Name, d.CreatedBy, d.CreatedAt.Format("2006-01-02"))
	}
}
