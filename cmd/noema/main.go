package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noemakb/noema/cmd/noema/commands"
	"github.com/noemakb/noema/config"
	"github.com/noemakb/noema/logger"
)

var rootCmd = &cobra.Command{
	Use:   "noema",
	Short: "Noema - Knowledge ingestion and validation pipeline",
	Long: `Noema - Confidence-scored knowledge graph construction.

Noema extracts entities and relationships from free text with an external
oracle, validates candidates against a typed ontology, and persists the
surviving assertions with full confidence provenance.

Available commands:
  ingest - Extract and persist knowledge from text
  dedupe - Scan for and merge duplicate entities
  types  - Manage relationship type definitions
  db     - Manage the knowledge database

Examples:
  noema ingest "Socrates teaches that virtue is knowledge."
  noema ingest --file lecture.txt
  noema dedupe scan
  noema dedupe merge <master-id> <duplicate-id>
  noema types ls
  noema db stats`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := logger.Initialize(cfg.Log.JSON); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commands.IngestCmd)
	rootCmd.AddCommand(commands.DedupeCmd)
	rootCmd.AddCommand(commands.TypesCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
