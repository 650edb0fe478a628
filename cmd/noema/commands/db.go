package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the knowledge database",
	Long: `db — Knowledge database operations.

Examples:
  noema db stats    # Show knowledge graph statistics`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge graph statistics",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	entities, knowledge, evidence, assertions := rt.mirror.Stats()

	fmt.Printf("Knowledge Graph Statistics\n")
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path:       %s\n", rt.cfg.Database.Path)
	fmt.Printf("Entities:            %d\n", entities)
	fmt.Printf("Knowledge Entries:   %d\n", knowledge)
	fmt.Printf("Evidence Spans:      %d\n", evidence)
	fmt.Printf("Relation Assertions: %d\n", assertions)
	fmt.Printf("Relationship Types:  %d active / %d total\n", len(rt.registry.Active()), rt.registry.Len())
	return nil
}
