package commands

import (
	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/noemakb/noema/ontology"
)

// TypesCmd represents the types command
var TypesCmd = &cobra.Command{
	Use:   "types",
	Short: "Manage relationship type definitions",
	Long: `types — Manage the relationship type registry.

Relationship types are versioned: multiple versions of the same machine
name may coexist, and the highest non-deprecated version is the active
one used during ingestion.

Examples:
  noema types ls
  noema types add causes_indirectly --description "Mediated causal link" --category causal
  noema types describe <id> "New description"
  noema types rm <id>`,
}

var typesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List relationship types",
	RunE:  runTypesLs,
}

var typesAddCmd = &cobra.Command{
	Use:   "add <machine-name>",
	Short: "Add a relationship type definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runTypesAdd,
}

var typesDescribeCmd = &cobra.Command{
	Use:   "describe <id> <description>",
	Short: "Update a relationship type's description",
	Args:  cobra.ExactArgs(2),
	RunE:  runTypesDescribe,
}

var typesRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a relationship type and its assertions",
	Args:  cobra.ExactArgs(1),
	RunE:  runTypesRm,
}

var (
	typeDescriptionFlag   string
	typeCategoryFlag      string
	typeVersionFlag       string
	typeDeterministicFlag bool
	typesAllFlag          bool
)

func init() {
	TypesCmd.AddCommand(typesLsCmd)
	TypesCmd.AddCommand(typesAddCmd)
	TypesCmd.AddCommand(typesDescribeCmd)
	TypesCmd.AddCommand(typesRmCmd)

	typesLsCmd.Flags().BoolVar(&typesAllFlag, "all", false, "Include deprecated and superseded versions")
	typesAddCmd.Flags().StringVar(&typeDescriptionFlag, "description", "", "Human-readable description")
	typesAddCmd.Flags().StringVar(&typeCategoryFlag, "category", "General", "Type category")
	typesAddCmd.Flags().StringVar(&typeVersionFlag, "version", "1.0.0", "Semantic version")
	typesAddCmd.Flags().BoolVar(&typeDeterministicFlag, "deterministic", false, "Relationship holds with probability 1.0")
}

func runTypesLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	var defs []*ontology.RelationshipType
	if typesAllFlag {
		defs, err = rt.store.LoadRelationshipTypes(ctx)
		if err != nil {
			return err
		}
	} else {
		defs = rt.registry.Active()
	}

	table := pterm.TableData{{"Machine Name", "Version", "Category", "Deprecated", "ID"}}
	for _, def := range defs {
		deprecated := ""
		if def.Deprecated {
			deprecated = "yes"
		}
		table = append(table, []string{def.MachineName, def.Version, def.Category, deprecated, def.ID})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

func runTypesAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	def := &ontology.RelationshipType{
		ID:            uuid.New().String(),
		MachineName:   args[0],
		Description:   typeDescriptionFlag,
		Category:      typeCategoryFlag,
		Directional:   true,
		Deterministic: typeDeterministicFlag,
		Version:       typeVersionFlag,
	}
	if err := rt.store.CreateRelationshipType(ctx, def); err != nil {
		return err
	}

	pterm.Success.Printf("Added relationship type %s %s\n", def.MachineName, pterm.Gray(def.ID))
	return nil
}

func runTypesDescribe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.store.UpdateRelationshipTypeDescription(ctx, args[0], args[1]); err != nil {
		return err
	}
	pterm.Success.Printf("Updated description of %s\n", args[0])
	return nil
}

func runTypesRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.store.DeleteRelationshipType(ctx, args[0]); err != nil {
		return err
	}
	pterm.Success.Printf("Deleted relationship type %s and its assertions\n", args[0])
	return nil
}
