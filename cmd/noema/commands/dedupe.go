package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/noemakb/noema/dedupe"
	"github.com/noemakb/noema/errors"
	"github.com/noemakb/noema/logger"
	"github.com/noemakb/noema/oracle"
)

// DedupeCmd represents the dedupe command
var DedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Scan for and merge duplicate entities",
	Long: `dedupe — Entity deduplication.

Repeated ingestion deliberately creates fresh entities for every run;
dedupe is the reconciliation half. The scan scores every entity pair and
reports candidates above the similarity threshold; merge collapses a
chosen pair into a single master entity.

Examples:
  noema dedupe scan
  noema dedupe scan --threshold 0.8
  noema dedupe merge <master-id> <duplicate-id>`,
}

var dedupeScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List likely duplicate entity pairs",
	RunE:  runDedupeScan,
}

var dedupeMergeCmd = &cobra.Command{
	Use:   "merge <master-id> <duplicate-id>",
	Short: "Merge a duplicate entity into a master entity",
	Long: `Merge the duplicate entity into the master. Relation assertions are
repointed at the master, source references are unioned, and the oracle
proposes a synthesized description. An oracle failure falls back to the
master's description; only a failed database write aborts the merge.`,
	Args: cobra.ExactArgs(2),
	RunE: runDedupeMerge,
}

var scanThresholdFlag float64

func init() {
	DedupeCmd.AddCommand(dedupeScanCmd)
	DedupeCmd.AddCommand(dedupeMergeCmd)
	dedupeScanCmd.Flags().Float64Var(&scanThresholdFlag, "threshold", 0, "Similarity threshold override (default from config)")
}

func runDedupeScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	threshold := scanThresholdFlag
	if threshold <= 0 {
		threshold = rt.cfg.Dedupe.Threshold
	}

	candidates := dedupe.FindDuplicates(rt.mirror.Entities(), threshold)
	if len(candidates) == 0 {
		pterm.Info.Println("No duplicate candidates found")
		return nil
	}

	pterm.Printf("Found %s duplicate candidates (threshold %.2f)\n\n",
		pterm.Yellow(fmt.Sprintf("%d", len(candidates))), threshold)

	table := pterm.TableData{{"Score", "Name", "Desc", "Kw", "A", "B"}}
	for _, c := range candidates {
		table = append(table, []string{
			fmt.Sprintf("%.3f", c.Score.Total),
			fmt.Sprintf("%.2f", c.Score.Name),
			fmt.Sprintf("%.2f", c.Score.Description),
			fmt.Sprintf("%.2f", c.Score.Keywords),
			fmt.Sprintf("%s (%s)", c.A.Name, c.A.ID),
			fmt.Sprintf("%s (%s)", c.B.Name, c.B.ID),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

func runDedupeMerge(cmd *cobra.Command, args []string) error {
	masterID, duplicateID := args[0], args[1]

	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	synthesizer, err := oracle.NewAnthropicClient(oracle.Config{
		APIKey:    rt.cfg.Anthropic.APIKey,
		Model:     rt.cfg.Anthropic.Model,
		MaxTokens: int64(rt.cfg.Anthropic.MaxTokens),
	}, rt.registry, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to create oracle client")
	}

	merger := dedupe.NewMerger(synthesizer, rt.store, rt.mirror, logger.Logger)
	merged, err := merger.Merge(ctx, masterID, duplicateID)
	if err != nil {
		return err
	}

	pterm.Success.Printf("Merged %s into %s\n", duplicateID, masterID)
	pterm.Printf("  %s %s\n", pterm.Gray("name:"), merged.Name)
	pterm.Printf("  %s %s\n", pterm.Gray("description:"), merged.Description)
	pterm.Printf("  %s %v\n", pterm.Gray("keywords:"), merged.Keywords)
	pterm.Printf("  %s %d\n", pterm.Gray("sources:"), len(merged.SourceIDs))
	return nil
}
