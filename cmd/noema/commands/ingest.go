package commands

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/noemakb/noema/errors"
	"github.com/noemakb/noema/ingest"
	"github.com/noemakb/noema/logger"
	"github.com/noemakb/noema/oracle"
)

// IngestCmd represents the ingest command
var IngestCmd = &cobra.Command{
	Use:   "ingest [text]",
	Short: "Extract and persist knowledge from text",
	Long: `ingest — Run the full ingestion pipeline on a text.

The text is sent to the extraction oracle, candidate relationships are
validated against the ontology, and surviving records are committed in a
single transaction. Rejected candidates are reported but never written.

Examples:
  noema ingest "Socrates teaches that virtue is knowledge."
  noema ingest --file lecture.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

var ingestFileFlag string

func init() {
	IngestCmd.Flags().StringVar(&ingestFileFlag, "file", "", "Read the text to ingest from a file")
}

func runIngest(cmd *cobra.Command, args []string) error {
	text, err := ingestInput(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	extractor, err := oracle.NewAnthropicClient(oracle.Config{
		APIKey:    rt.cfg.Anthropic.APIKey,
		Model:     rt.cfg.Anthropic.Model,
		MaxTokens: int64(rt.cfg.Anthropic.MaxTokens),
	}, rt.registry, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to create oracle client")
	}

	pipeline := ingest.NewPipeline(extractor, rt.registry, rt.validator, rt.store, rt.mirror, logger.Logger)

	spinner, _ := pterm.DefaultSpinner.Start("Extracting knowledge...")
	report, err := pipeline.Ingest(ctx, text)
	if err != nil {
		spinner.Fail("Ingestion failed")
		return err
	}
	spinner.Success("Ingestion complete")

	pterm.Printf("Knowledge entry: %s\n", pterm.LightCyan(report.KnowledgeID))
	pterm.Printf("Entities created: %s\n", pterm.Green(fmt.Sprintf("%d", report.EntitiesCreated)))
	pterm.Printf("Assertions admitted: %s\n", pterm.Green(fmt.Sprintf("%d", report.AssertionsAdmitted)))

	if len(report.Rejections) > 0 {
		pterm.Printf("Rejected candidates: %s\n", pterm.Yellow(fmt.Sprintf("%d", len(report.Rejections))))
		for _, rej := range report.Rejections {
			pterm.Printf("  %s %s(%s → %s): %s\n",
				pterm.Gray("✗"),
				rej.MachineName, rej.Source, rej.Target,
				pterm.Gray(rej.Err.Error()))
		}
	}
	return nil
}

func ingestInput(args []string) (string, error) {
	if ingestFileFlag != "" {
		data, err := os.ReadFile(ingestFileFlag)
		if err != nil {
			return "", errors.Wrapf(err, "failed to read %s", ingestFileFlag)
		}
		return string(data), nil
	}
	if len(args) == 1 && args[0] != "" {
		return args[0], nil
	}
	return "", errors.New("provide text to ingest as an argument or with --file")
}
