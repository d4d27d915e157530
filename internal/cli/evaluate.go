package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zatekoja/itineraryconcierge/internal/application/services"
	"github.com/zatekoja/itineraryconcierge/internal/evaluation"
)

func init() {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score the retrieval classifier against a golden message set",
		Args:  cobra.NoArgs,
		RunE:  runEvaluate,
	}

	cmd.Flags().String("golden", "config/golden_messages.json", "Golden message file")
	cmd.Flags().Float64("min-accuracy", 0.9, "Fail below this retrieval accuracy")
	cmd.Flags().Int("max-false-retrievals", 0, "Fail above this many unneeded retrievals")
	cmd.Flags().Float64("min-sub-source-recall", 0.8, "Fail below this sub-source recall")
	cmd.Flags().BoolP("verbose", "v", false, "Print per-message results")

	RootCmd.AddCommand(cmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("golden")
	minAccuracy, _ := cmd.Flags().GetFloat64("min-accuracy")
	maxFalse, _ := cmd.Flags().GetInt("max-false-retrievals")
	minRecall, _ := cmd.Flags().GetFloat64("min-sub-source-recall")
	verbose, _ := cmd.Flags().GetBool("verbose")

	messages, err := evaluation.LoadGoldenMessages(path)
	if err != nil {
		return err
	}
	if err := evaluation.ValidateGoldenMessages(messages); err != nil {
		return err
	}

	summary, results, err := evaluation.NewRunner(services.NewIntentClassifier()).Run(cmd.Context(), messages)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if verbose {
		for _, r := range results {
			mark := "ok"
			if !r.Correct() {
				mark = "MISS"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-4s %-12s retrieval=%-5t triggers=%v sub_sources=%v\n",
				mark, r.MessageID, r.Got.NeedsRetrieval, r.Got.Triggers, r.Got.SubSources)
		}
	}
	if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
		return err
	}

	return evaluation.NewGuardrails(evaluation.GuardrailConfig{
		MinRetrievalAccuracy: minAccuracy,
		MaxFalseRetrievals:   maxFalse,
		MinSubSourceRecall:   minRecall,
	}).Check(summary)
}
