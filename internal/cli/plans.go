package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zatekoja/itineraryconcierge/internal/bootstrap"
)

func init() {
	resolveCmd := &cobra.Command{
		Use:   "resolve <plan-id>",
		Short: "Show the storage keys for a plan identifier",
		Args:  cobra.ExactArgs(1),
		RunE:  runResolve,
	}

	showCmd := &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Print a stored plan with its version",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}

	historyCmd := &cobra.Command{
		Use:   "history <plan-id>",
		Short: "Print the recent conversation log of a plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistory,
	}
	historyCmd.Flags().IntP("limit", "l", 20, "Number of turns")

	migrateCmd := &cobra.Command{
		Use:   "migrate <plan-id>...",
		Short: "Copy plans stored under legacy raw keys to their canonical keys",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runMigrate,
	}

	seedCmd := &cobra.Command{
		Use:   "seed <plan-id>",
		Short: "Overwrite a plan from a JSON file (or stdin)",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeed,
	}
	seedCmd.Flags().StringP("file", "F", "-", "Plan or itinerary JSON file; - reads stdin")

	RootCmd.AddCommand(resolveCmd, showCmd, historyCmd, migrateCmd, seedCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(e *bootstrap.Engine) error {
		return printJSON(cmd.OutOrStdout(), e.Plans.Resolve(args[0]))
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(e *bootstrap.Engine) error {
		stored, keys, err := e.Plans.GetPlan(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"planKey":   keys.PlanKey,
			"version":   stored.Version,
			"updatedAt": stored.UpdatedAt,
			"plan":      stored.Plan,
		})
	})
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	return withEngine(cmd, func(e *bootstrap.Engine) error {
		turns, err := e.Plans.History(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), turns)
	})
}

func runMigrate(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(e *bootstrap.Engine) error {
		var failed int
		for _, id := range args {
			copied, err := e.Plans.Migrate(cmd.Context(), id)
			switch {
			case err != nil:
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "%s\terror: %v\n", id, err)
			case copied:
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tmigrated\n", id)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "%s\talready canonical\n", id)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d plans failed to migrate", failed, len(args))
		}
		return nil
	})
}

func runSeed(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	data, err := readSource(cmd, path)
	if err != nil {
		return fmt.Errorf("read plan: %w", err)
	}
	return withEngine(cmd, func(e *bootstrap.Engine) error {
		stored, err := e.Plans.Seed(cmd.Context(), args[0], json.RawMessage(data))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %s at version %d\n", args[0], stored.Version)
		return nil
	})
}
