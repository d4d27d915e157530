package cli

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
	"github.com/zatekoja/itineraryconcierge/internal/application/services"
	"github.com/zatekoja/itineraryconcierge/internal/bootstrap"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat <plan-id>",
		Short: "Run one chat turn against a plan and print the reply",
		Args:  cobra.ExactArgs(1),
		RunE:  runChat,
	}

	cmd.Flags().StringP("message", "m", "", "User message (required)")
	cmd.Flags().String("snapshot", "", "Itinerary JSON file used to seed a missing plan")

	cmd.MarkFlagRequired("message")

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	message, _ := cmd.Flags().GetString("message")
	snapshotPath, _ := cmd.Flags().GetString("snapshot")

	var snapshot json.RawMessage
	if snapshotPath != "" {
		data, err := readSource(cmd, snapshotPath)
		if err != nil {
			return err
		}
		snapshot = data
	}

	return withEngine(cmd, func(e *bootstrap.Engine) error {
		if e.Coordinator == nil {
			return errors.New("no generative model configured; set OPENAI_API_KEY")
		}
		resp, err := e.Coordinator.Mutate(cmd.Context(), services.MutationRequest{
			PlanID:   args[0],
			Message:  message,
			Snapshot: snapshot,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	})
}
