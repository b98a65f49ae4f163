package main

import (
	"fmt"

	"github.com/alfredjeanlab/medbuddy/internal/client"
	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	Short:   "List recorded events, oldest first",
	GroupID: "records",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")

		req := &client.ListEventsRequest{Limit: limit}
		if typ != "" {
			t, err := model.ParseEventType(typ)
			if err != nil {
				return err
			}
			req.Type = t
		}

		events, err := mb.ListEvents(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("listing events: %w", err)
		}

		if structured() {
			return printStructured(cmd.OutOrStdout(), events)
		}
		printEventTable(cmd.OutOrStdout(), events)
		return nil
	},
}

func init() {
	eventsCmd.Flags().StringP("type", "t", "", "only events of this type (reminder, adherence_log, doctor_advice, ...)")
	eventsCmd.Flags().IntP("limit", "n", 0, "show only the most recent n events")
}
