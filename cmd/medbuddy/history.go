package main

import (
	"fmt"

	"github.com/alfredjeanlab/medbuddy/internal/engine"
	"github.com/alfredjeanlab/medbuddy/internal/ui"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Short:   "Show the most recently logged doses, newest first",
	GroupID: "records",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("limit")
		if n <= 0 {
			return fmt.Errorf("--limit must be positive")
		}

		events, err := mb.RecentAdherence(cmd.Context(), n)
		if err != nil {
			return fmt.Errorf("loading adherence history: %w", err)
		}

		if structured() {
			return printStructured(cmd.OutOrStdout(), events)
		}
		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMuted("No doses logged yet."))
			return nil
		}
		for _, e := range events {
			fmt.Fprintln(cmd.OutOrStdout(), engine.Bullet(e))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 5, "number of doses to show")
}
