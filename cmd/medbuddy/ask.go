package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask a question or log a dose in plain language",
	Example: `  medbuddy ask "did I take my Metformin today?"
  medbuddy ask I took my Metformin 500mg at 8:05
  medbuddy ask remind me to take Aspirin 81mg at 9pm daily`,
	GroupID: "assistant",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		resp, err := mb.Ask(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("asking: %w", err)
		}

		if structured() {
			return printStructured(cmd.OutOrStdout(), resp)
		}
		printResponse(cmd.OutOrStdout(), resp)
		return nil
	},
}
