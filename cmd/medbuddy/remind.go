package main

import (
	"fmt"

	"github.com/alfredjeanlab/medbuddy/internal/client"
	"github.com/spf13/cobra"
)

var remindCmd = &cobra.Command{
	Use:     "remind <medication> <HH:MM>",
	Short:   "Schedule a medication reminder",
	Example: "  medbuddy remind Metformin 08:00 --dose 500mg --frequency \"twice daily\"",
	GroupID: "assistant",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := reminderRequest(cmd, args)

		res, err := mb.AddReminder(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("adding reminder: %w", err)
		}

		if structured() {
			return printStructured(cmd.OutOrStdout(), res)
		}
		printReminderResult(cmd.OutOrStdout(), res)
		return nil
	},
}

var remindCheckCmd = &cobra.Command{
	Use:   "check <medication> <HH:MM>",
	Short: "Check a proposed reminder for conflicts without saving it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		findings, err := mb.CheckReminder(cmd.Context(), reminderRequest(cmd, args))
		if err != nil {
			return fmt.Errorf("checking reminder: %w", err)
		}

		if structured() {
			return printStructured(cmd.OutOrStdout(), map[string]any{"findings": findings})
		}
		if len(findings) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No conflicts found")
			return nil
		}
		printFindings(cmd.OutOrStdout(), findings)
		return nil
	},
}

func reminderRequest(cmd *cobra.Command, args []string) *client.ReminderRequest {
	dose, _ := cmd.Flags().GetString("dose")
	freq, _ := cmd.Flags().GetString("frequency")
	return &client.ReminderRequest{
		Medication: args[0],
		Time:       args[1],
		Dose:       dose,
		Frequency:  freq,
	}
}

func init() {
	remindCmd.Flags().String("dose", "", "dose, e.g. 500mg")
	remindCmd.Flags().String("frequency", "", "frequency (default daily)")
	remindCheckCmd.Flags().String("frequency", "", "frequency (default daily)")
	remindCheckCmd.Flags().String("dose", "", "dose, e.g. 500mg")

	remindCmd.AddCommand(remindCheckCmd)
}
