package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show details of an event",
	GroupID: "records",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid event id %q", args[0])
		}

		e, err := mb.GetEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("getting event %d: %w", id, err)
		}

		if structured() {
			return printStructured(cmd.OutOrStdout(), e)
		}
		return printEventDetail(cmd.OutOrStdout(), e)
	},
}
