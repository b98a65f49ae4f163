package main

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/spf13/cobra"
)

var docCmd = &cobra.Command{
	Use:     "doc <file>",
	Short:   "Ingest a prescription or medical document (PDF, XLSX or text)",
	GroupID: "assistant",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := mb.IngestDocument(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", args[0], err)
		}

		if structured() {
			return printStructured(cmd.OutOrStdout(), e)
		}

		var p model.PrescriptionPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Recorded %s as #%d\n", e.Type, e.ID)
		if len(p.Keywords) > 0 {
			fmt.Fprintf(out, "Keywords:    %s\n", strings.Join(p.Keywords, ", "))
		}
		if len(p.SuggestedSpecialties) > 0 {
			fmt.Fprintf(out, "Specialists: %s\n", strings.Join(p.SuggestedSpecialties, ", "))
		}
		return nil
	},
}
