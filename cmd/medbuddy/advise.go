package main

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/medbuddy/internal/client"
	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/ui"
	"github.com/spf13/cobra"
)

var adviseCmd = &cobra.Command{
	Use:     "advise <advice text...>",
	Short:   "Record a doctor's advice",
	Example: `  medbuddy advise --doctor dr-lee --specialty Cardiology "Limit salt to 2g per day"`,
	GroupID: "assistant",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doctor, _ := cmd.Flags().GetString("doctor")
		specialties, _ := cmd.Flags().GetStringSlice("specialty")

		e, err := mb.AddAdvice(cmd.Context(), &client.AdviceRequest{
			DoctorID:    doctor,
			AdviceText:  strings.Join(args, " "),
			Specialties: specialties,
		})
		if err != nil {
			return fmt.Errorf("recording advice: %w", err)
		}

		if structured() {
			return printStructured(cmd.OutOrStdout(), e)
		}

		var p model.AdvicePayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded advice from %s as #%d (%s)\n", p.DoctorID, e.ID, strings.Join(p.Specialties, ", "))
		if p.UnverifiedSpecialty {
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderWarn("unrecognized specialties: "+strings.Join(p.UnrecognizedSpecialties, ", ")))
		}
		return nil
	},
}

func init() {
	adviseCmd.Flags().String("doctor", "", "doctor identifier (required)")
	adviseCmd.Flags().StringSlice("specialty", nil, "specialty of the advice (repeatable)")
}
