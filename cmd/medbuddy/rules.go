package main

import (
	"fmt"

	"github.com/alfredjeanlab/medbuddy/internal/rules"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules [file]",
	Short: "Validate and print the effective clinical rule set",
	Long: `Rules loads the rule file (the argument, else rules_file from config) over
the built-in defaults, validates it and prints the result as TOML.`,
	GroupID: "system",
	Args:    cobra.MaximumNArgs(1),
	// Override PersistentPreRunE so we don't open a client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return loadConfig() },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.RulesFile
		if len(args) == 1 {
			path = args[0]
		}

		r, err := rules.Load(path)
		if err != nil {
			return err
		}
		if structured() {
			return printStructured(cmd.OutOrStdout(), r)
		}
		if err := r.Encode(cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("encoding rules: %w", err)
		}
		return nil
	},
}
