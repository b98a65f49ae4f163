// Command medbuddy is a memory-first personal health assistant.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alfredjeanlab/medbuddy/internal/client"
	"github.com/alfredjeanlab/medbuddy/internal/config"
	"github.com/alfredjeanlab/medbuddy/internal/session"
	"github.com/alfredjeanlab/medbuddy/internal/ui"
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	serverURL    string
	authToken    string
	outputFormat string
	logLevel     string
	noColor      bool

	cfg    *config.Config
	logger *slog.Logger
	mb     client.Client
)

func defaultServerURL() string {
	return os.Getenv("MEDBUDDY_SERVER")
}

// loadConfig reads configuration and builds the process logger. Commands
// that do not talk through a client call it from their own PersistentPreRunE.
func loadConfig() error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	l, err := newLogger(os.Stderr, c.LogLevel, c.LogFormat)
	if err != nil {
		return err
	}
	if noColor || !ui.ShouldUseColor() {
		ui.ForceNoColor()
	}
	cfg, logger = c, l
	return nil
}

func openLocalSession(cmd *cobra.Command) (*session.Session, error) {
	return session.Open(cmd.Context(), cfg, session.WithLogger(logger))
}

var rootCmd = &cobra.Command{
	Use:           "medbuddy <command>",
	Short:         "Memory-first personal health assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		if serverURL != "" {
			token := authToken
			if token == "" {
				token = cfg.AuthToken
			}
			mb = client.NewHTTPClient(serverURL, token)
			return nil
		}
		sess, err := openLocalSession(cmd)
		if err != nil {
			return fmt.Errorf("opening event store: %w", err)
		}
		mb = client.NewLocal(sess)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if mb != nil {
			if err := mb.Close(); err != nil {
				logger.Error("closing client", "err", err)
			}
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.config/medbuddy/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL(), "medbuddy server URL; empty uses the local event store")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "bearer token for --server (default: auth_token from config)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json or yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "assistant", Title: "Assistant:"},
		&cobra.Group{ID: "records", Title: "Records:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Assistant
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(remindCmd)
	rootCmd.AddCommand(adviseCmd)
	rootCmd.AddCommand(docCmd)

	// Records
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(rulesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
