package main

import (
	"bytes"
	"fmt"

	"github.com/alfredjeanlab/medbuddy/internal/session"
	mbsync "github.com/alfredjeanlab/medbuddy/internal/sync"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the event log as JSONL to stdout or a file",
	Long: `Export writes a header line followed by every event in creation order.
With a file argument the file is replaced atomically. Export always reads the
local event store.`,
	GroupID: "records",
	Args:    cobra.MaximumNArgs(1),
	// Override PersistentPreRunE so we don't open a client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return loadConfig() },
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openLocalSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Close()

		if len(args) == 0 {
			return mbsync.ExportJSONL(cmd.Context(), sess.Store(), cmd.OutOrStdout())
		}
		return exportToFile(cmd, sess, args[0])
	},
}

func exportToFile(cmd *cobra.Command, sess *session.Session, path string) error {
	var buf bytes.Buffer
	if err := mbsync.ExportJSONL(cmd.Context(), sess.Store(), &buf); err != nil {
		return err
	}
	if err := mbsync.NewFileDestination(path).Write(cmd.Context(), buf.Bytes()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d bytes to %s\n", buf.Len(), path)
	return nil
}
