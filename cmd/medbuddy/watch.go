package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/alfredjeanlab/medbuddy/internal/audit"
	"github.com/alfredjeanlab/medbuddy/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream audit records from the NATS bus",
	Long: `Watch subscribes to the audit records a running assistant publishes on
NATS (audit.nats_url) and prints them as they arrive.`,
	GroupID: "records",
	Args:    cobra.NoArgs,
	// Override PersistentPreRunE so we don't open a client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return loadConfig() },
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats")
		component, _ := cmd.Flags().GetString("component")
		if natsURL == "" {
			natsURL = cfg.Audit.NATSURL
		}
		if natsURL == "" {
			return fmt.Errorf("no NATS URL: set audit.nats_url or pass --nats")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		sub, err := audit.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn("NATS disconnected", "err", err)
				}
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err != nil {
			return err
		}
		defer sub.Close()

		return watchAudit(ctx, sub, watchTopic(component), cmd.OutOrStdout())
	},
}

// watchTopic returns the subject for all records, or one component's.
func watchTopic(component string) string {
	if component == "" {
		return audit.TopicPrefix + ".>"
	}
	return audit.TopicPrefix + "." + component + ".>"
}

func watchAudit(ctx context.Context, sub audit.Subscriber, topic string, w io.Writer) error {
	ch, cancel, err := sub.Subscribe(topic)
	if err != nil {
		return err
	}
	defer cancel()
	logger.Debug("watching audit records", "topic", topic)

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			var rec audit.Record
			if err := json.Unmarshal(data, &rec); err != nil {
				logger.Warn("skipping malformed audit record", "err", err)
				continue
			}
			printRecord(w, rec)
		}
	}
}

func printRecord(w io.Writer, rec audit.Record) {
	if structured() {
		_ = printStructured(w, rec)
		return
	}

	keys := make([]string, 0, len(rec.Fields))
	for k := range rec.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]string, len(keys))
	for i, k := range keys {
		fields[i] = fmt.Sprintf("%s=%v", k, rec.Fields[k])
	}

	outcome := rec.Outcome
	if outcome != audit.OutcomeOK {
		outcome = ui.RenderWarn(outcome)
	}
	fmt.Fprintf(w, "%s %s %s %s %s\n",
		ui.RenderMuted(rec.Timestamp.Format("15:04:05")),
		ui.RenderAccent(rec.Component),
		rec.Action,
		outcome,
		strings.Join(fields, " "),
	)
}

func init() {
	watchCmd.Flags().String("nats", "", "NATS URL (default: audit.nats_url from config)")
	watchCmd.Flags().String("component", "", "only records of this component, e.g. decision_engine")
}
