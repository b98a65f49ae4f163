package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/alfredjeanlab/medbuddy/internal/client"
	"github.com/alfredjeanlab/medbuddy/internal/idgen"
	"github.com/alfredjeanlab/medbuddy/internal/ui"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:     "chat",
	Short:   "Start an interactive conversation",
	GroupID: "assistant",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		id, err := idgen.Session()
		if err != nil {
			return err
		}
		logger.Debug("chat started", "session", id)

		prompt := ""
		if ui.IsTerminal(os.Stdin) {
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMuted("Ask about your medications, or type exit to quit."))
			prompt = ui.RenderAccent("you> ")
		}
		return chatLoop(ctx, mb, cmd.InOrStdin(), cmd.OutOrStdout(), prompt)
	},
}

// chatLoop answers one line at a time until EOF, an exit command or
// cancellation. Failed queries are reported and the loop continues.
func chatLoop(ctx context.Context, c client.Client, in io.Reader, out io.Writer, prompt string) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, prompt)
		if !sc.Scan() {
			if prompt != "" {
				fmt.Fprintln(out)
			}
			return sc.Err()
		}

		line := strings.TrimSpace(sc.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit", "bye":
			return nil
		}

		resp, err := c.Ask(ctx, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintln(out, ui.RenderWarn("error: "+err.Error()))
			continue
		}
		printResponse(out, resp)
		fmt.Fprintln(out)
	}
}
