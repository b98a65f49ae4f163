package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alfredjeanlab/medbuddy/internal/ui"
	"github.com/spf13/cobra"
)

// helpSection is the part of Cobra's usage text a line belongs to.
type helpSection int

const (
	sectionOther helpSection = iota
	sectionCommands
	sectionExamples
	sectionFlags
)

var (
	flagType     = regexp.MustCompile(`^(\s+(?:-\w, )?--[\w-]+ )(string|int|int32|duration|stringSlice|stringArray)\b`)
	flagDefault  = regexp.MustCompile(`\(default[: ][^)]*\)`)
	quotedArg    = regexp.MustCompile(`"[^"]*"`)
	listedSubcmd = regexp.MustCompile(`^(  )(\S+)(\s{2,})`)
)

// sectionOf classifies an unindented header line such as "Records:".
func sectionOf(header string) helpSection {
	switch {
	case header == "Examples:":
		return sectionExamples
	case strings.HasSuffix(header, "Flags:"):
		return sectionFlags
	case header == "Usage:", header == "Aliases:":
		return sectionOther
	default:
		return sectionCommands
	}
}

// colorizedHelpFunc renders Cobra's usage text, styled when the terminal
// supports color.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		// Usage writes to stderr unless an output is set.
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			cmd.SetOut(out)
			_ = cmd.Usage()
			return
		}

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

// colorizeHelpOutput styles usage text line by line: section headers,
// listed subcommands, medbuddy invocations in examples, and flag types and
// defaults.
func colorizeHelpOutput(s string) string {
	lines := strings.Split(s, "\n")
	section := sectionOther
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if line[0] != ' ' && strings.HasSuffix(trimmed, ":") {
			section = sectionOf(trimmed)
			if trimmed != "Usage:" {
				lines[i] = ui.RenderAccent(trimmed)
			}
			continue
		}
		switch section {
		case sectionCommands:
			lines[i] = styleSubcommand(line)
		case sectionExamples:
			lines[i] = styleExample(line)
		case sectionFlags:
			lines[i] = styleFlag(line)
		}
	}
	return strings.Join(lines, "\n")
}

func styleSubcommand(line string) string {
	m := listedSubcmd.FindStringSubmatchIndex(line)
	if m == nil {
		return line
	}
	name := line[m[4]:m[5]]
	return line[:m[4]] + ui.RenderCommand(name) + line[m[5]:]
}

// styleExample highlights "medbuddy <command>" and mutes quoted arguments.
func styleExample(line string) string {
	indent := line[:len(line)-len(strings.TrimLeft(line, " "))]
	fields := strings.SplitN(strings.TrimLeft(line, " "), " ", 3)
	if len(fields) < 2 || fields[0] != rootCmd.Name() {
		return line
	}
	rest := ""
	if len(fields) == 3 {
		rest = " " + quotedArg.ReplaceAllStringFunc(fields[2], ui.RenderMuted)
	}
	return indent + ui.RenderCommand(fields[0]+" "+fields[1]) + rest
}

func styleFlag(line string) string {
	line = flagType.ReplaceAllStringFunc(line, func(match string) string {
		parts := flagType.FindStringSubmatch(match)
		return parts[1] + ui.RenderMuted(parts[2])
	})
	return flagDefault.ReplaceAllStringFunc(line, ui.RenderMuted)
}
