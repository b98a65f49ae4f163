package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/medbuddy/internal/conflict"
	"github.com/alfredjeanlab/medbuddy/internal/engine"
	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/session"
	"github.com/alfredjeanlab/medbuddy/internal/ui"
	"gopkg.in/yaml.v3"
)

// structured reports whether the output format is machine-readable.
func structured() bool {
	return outputFormat == "json" || outputFormat == "yaml"
}

// printStructured writes v in the selected machine-readable format.
func printStructured(w io.Writer, v any) error {
	switch outputFormat {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	case "yaml":
		// Round-trip through JSON so yaml keys follow the json tags.
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (must be text, json or yaml)", outputFormat)
	}
}

func printResponse(w io.Writer, resp *engine.Response) {
	fmt.Fprintln(w, resp.Answer)

	meta := []string{"source: " + ui.RenderSource(string(resp.Source))}
	if len(resp.Citations) > 0 {
		ids := make([]string, len(resp.Citations))
		for i, id := range resp.Citations {
			ids[i] = fmt.Sprintf("#%d", id)
		}
		meta = append(meta, "cites "+strings.Join(ids, ", "))
	}
	if resp.Recorded != nil {
		meta = append(meta, fmt.Sprintf("recorded %s #%d", resp.Recorded.Type, resp.Recorded.ID))
	}
	fmt.Fprintln(w, ui.RenderMuted("("+strings.Join(meta, "; ")+")"))

	printFindings(w, resp.Findings)
	for _, warn := range resp.Warnings {
		fmt.Fprintln(w, ui.RenderWarn("warning: "+warn))
	}
}

func printFindings(w io.Writer, findings []conflict.Finding) {
	for _, f := range findings {
		fmt.Fprintf(w, "%s %s\n", ui.RenderSeverity(f.Severity, "["+f.Code+"]"), f.Message)
	}
}

func printReminderResult(w io.Writer, res *session.ReminderResult) {
	var p model.ReminderPayload
	_ = res.Reminder.Decode(&p)
	fmt.Fprintf(w, "Scheduled %s at %s (%s) as #%d\n", p.Medication, p.Time, p.Frequency, res.Reminder.ID)
	printFindings(w, res.Findings)
	for _, f := range res.Flags {
		fmt.Fprintln(w, ui.RenderMuted(fmt.Sprintf("flag recorded as #%d", f.ID)))
	}
}

func printEventTable(w io.Writer, events []*model.Event) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tTIMESTAMP\tSUMMARY")
	for _, e := range events {
		summary := engine.Bullet(e)
		if len(summary) > 60 {
			summary = summary[:57] + "..."
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.Type, e.Timestamp.Format("2006-01-02 15:04"), summary)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d events\n", len(events))
}

func printEventDetail(w io.Writer, e *model.Event) error {
	fmt.Fprintf(w, "ID:          %d\n", e.ID)
	fmt.Fprintf(w, "Type:        %s\n", e.Type)
	fmt.Fprintf(w, "Timestamp:   %s\n", e.Timestamp.Format("2006-01-02 15:04:05"))
	if len(e.Keywords) > 0 {
		fmt.Fprintf(w, "Keywords:    %s\n", strings.Join(e.Keywords, ", "))
	}
	if e.Supersedes != 0 {
		fmt.Fprintf(w, "Supersedes:  #%d\n", e.Supersedes)
	}

	data, err := yaml.Marshal(e.Fields())
	if err != nil {
		return fmt.Errorf("encoding payload of event %d: %w", e.ID, err)
	}
	fmt.Fprintln(w, "Payload:")
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		fmt.Fprintln(w, "  "+line)
	}
	return nil
}
