package engine

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/medbuddy/internal/conflict"
	"github.com/alfredjeanlab/medbuddy/internal/model"
)

// Apology opens every degraded answer.
const Apology = "Sorry, I can't reach the assistant right now, so I can't give you a full answer."

const memoryPreamble = "I found these saved notes related to your question:"

func memoryAnswer(events []*model.Event) string {
	return memoryPreamble + "\n\n" + Summarize(events)
}

func degradedAnswer(best *model.Event) string {
	if best == nil {
		return Apology + " I have no saved notes about this yet. If it is urgent, please contact your doctor or pharmacist."
	}
	return Apology + " The closest saved note I have is:\n" + Bullet(best)
}

// confirmation acknowledges an actionable query, followed by any conflict
// findings.
func (e *Engine) confirmation(c Classification, findings []conflict.Finding) string {
	var sb strings.Builder
	switch c.Intent {
	case IntentTook:
		when := "today"
		if c.Yesterday {
			when = "yesterday"
		}
		if c.Time != "" {
			fmt.Fprintf(&sb, "Noted: you took %s at %s %s.", c.Medication, c.Time, when)
		} else {
			fmt.Fprintf(&sb, "Noted: you took %s %s.", c.Medication, when)
		}
	case IntentRemind:
		freq := c.Frequency
		if freq == "" {
			freq = conflict.DefaultFrequency
		}
		fmt.Fprintf(&sb, "Reminder set: %s at %s, %s.", c.Medication, c.Time, freq)
	}
	for _, f := range findings {
		fmt.Fprintf(&sb, "\nHeads up (%s): %s.", f.Code, f.Message)
	}
	return sb.String()
}
