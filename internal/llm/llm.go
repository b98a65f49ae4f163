// Package llm is the external language-model collaborator: a Generator
// interface, HTTP clients for Gemini and OpenAI-compatible endpoints, an
// offline stand-in, and a rate-limited wrapper.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/medbuddy/internal/model"
)

// Kind classifies a generation failure.
type Kind string

const (
	KindTruncated   Kind = "TRUNCATED"
	KindMalformed   Kind = "MALFORMED"
	KindUnavailable Kind = "UNAVAILABLE"
)

// Error is the only error type a Generator returns.
type Error struct {
	Kind     Kind
	Provider string
	Msg      string
	// Partial holds whatever text arrived before a truncation.
	Partial string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the failure kind of err. Errors that are not *Error count
// as UNAVAILABLE.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnavailable
}

// Options tunes one generation call.
type Options struct {
	MaxOutputTokens int
	Temperature     float64
	// Instruction is an extra line added to the prompt.
	Instruction string
}

// DefaultMaxOutputTokens is the output budget of a normal call.
const DefaultMaxOutputTokens = 512

// DefaultOptions returns the options of a first attempt.
func DefaultOptions() Options {
	return Options{MaxOutputTokens: DefaultMaxOutputTokens, Temperature: 0.2}
}

// Strict derives the retry configuration from o: a larger output budget, a
// lower temperature and an instruction to stay brief, so a reply that was
// cut off the first time fits on the second.
func (o Options) Strict(maxOutputTokens int) Options {
	if maxOutputTokens <= o.MaxOutputTokens {
		maxOutputTokens = o.MaxOutputTokens * 2
	}
	return Options{
		MaxOutputTokens: maxOutputTokens,
		Temperature:     0,
		Instruction:     "Answer in at most three short sentences.",
	}
}

// Generator produces an answer to prompt grounded on contextEvents.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string, contextEvents []*model.Event, opts Options) (string, error)
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, prompt string, contextEvents []*model.Event, opts Options) (string, error)

// Name implements Generator.
func (f Func) Name() string { return "func" }

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, prompt string, contextEvents []*model.Event, opts Options) (string, error) {
	return f(ctx, prompt, contextEvents, opts)
}

const systemPreamble = `You are a medication buddy. Help the user with questions about their medications, reminders and doctor instructions.
You are not a doctor: do not diagnose, and suggest contacting a clinician for anything urgent.`

// BuildPrompt renders the full prompt text sent to a provider: preamble,
// optional instruction, the saved notes that ground the answer, and the
// question.
func BuildPrompt(query string, contextEvents []*model.Event, opts Options) string {
	var sb strings.Builder
	sb.WriteString(systemPreamble)
	sb.WriteString("\n")
	if opts.Instruction != "" {
		sb.WriteString(opts.Instruction)
		sb.WriteString("\n")
	}
	if len(contextEvents) > 0 {
		sb.WriteString("\nSaved notes (most relevant first):\n")
		for _, e := range contextEvents {
			fmt.Fprintf(&sb, "- [#%d %s %s] %s\n", e.ID, e.Type, e.Timestamp.UTC().Format(time.RFC3339), e.Payload)
		}
	} else {
		sb.WriteString("\nThere are no saved notes related to this question.\n")
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(strings.TrimSpace(query))
	sb.WriteString("\n")
	return sb.String()
}
