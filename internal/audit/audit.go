// Package audit reports structured records of what the assistant did:
// every decision-engine transition and every event-store append. Records
// go to one or more Publishers; publishing never blocks or fails the
// operation being audited.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TopicPrefix is the NATS subject prefix of every audit record.
const TopicPrefix = "medbuddy.audit"

// Components
const (
	ComponentEngine    = "decision_engine"
	ComponentStore     = "event_store"
	ComponentConflict  = "conflict_detector"
	ComponentIngest    = "advice_ingestor"
	ComponentDocuments = "document_ingestor"
	ComponentServer    = "server"
)

// Outcomes
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Record is one audit entry.
type Record struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Component string         `json:"component"`
	Action    string         `json:"action"`
	Outcome   string         `json:"outcome"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Topic returns the subject the record is published on,
// e.g. "medbuddy.audit.decision_engine.retrieving".
func (r Record) Topic() string {
	return TopicPrefix + "." + subjectToken(r.Component) + "." + subjectToken(r.Action)
}

// subjectToken makes s safe as a single NATS subject token.
func subjectToken(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, strings.ToLower(s))
	if s == "" {
		return "_"
	}
	return s
}

// Publisher is the interface for emitting audit records.
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
	Close() error
}

// Recorder stamps and publishes records on behalf of components. A nil
// *Recorder discards everything.
type Recorder struct {
	pub    Publisher
	clock  func() time.Time
	logger *slog.Logger
}

// NewRecorder returns a recorder publishing to pub.
func NewRecorder(pub Publisher, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{pub: pub, clock: time.Now, logger: logger}
}

// Record publishes one record. kv holds alternating keys and values, as with
// slog. Publish failures are logged and otherwise ignored.
func (r *Recorder) Record(ctx context.Context, component, action, outcome string, kv ...any) {
	if r == nil || r.pub == nil {
		return
	}
	rec := Record{
		ID:        uuid.NewString(),
		Timestamp: r.clock().UTC(),
		Component: component,
		Action:    action,
		Outcome:   outcome,
		Fields:    fieldsOf(kv),
	}
	if err := r.pub.Publish(ctx, rec); err != nil {
		r.logger.Warn("audit publish failed", "component", component, "action", action, "err", err)
	}
}

func fieldsOf(kv []any) map[string]any {
	if len(kv) == 0 {
		return nil
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			m[key] = nil
			break
		}
		v := kv[i+1]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		m[key] = v
	}
	return m
}
