package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// JSONLPublisher appends one JSON object per record to a file.
type JSONLPublisher struct {
	mu sync.Mutex
	f  *os.File
}

// NewJSONLPublisher opens (or creates) the audit file at path for appending.
func NewJSONLPublisher(path string) (*JSONLPublisher, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return &JSONLPublisher{f: f}, nil
}

func (p *JSONLPublisher) Publish(ctx context.Context, rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling audit record: %w", err)
	}
	line = append(line, '\n')

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = p.f.Write(line)
	return err
}

func (p *JSONLPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.f.Close()
}

// LogPublisher writes records to a slog logger at debug level.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p *LogPublisher) Publish(ctx context.Context, rec Record) error {
	attrs := []any{"component", rec.Component, "action", rec.Action, "outcome", rec.Outcome}
	for k, v := range rec.Fields {
		attrs = append(attrs, k, v)
	}
	p.Logger.DebugContext(ctx, "audit", attrs...)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}

// Multi fans a record out to several publishers. Every publisher is tried;
// failures are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, rec Record) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
