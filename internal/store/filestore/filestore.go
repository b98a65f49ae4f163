// Package filestore implements store.Store as a JSON-lines file that is loaded
// fully at open and appended to one line per event.
package filestore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/store"
)

// file is the subset of *os.File the store writes through.
type file interface {
	io.ReaderAt
	io.WriterAt
	Sync() error
	Truncate(size int64) error
	Close() error
}

// FileStore implements store.Store backed by a JSONL file. An empty path
// gives a purely in-memory store.
type FileStore struct {
	path   string
	mu     sync.RWMutex
	f      file
	size   int64
	events []*model.Event
	byID   map[int64]int
	nextID int64
	clock  func() time.Time
	logger *slog.Logger
	closed bool
}

// Compile-time check that FileStore implements store.Store.
var _ store.Store = (*FileStore)(nil)

// Option configures a FileStore.
type Option func(*FileStore)

// WithClock sets the clock used for event timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *FileStore) { s.clock = clock }
}

// WithLogger sets the logger used for load-time repairs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *FileStore) { s.logger = logger }
}

// Open loads the event file at path, creating it and its directory if
// needed. A trailing partial line left by an interrupted write is cut off
// and a complete last event missing its newline is kept and terminated; any
// other malformed line is an error and the file is left untouched.
func Open(path string, opts ...Option) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		byID:   make(map[int64]int),
		nextID: 1,
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if path == "" {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open event file: %w", err)
	}
	s.f = f

	if err := s.load(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	r := bufio.NewReader(io.NewSectionReader(s.f, 0, 1<<62))
	var offset int64
	lineNo := 0
	for {
		line, err := r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read event file: %w", err)
		}
		eof := err != nil
		lineNo++
		if len(bytes.TrimSpace(line)) == 0 {
			offset += int64(len(line))
			if eof {
				break
			}
			continue
		}

		var e model.Event
		if uerr := json.Unmarshal(line, &e); uerr != nil {
			if !eof {
				return fmt.Errorf("%s:%d: decode event: %w", s.path, lineNo, uerr)
			}
			// Torn final write: cut it off.
			s.logger.Warn("dropping partial trailing event line", "path", s.path, "offset", offset, "bytes", len(line))
			if terr := s.f.Truncate(offset); terr != nil {
				return fmt.Errorf("truncate partial line: %w", terr)
			}
			break
		}
		if err := s.admit(&e, lineNo); err != nil {
			return err
		}
		offset += int64(len(line))

		if eof {
			// Complete last event without a newline: terminate it so the
			// next append starts on its own line.
			if _, werr := s.f.WriteAt([]byte{'\n'}, offset); werr != nil {
				return fmt.Errorf("terminate last event line: %w", werr)
			}
			offset++
			break
		}
	}
	s.size = offset
	return nil
}

// admit indexes one decoded event read from line lineNo of the file.
func (s *FileStore) admit(e *model.Event, lineNo int) error {
	if e.ID < s.nextID {
		return fmt.Errorf("%s:%d: event id %d is not increasing", s.path, lineNo, e.ID)
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("%s:%d: unknown event type %q", s.path, lineNo, e.Type)
	}
	e.Keywords = model.DeriveKeywords(e.Type, e.Payload)

	s.byID[e.ID] = len(s.events)
	s.events = append(s.events, e)
	s.nextID = e.ID + 1
	return nil
}

// Append implements store.Appender. The append-validate-persist sequence runs
// under the write lock, so concurrent appends never interleave and readers
// never observe a half-written event.
func (s *FileStore) Append(ctx context.Context, t model.EventType, payload json.RawMessage, opts ...store.AppendOption) (*model.Event, error) {
	e, err := store.Prepare(t, payload, opts...)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, store.ErrClosed
	}
	if e.Supersedes != 0 {
		if _, ok := s.byID[e.Supersedes]; !ok {
			return nil, store.UnknownSupersedes(e.Supersedes)
		}
	}

	e.ID = s.nextID
	e.Timestamp = s.clock().UTC()

	if s.f != nil {
		if err := s.persist(e); err != nil {
			return nil, &store.PersistenceError{Op: "append event", Err: err}
		}
	}

	s.byID[e.ID] = len(s.events)
	s.events = append(s.events, e)
	s.nextID++
	return e.Clone(), nil
}

// persist writes one line and fsyncs it. On failure the file is cut back to
// its previous size so no partial record remains.
func (s *FileStore) persist(e *model.Event) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	line = append(line, '\n')

	if _, err := s.f.WriteAt(line, s.size); err != nil {
		s.rollback()
		return fmt.Errorf("write event: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		s.rollback()
		return fmt.Errorf("sync event file: %w", err)
	}
	s.size += int64(len(line))
	return nil
}

func (s *FileStore) rollback() {
	if err := s.f.Truncate(s.size); err != nil {
		s.logger.Error("truncate after failed append", "path", s.path, "size", s.size, "err", err)
	}
}

// All implements store.Reader.
func (s *FileStore) All(ctx context.Context) ([]*model.Event, error) {
	return s.filter(ctx, func(*model.Event) bool { return true })
}

// ByType implements store.Reader.
func (s *FileStore) ByType(ctx context.Context, t model.EventType) ([]*model.Event, error) {
	return s.filter(ctx, func(e *model.Event) bool { return e.Type == t })
}

func (s *FileStore) filter(ctx context.Context, keep func(*model.Event) bool) ([]*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	out := make([]*model.Event, 0, len(s.events))
	for _, e := range s.events {
		if keep(e) {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

// Get implements store.Reader.
func (s *FileStore) Get(ctx context.Context, id int64) (*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	i, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("event %d: %w", id, model.ErrNotFound)
	}
	return s.events[i].Clone(), nil
}

// Len returns the number of stored events.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Close flushes and closes the backing file. Closing twice is a no-op.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.f == nil {
		return nil
	}
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return fmt.Errorf("sync event file: %w", err)
	}
	return s.f.Close()
}
