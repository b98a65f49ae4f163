// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// appendLockKey is the advisory lock taken by every append so ids are
// assigned in commit order across processes sharing one database.
const appendLockKey = 0x6d6564627564

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db    *sql.DB
	mu    sync.Mutex
	clock func() time.Time
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewWithDB(db), nil
}

// NewWithDB wraps an already-migrated database handle.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

// WithClock sets the clock that stamps appended events.
func (s *PostgresStore) WithClock(clock func() time.Time) *PostgresStore {
	s.clock = clock
	return s
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Append implements store.Appender. The insert runs in a transaction holding
// an advisory lock, so a failure at any point leaves the table unchanged.
func (s *PostgresStore) Append(ctx context.Context, t model.EventType, payload json.RawMessage, opts ...store.AppendOption) (*model.Event, error) {
	e, err := store.Prepare(t, payload, opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e.Timestamp = s.clock().UTC()
	err = s.runInTransaction(ctx, func(tx executor) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(appendLockKey)); err != nil {
			return fmt.Errorf("acquire append lock: %w", err)
		}
		if e.Supersedes != 0 {
			ok, err := queryEventExists(ctx, tx, e.Supersedes)
			if err != nil {
				return err
			}
			if !ok {
				return store.UnknownSupersedes(e.Supersedes)
			}
		}
		return queryInsertEvent(ctx, tx, e)
	})
	if err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &store.PersistenceError{Op: "append event", Err: err}
	}
	return e.Clone(), nil
}

// All implements store.Reader.
func (s *PostgresStore) All(ctx context.Context) ([]*model.Event, error) {
	return queryListEvents(ctx, s.db, "")
}

// ByType implements store.Reader.
func (s *PostgresStore) ByType(ctx context.Context, t model.EventType) ([]*model.Event, error) {
	return queryListEvents(ctx, s.db, t)
}

// Get implements store.Reader.
func (s *PostgresStore) Get(ctx context.Context, id int64) (*model.Event, error) {
	e, err := queryGetEvent(ctx, s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %d: %w", id, model.ErrNotFound)
	}
	return e, err
}

// runInTransaction begins a database transaction, calls fn with it, and
// commits on success or rolls back on error.
func (s *PostgresStore) runInTransaction(ctx context.Context, fn func(tx executor) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
