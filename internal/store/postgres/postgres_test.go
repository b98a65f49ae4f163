package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

// eventRowColumns is the column list for scanEvent results.
var eventRowColumns = []string{"id", "type", "created_at", "payload", "keywords", "supersedes"}

var testNow = time.Date(2025, 11, 28, 8, 1, 0, 0, time.UTC)

func newTestStore(db *sql.DB) *PostgresStore {
	s := NewWithDB(db)
	s.clock = func() time.Time { return testNow }
	return s
}

func TestScanHelpers(t *testing.T) {
	if nullInt64(0).Valid {
		t.Error("nullInt64(0) should be invalid")
	}
	if n := nullInt64(7); !n.Valid || n.Int64 != 7 {
		t.Errorf("nullInt64(7) = %v", n)
	}
	if jsonbBytes(nil) != nil {
		t.Error("jsonbBytes(nil) should be nil")
	}
	if string(jsonbBytes(json.RawMessage(`{"a":1}`))) != `{"a":1}` {
		t.Error("jsonbBytes should pass bytes through")
	}
}

func TestAppend(t *testing.T) {
	db, mock := newMockDB(t)
	s := newTestStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock\\(\\$1\\)").WithArgs(int64(appendLockKey)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO events").
		WithArgs("reminder", testNow, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))
	mock.ExpectCommit()

	payload := model.MustPayload(model.ReminderPayload{Medication: "Metformin 500mg", Time: "08:00"})
	e, err := s.Append(context.Background(), model.TypeReminder, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID != 12 || !e.Timestamp.Equal(testNow) {
		t.Fatalf("got id=%d ts=%v", e.ID, e.Timestamp)
	}
}

func TestAppend_ValidationSkipsDatabase(t *testing.T) {
	db, _ := newMockDB(t)
	s := newTestStore(db)

	_, err := s.Append(context.Background(), model.TypeReminder, json.RawMessage(`{}`))
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *model.ValidationError, got %v", err)
	}
}

func TestAppend_UnknownSupersedes(t *testing.T) {
	db, mock := newMockDB(t)
	s := newTestStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	payload := model.MustPayload(model.ReminderPayload{Medication: "Aspirin", Time: "21:00"})
	_, err := s.Append(context.Background(), model.TypeReminder, payload, store.WithSupersedes(99))
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *model.ValidationError, got %v", err)
	}
}

func TestAppend_InsertFailureIsPersistenceError(t *testing.T) {
	db, mock := newMockDB(t)
	s := newTestStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO events").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	payload := model.MustPayload(model.AdherencePayload{Medication: "Aspirin"})
	_, err := s.Append(context.Background(), model.TypeAdherenceLog, payload)
	var pe *store.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *store.PersistenceError, got %v", err)
	}
}

func TestAppend_CommitFailure(t *testing.T) {
	db, mock := newMockDB(t)
	s := newTestStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO events").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	payload := model.MustPayload(model.AdherencePayload{Medication: "Aspirin"})
	e, err := s.Append(context.Background(), model.TypeAdherenceLog, payload)
	if e != nil {
		t.Fatalf("expected no event on commit failure, got %+v", e)
	}
	var pe *store.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *store.PersistenceError, got %v", err)
	}
}

func TestQueryGetEvent(t *testing.T) {
	db, mock := newMockDB(t)
	rows := sqlmock.NewRows(eventRowColumns).AddRow(
		int64(3), "adherence_log", testNow, []byte(`{"medication":"Metformin 500mg","pharmacy":"x"}`), "{adherence,metformin}", nil,
	)
	mock.ExpectQuery("SELECT .+ FROM events WHERE id = \\$1").WithArgs(int64(3)).WillReturnRows(rows)

	e, err := queryGetEvent(context.Background(), db, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Type != model.TypeAdherenceLog || e.Medication() != "Metformin 500mg" {
		t.Fatalf("got %+v", e)
	}
	if len(e.Keywords) != 2 || e.Keywords[1] != "metformin" {
		t.Fatalf("keywords = %v", e.Keywords)
	}
	if e.Fields()["pharmacy"] != "x" {
		t.Fatalf("unknown payload field lost: %s", e.Payload)
	}
}

func TestGet_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	s := newTestStore(db)
	mock.ExpectQuery("SELECT .+ FROM events WHERE id = \\$1").WithArgs(int64(404)).WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), 404)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected model.ErrNotFound, got %v", err)
	}
}

func TestQueryListEvents_ByType(t *testing.T) {
	db, mock := newMockDB(t)
	rows := sqlmock.NewRows(eventRowColumns).
		AddRow(int64(1), "reminder", testNow, []byte(`{"medication":"A","time":"08:00"}`), "{}", nil).
		AddRow(int64(4), "reminder", testNow, []byte(`{"medication":"A","time":"09:00"}`), "{a,remind}", int64(1))
	mock.ExpectQuery("SELECT .+ FROM events WHERE type = \\$1 ORDER BY id").WithArgs("reminder").WillReturnRows(rows)

	events, err := queryListEvents(context.Background(), db, model.TypeReminder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	// Empty stored keywords are re-derived.
	if len(events[0].Keywords) == 0 {
		t.Error("expected derived keywords for first event")
	}
	if events[1].Supersedes != 1 {
		t.Errorf("supersedes = %d, want 1", events[1].Supersedes)
	}
}

func TestQueryListEvents_All(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM events ORDER BY id").WillReturnRows(sqlmock.NewRows(eventRowColumns))

	events, err := queryListEvents(context.Background(), db, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected up and down migrations, got %d files", len(entries))
	}
}
