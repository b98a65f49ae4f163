package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/medbuddy/internal/model"
)

// eventColumns is the column list used for SELECT statements on the events table.
const eventColumns = `id, type, created_at, payload, keywords, supersedes`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queryInsertEvent inserts e and fills in the id assigned by the database.
func queryInsertEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (type, created_at, payload, keywords, supersedes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		string(e.Type),
		e.Timestamp,
		jsonbBytes(e.Payload),
		pq.Array(e.Keywords),
		nullInt64(e.Supersedes),
	).Scan(&e.ID)
}

func queryEventExists(ctx context.Context, db executor, id int64) (bool, error) {
	var ok bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func queryGetEvent(ctx context.Context, db executor, id int64) (*model.Event, error) {
	row := db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	return scanEvent(row)
}

// queryListEvents returns events in id order, optionally restricted to one type.
func queryListEvents(ctx context.Context, db executor, t model.EventType) ([]*model.Event, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if t == "" {
		rows, err = db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY id`)
	} else {
		rows, err = db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE type = $1 ORDER BY id`, string(t))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}
