package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/medbuddy/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEvent scans a single row into a model.Event.
// The row must contain columns in the order defined by eventColumns.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		payload    []byte
		keywords   pq.StringArray
		supersedes sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.Type, &e.Timestamp, &payload, &keywords, &supersedes); err != nil {
		return nil, err
	}
	e.Timestamp = e.Timestamp.UTC()
	e.Payload = json.RawMessage(payload)
	e.Supersedes = supersedes.Int64
	if len(keywords) > 0 {
		e.Keywords = []string(keywords)
	} else {
		e.Keywords = model.DeriveKeywords(e.Type, e.Payload)
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// nullInt64 converts an id to sql.NullInt64; zero is null.
func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
