package audit

import (
	"context"
	"encoding/json"

	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/store"
)

// auditedStore reports every append of the wrapped store.
type auditedStore struct {
	store.Store
	rec *Recorder
}

// WrapStore returns a store that records an audit entry for every Append.
// Reads pass straight through.
func WrapStore(s store.Store, rec *Recorder) store.Store {
	if rec == nil {
		return s
	}
	return &auditedStore{Store: s, rec: rec}
}

func (a *auditedStore) Append(ctx context.Context, t model.EventType, payload json.RawMessage, opts ...store.AppendOption) (*model.Event, error) {
	e, err := a.Store.Append(ctx, t, payload, opts...)
	if err != nil {
		a.rec.Record(ctx, ComponentStore, "append", OutcomeFailed, "type", string(t), "err", err)
		return nil, err
	}
	a.rec.Record(ctx, ComponentStore, "append", OutcomeOK, "type", string(t), "event_id", e.ID)
	return e, nil
}
