package server

import (
	"math"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/medbuddy/internal/model"
)

// errBadLimit is the message for a limit parameter that is not a positive
// integer.
const errBadLimit = "limit must be a positive integer"

// parseLimit reads the limit query parameter, returning def when it is
// absent.
func parseLimit(r *http.Request, def int) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// writeEventPage writes events with total, the number of matches before the
// limit was applied.
func writeEventPage(w http.ResponseWriter, events []*model.Event, total int) {
	// Ensure events is never null in JSON output.
	if events == nil {
		events = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
		"total":  total,
	})
}

// handleListEvents handles GET /v1/events. With a limit only the newest
// events are returned, oldest first.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r, 0)
	if !ok {
		writeError(w, http.StatusBadRequest, errBadLimit)
		return
	}

	var t model.EventType
	if v := r.URL.Query().Get("type"); v != "" {
		parsed, err := model.ParseEventType(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		t = parsed
	}

	events, err := s.assistant.Events(r.Context(), t)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	total := len(events)
	if limit > 0 && limit < total {
		events = events[total-limit:]
	}
	writeEventPage(w, events, total)
}

// defaultAdherenceLimit is the number of doses GET /v1/adherence returns
// without a limit parameter.
const defaultAdherenceLimit = 5

// handleRecentAdherence handles GET /v1/adherence.
func (s *Server) handleRecentAdherence(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r, defaultAdherenceLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, errBadLimit)
		return
	}

	events, err := s.assistant.RecentAdherence(r.Context(), math.MaxInt)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeEventPage(w, events[:min(limit, len(events))], len(events))
}

// handleGetEvent handles GET /v1/events/{id}.
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}

	e, err := s.assistant.Event(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
