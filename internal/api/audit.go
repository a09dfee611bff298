package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gpio-remote-core/internal/audit"
)

// handleListCommands returns paginated command log entries, most recent first.
//
// Query parameters:
//   - item: filter by item
//   - outcome: filter by outcome (sent, rejected, dropped)
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.commands == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command log not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Item:    q.Get("item"),
		Outcome: audit.Outcome(q.Get("outcome")),
	}

	switch filter.Outcome {
	case "", audit.OutcomeSent, audit.OutcomeRejected, audit.OutcomeDropped:
	default:
		writeBadRequest(w, "outcome must be sent, rejected or dropped")
		return
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.commands.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list commands", "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
