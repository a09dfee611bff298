package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gpio-remote-core/internal/bridges/gpio"
)

// healthResponse is returned by GET /health.
type healthResponse struct {
	Status        string                `json:"status"`
	Version       string                `json:"version"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	MQTTConnected bool                  `json:"mqtt_connected"`
	ItemsManaged  int                   `json:"items_managed"`
	Connections   gpio.ConnectionCounts `json:"connections"`
}

// commandRequest is the body of POST /items/{item}/command.
type commandRequest struct {
	ID      string `json:"id"`
	Command any    `json:"command"`
}

// commandResponse reports an accepted command.
type commandResponse struct {
	CommandID string         `json:"command_id"`
	Item      string         `json:"item"`
	Status    gpio.AckStatus `json:"status"`
	Event     gpio.PinEvent  `json:"event"`
}

// handleHealth returns the bridge status. Degraded is still a 200; the
// body says why.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	m := s.bridge.GetMetrics()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        m.Status,
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		MQTTConnected: m.MQTTConnected,
		ItemsManaged:  m.ItemsManaged,
		Connections:   m.Connections,
	})
}

// handleListConnections returns the connection table, sorted by endpoint.
func (s *Server) handleListConnections(w http.ResponseWriter, _ *http.Request) {
	conns := s.bridge.Connections()
	writeJSON(w, http.StatusOK, map[string]any{
		"connections": conns,
		"counts":      gpio.CountConnections(conns),
	})
}

// handleListItems returns every binding with its cached values.
func (s *Server) handleListItems(w http.ResponseWriter, _ *http.Request) {
	items := s.bridge.Items()
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item := chi.URLParam(r, "item")
	snap, ok := s.bridge.Item(item)
	if !ok {
		writeNotFound(w, "item not configured: "+item)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleItemCommand runs a command through the same pipeline as the MQTT
// command topic. The token subject becomes the audit source.
func (s *Server) handleItemCommand(w http.ResponseWriter, r *http.Request) {
	item := chi.URLParam(r, "item")

	var req commandRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeBadRequest(w, "request body too large")
			return
		}
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == nil {
		writeBadRequest(w, "command is required")
		return
	}

	cmd := gpio.CommandMessage{
		ID:      req.ID,
		Command: req.Command,
		Source:  "api",
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if sub := subjectFromContext(r.Context()); sub != "" {
		cmd.Source = "api:" + sub
	}

	ev, err := s.bridge.HandleCommand(r.Context(), item, cmd)
	if err != nil {
		s.logger.Warn("api command failed",
			"item", item,
			"command_id", cmd.ID,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, commandResponse{
		CommandID: cmd.ID,
		Item:      item,
		Status:    gpio.AckAccepted,
		Event:     ev,
	})
}
