package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Treamyracle/INFOMEDIA/internal/agent"
	"github.com/Treamyracle/INFOMEDIA/internal/audit"
	"github.com/Treamyracle/INFOMEDIA/internal/ner"
	"github.com/Treamyracle/INFOMEDIA/internal/otel"
	"github.com/Treamyracle/INFOMEDIA/internal/redaction"
	"github.com/Treamyracle/INFOMEDIA/internal/requestctx"
)

const defaultAuditLimit = 50

// sessionFor prefers an id in the request body over the header-derived one.
// The returned context carries the effective id.
func sessionFor(w http.ResponseWriter, r *http.Request, bodyID string) (context.Context, string) {
	if id := strings.TrimSpace(bodyID); id != "" {
		w.Header().Set(SessionHeader, id)
		return requestctx.SetSessionID(r.Context(), id), id
	}
	return r.Context(), requestctx.SessionID(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if s.runner != nil {
		resp["sessions"] = s.runner.ActiveSessions()
	}
	writeJSON(w, http.StatusOK, resp)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	ctx, sessionID := sessionFor(w, r, req.SessionID)

	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()
	resp, err := s.runner.Chat(ctx, sessionID, req.Message)
	if errors.Is(err, agent.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	if err != nil {
		log.Error().Err(err).Func(otel.LogRequestFields(ctx)).Msg("chat_error")
		writeError(w, http.StatusInternalServerError, "internal", "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type redactRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

// redactedEntity is an entity as reported to API callers. Text is only set
// in debug mode.
type redactedEntity struct {
	Text     string  `json:"text,omitempty"`
	Label    string  `json:"label"`
	Score    float64 `json:"score"`
	Start    int     `json:"start"`
	End      int     `json:"end"`
	Redacted bool    `json:"redacted"`
	Skipped  string  `json:"skipped,omitempty"`
}

type redactResponse struct {
	SessionID   string           `json:"session_id"`
	Clean       string           `json:"clean"`
	Tags        []string         `json:"tags"`
	Entities    []redactedEntity `json:"entities"`
	Performance ner.Performance  `json:"performance"`
	Degraded    bool             `json:"degraded"`
	Debug       *redactDebug     `json:"debug,omitempty"`
}

type redactDebug struct {
	Original     string            `json:"original"`
	PatternClean string            `json:"pattern_clean"`
	Vault        map[string]string `json:"session_data"`
}

func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	var req redactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	ctx, sessionID := sessionFor(w, r, req.SessionID)

	res, sessionID := s.runner.Redact(ctx, sessionID, req.Text)
	debug := s.runner.DebugEnabled()
	out := redactResponse{
		SessionID:   sessionID,
		Clean:       res.Clean,
		Tags:        res.Tags(),
		Entities:    toRedactedEntities(res.Entities, debug),
		Performance: res.Performance,
		Degraded:    res.Degraded,
	}
	if debug {
		out.Debug = &redactDebug{
			Original:     res.Original,
			PatternClean: res.PatternClean,
			Vault:        s.runner.SessionSnapshot(sessionID),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func toRedactedEntities(in []redaction.Entity, withText bool) []redactedEntity {
	out := make([]redactedEntity, 0, len(in))
	for _, e := range in {
		re := redactedEntity{
			Label:    e.Label,
			Score:    e.Score,
			Start:    e.Start,
			End:      e.End,
			Redacted: e.Redacted,
			Skipped:  e.Skipped,
		}
		if withText {
			re.Text = e.Text
		}
		out = append(out, re)
	}
	return out
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.runner.EndSession(r.Context(), id) {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	events, err := s.auditStore.List(r.Context(), r.URL.Query().Get("session_id"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handleAuditGet(w http.ResponseWriter, r *http.Request) {
	ev, err := s.auditStore.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, audit.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ev)
}
