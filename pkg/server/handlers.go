package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/opencivic/ask311/pkg/metrics"
)

// ChatRequest is the incoming question.
type ChatRequest struct {
	Question string `json:"question"`
}

// ChatResponse is the full pipeline result returned to the client.
type ChatResponse struct {
	AnswerText string           `json:"answer_text"`
	SQL        string           `json:"sql"`
	Columns    []string         `json:"columns"`
	Rows       []map[string]any `json:"rows"`
	Error      string           `json:"error,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		metrics.ChatRequestsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	res, err := s.cfg.Pipeline.Run(r.Context(), req.Question)
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("invalid").Inc()
		s.log.Error("server: chat request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	outcome := "ok"
	if res.Err != "" {
		outcome = "degraded"
	}
	metrics.ChatRequestsTotal.WithLabelValues(outcome).Inc()
	metrics.ChatRequestDuration.Observe(time.Since(start).Seconds())
	metrics.SQLRepairsTotal.Add(float64(res.Repairs))

	writeJSON(w, http.StatusOK, ChatResponse{
		AnswerText: res.AnswerText,
		SQL:        res.SQL,
		Columns:    res.Columns,
		Rows:       res.Rows,
		Error:      res.Err,
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	sc, err := s.cfg.Schema.FetchSchema(r.Context())
	if err != nil {
		s.log.Error("server: schema fetch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load schema")
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.ready(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "reason": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
