package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/thinkscotty/civicwire/internal/database"
	"github.com/thinkscotty/civicwire/internal/ingest"
	"github.com/thinkscotty/civicwire/internal/models"
)

type ingestResponse struct {
	OK bool `json:"ok"`
	ingest.Summary
}

type ingestFailure struct {
	Error string `json:"error"`
	RunID string `json:"runId,omitempty"`
}

// authorizeTrigger decides whether a request may start a run and how the run
// is attributed. Scheduler and cron-secret callers are cron runs; an admin
// session alone is a manual run.
func (s *Server) authorizeTrigger(r *http.Request) (ingest.Trigger, bool) {
	var trig ingest.Trigger

	user, hasSession := s.sessionUser(r)
	if hasSession {
		id := user.ID
		trig.ActorID = &id
	}

	if s.fromScheduler(r) || s.cronSecretValid(r) {
		trig.Origin = models.TriggerCron
		return trig, true
	}
	if hasSession && user.IsAdmin {
		trig.Origin = models.TriggerManual
		return trig, true
	}
	return ingest.Trigger{}, false
}

func (s *Server) handleDailyIngest(w http.ResponseWriter, r *http.Request) {
	trig, ok := s.authorizeTrigger(r)
	if !ok {
		jsonError(w, "Unauthorized job trigger.", http.StatusUnauthorized)
		return
	}

	// A run outlives its caller; the orchestrator bounds it with its own deadline.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		slog.Warn("Failed to clear write deadline for ingest request", "error", err)
	}
	sum, err := s.ingest.Run(context.WithoutCancel(r.Context()), trig)
	switch {
	case errors.Is(err, ingest.ErrRunInProgress):
		jsonError(w, err.Error(), http.StatusConflict)
	case err != nil:
		slog.Error("Ingest request failed", "run_id", sum.RunID, "error", err)
		jsonStatus(w, http.StatusInternalServerError, ingestFailure{Error: err.Error(), RunID: sum.RunID})
	default:
		jsonResponse(w, ingestResponse{OK: true, Summary: sum})
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), defaultRunsLimit, maxRunsLimit)

	runs, err := s.db.ListRuns(limit)
	if err != nil {
		slog.Error("API: failed to list ingest runs", "error", err)
		jsonError(w, "Failed to list ingest runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.IngestRun{}
	}
	jsonResponse(w, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.db.GetRun(r.PathValue("id"))
	if errors.Is(err, database.ErrNotFound) {
		jsonError(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("API: failed to get ingest run", "error", err)
		jsonError(w, "Failed to get ingest run", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, run)
}
