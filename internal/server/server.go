package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/thinkscotty/civicwire/internal/config"
	"github.com/thinkscotty/civicwire/internal/database"
	"github.com/thinkscotty/civicwire/internal/ingest"
	"github.com/thinkscotty/civicwire/internal/models"
	"github.com/thinkscotty/civicwire/internal/scraper"
)

const sessionCookie = "civicwire_session"

// Ingester runs one ingestion. *ingest.Orchestrator satisfies it.
type Ingester interface {
	Run(ctx context.Context, trig ingest.Trigger) (ingest.Summary, error)
}

// SourceChecker reports feed source health. *scraper.Checker satisfies it.
type SourceChecker interface {
	Check(ctx context.Context, sources []models.FeedSource) []scraper.Report
}

type Server struct {
	cfg      config.Config
	db       *database.DB
	ingest   Ingester
	checker  SourceChecker
	sources  []models.FeedSource
	hasUsers atomic.Bool
	version  string
	httpSrv  *http.Server
}

func New(cfg config.Config, db *database.DB, ing Ingester, checker SourceChecker, sources []models.FeedSource, version string) *Server {
	s := &Server{
		cfg:     cfg,
		db:      db,
		ingest:  ing,
		checker: checker,
		sources: sources,
		version: version,
	}
	if count, _ := db.UserCount(); count > 0 {
		s.hasUsers.Store(true)
	}
	return s
}

// Handler returns the routed handler wrapped in logging and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)
	return recoveryMiddleware(loggingMiddleware(mux))
}

// Start sets up routes and starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	slog.Info("Starting server", "addr", addr)
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Public read API
	mux.HandleFunc("GET /api/news", s.handleNews)
	mux.HandleFunc("GET /api/sources", s.handleSources)

	// Operator accounts
	mux.HandleFunc("POST /api/setup", s.handleSetup)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)

	// Ingestion trigger authorizes itself: scheduler header, cron secret or admin session
	mux.HandleFunc("POST /api/jobs/daily-ingest", s.handleDailyIngest)

	// Operator API: admin session or cron secret
	mux.Handle("GET /api/ingest/runs", s.requireOperator(http.HandlerFunc(s.handleListRuns)))
	mux.Handle("GET /api/ingest/runs/{id}", s.requireOperator(http.HandlerFunc(s.handleGetRun)))
	mux.Handle("POST /api/sources/check", s.requireOperator(http.HandlerFunc(s.handleCheckSources)))
}
