package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thinkscotty/civicwire/internal/ai"
	"github.com/thinkscotty/civicwire/internal/auth"
	"github.com/thinkscotty/civicwire/internal/config"
	"github.com/thinkscotty/civicwire/internal/database"
	"github.com/thinkscotty/civicwire/internal/feeds"
	"github.com/thinkscotty/civicwire/internal/ingest"
	"github.com/thinkscotty/civicwire/internal/models"
	"github.com/thinkscotty/civicwire/internal/scheduler"
	"github.com/thinkscotty/civicwire/internal/scraper"
	"github.com/thinkscotty/civicwire/internal/server"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// staleRunGrace is added to the pipeline deadline before a running ledger
// row is treated as abandoned.
const staleRunGrace = 5 * time.Minute

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to dotenv file (ignored if missing)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	runIngest := flag.Bool("ingest", false, "Run one ingestion and exit")
	checkSources := flag.Bool("check-sources", false, "Check feed source health and exit")
	genSecret := flag.Bool("gen-secret", false, "Print a random cron secret and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("civicwire %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	if *genSecret {
		token, err := auth.GenerateToken()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate secret: %s\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		os.Exit(0)
	}

	// Load configuration: YAML over defaults, then dotenv, then environment
	if err := config.LoadEnvFile(*envPath); err != nil {
		slog.Error("Failed to load env file", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		slog.Error("Invalid environment override", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	slog.Info("Starting civicwire", "version", version)

	// Initialize database
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("Database initialized", "path", cfg.Database.Path)

	// Initialize services
	provider, err := ai.NewProvider(cfg.Ingest.Provider, ai.Options{
		GeminiAPIKey:    cfg.Gemini.APIKey,
		GeminiModel:     cfg.Gemini.Model,
		GeminiBaseURL:   cfg.Gemini.BaseURL,
		DeepSeekAPIKey:  cfg.DeepSeek.APIKey,
		DeepSeekModel:   cfg.DeepSeek.Model,
		DeepSeekBaseURL: cfg.DeepSeek.BaseURL,
	})
	if err != nil {
		slog.Error("Failed to configure LLM provider", "error", err)
		os.Exit(1)
	}
	slog.Info("LLM provider selected", "provider", provider.Name(), "model", provider.Model())

	reader := feeds.NewReader()
	checker := scraper.New(reader)
	orch := ingest.New(db, reader, ai.NewAnalyzer(provider), ingest.Options{
		Provider:        provider.Name(),
		Sources:         feeds.Sources,
		ItemsPerSource:  cfg.Ingest.ItemsPerSource,
		BatchSize:       cfg.Ingest.BatchSize,
		FreshnessWindow: cfg.FreshnessWindow(),
		RetentionWindow: cfg.RetentionWindow(),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *checkSources {
		printJSON(checker.Check(ctx, feeds.Sources))
		return
	}

	// Runs older than any live run could be were left by a crashed process
	staleBefore := time.Now().Add(-(orch.MaxDuration() + staleRunGrace))
	if n, err := db.FailStaleRuns(staleBefore, "interrupted before completion"); err != nil {
		slog.Error("Failed to close stale ingest runs", "error", err)
	} else if n > 0 {
		slog.Warn("Closed stale ingest runs", "count", n)
	}

	if *runIngest {
		sum, err := orch.Run(ctx, ingest.Trigger{Origin: models.TriggerManual})
		printJSON(sum)
		if err != nil {
			slog.Error("Ingest failed", "run_id", sum.RunID, "error", err)
			db.Close()
			os.Exit(1)
		}
		return
	}

	sched := scheduler.New(orch, db, cfg.ScheduleInterval(), cfg.Ingest.RunOnStart)
	srv := server.New(cfg, db, orch, checker, feeds.Sources, version)

	// Start scheduler in background
	go sched.Run(ctx)

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down...")
		shutdownCtx, done := context.WithTimeout(context.Background(), 30*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
