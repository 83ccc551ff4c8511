package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/thinkscotty/civicwire/internal/models"
)

var (
	// ErrRunActive is returned by CreateRun while another run is still running.
	ErrRunActive = errors.New("another ingest run is already running")
	// ErrRunNotRunning is returned when closing a run that is already closed.
	ErrRunNotRunning = errors.New("ingest run is not running")
)

// CreateRun inserts a run in the running state and fills in its ID and StartedAt.
func (db *DB) CreateRun(run *models.IngestRun) error {
	run.ID = uuid.NewString()
	run.Status = models.RunRunning
	run.StartedAt = time.Now().UTC()
	run.FinishedAt = nil

	_, err := db.conn.Exec(`
		INSERT INTO ingest_runs (id, status, provider, triggered_by, actor_id, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), run.Provider, string(run.TriggeredBy),
		run.ActorID, formatTime(run.StartedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRunActive
		}
		return fmt.Errorf("create ingest run: %w", err)
	}
	return nil
}

// FinishRun writes the terminal status and counters of a run. It only
// succeeds once per run.
func (db *DB) FinishRun(run *models.IngestRun) error {
	if run.Status != models.RunSuccess && run.Status != models.RunFailed {
		return fmt.Errorf("finish ingest run: invalid terminal status %q", run.Status)
	}
	finished := time.Now().UTC()

	var errMsg sql.NullString
	if run.ErrorMessage != "" {
		errMsg = sql.NullString{String: run.ErrorMessage, Valid: true}
	}

	result, err := db.conn.Exec(`
		UPDATE ingest_runs
		SET status = ?, finished_at = ?, processed = ?, created = ?, skipped = ?, error_message = ?
		WHERE id = ? AND status = 'running'`,
		string(run.Status), formatTime(finished), run.Processed, run.Created, run.Skipped, errMsg, run.ID)
	if err != nil {
		return fmt.Errorf("finish ingest run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish ingest run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish ingest run %s: %w", run.ID, ErrRunNotRunning)
	}
	run.FinishedAt = &finished
	return nil
}

// FailStaleRuns closes runs left in the running state by a crashed process.
// Only runs started before startedBefore are touched; callers pass a bound
// that no live run can exceed, so a run owned by another process survives.
func (db *DB) FailStaleRuns(startedBefore time.Time, reason string) (int64, error) {
	result, err := db.conn.Exec(`
		UPDATE ingest_runs SET status = 'failed', finished_at = ?, error_message = ?
		WHERE status = 'running' AND started_at < ?`,
		formatTime(time.Now()), reason, formatTime(startedBefore))
	if err != nil {
		return 0, fmt.Errorf("fail stale runs: %w", err)
	}
	return result.RowsAffected()
}

func (db *DB) GetRun(id string) (models.IngestRun, error) {
	row := db.conn.QueryRow(`
		SELECT id, status, provider, triggered_by, actor_id, started_at, finished_at,
		       processed, created, skipped, error_message
		FROM ingest_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return run, ErrNotFound
	}
	return run, err
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(limit int) ([]models.IngestRun, error) {
	rows, err := db.conn.Query(`
		SELECT id, status, provider, triggered_by, actor_id, started_at, finished_at,
		       processed, created, skipped, error_message
		FROM ingest_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.IngestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (models.IngestRun, error) {
	var run models.IngestRun
	var status, triggeredBy, startedAt string
	var actorID, finishedAt, errMsg sql.NullString

	if err := row.Scan(
		&run.ID, &status, &run.Provider, &triggeredBy, &actorID, &startedAt, &finishedAt,
		&run.Processed, &run.Created, &run.Skipped, &errMsg,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scan ingest run: %w", err)
	}

	run.Status = models.RunStatus(status)
	run.TriggeredBy = models.TriggerOrigin(triggeredBy)
	run.StartedAt, _ = parseTime(startedAt)
	if actorID.Valid {
		id := actorID.String
		run.ActorID = &id
	}
	if finishedAt.Valid {
		parsed, _ := parseTime(finishedAt.String)
		run.FinishedAt = &parsed
	}
	run.ErrorMessage = errMsg.String
	return run, nil
}
