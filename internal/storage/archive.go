package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
)

// ErrNotFound reports a run id absent from the archive.
var ErrNotFound = errors.New("run not found")

// ArchiveConfig configures the run archive.
type ArchiveConfig struct {
	Enabled bool          // persist reports at all
	DBPath  string        // SQLite file location
	MaxAge  time.Duration // retention window (default: 30 days)
}

// DefaultArchiveConfig returns the default archive settings.
func DefaultArchiveConfig() *ArchiveConfig {
	homeDir, _ := os.UserHomeDir()
	return &ArchiveConfig{
		Enabled: true,
		DBPath:  filepath.Join(homeDir, ".hpa-verify", "runs.db"),
		MaxAge:  30 * 24 * time.Hour,
	}
}

// RunSummary is one archive row without the full report payload.
type RunSummary struct {
	RunID      string         `json:"runId"`
	Namespace  string         `json:"namespace"`
	Autoscaler string         `json:"autoscaler"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Verdict    models.Verdict `json:"verdict"`
	Violations int            `json:"violations"`
}

// Store archives finished run reports in SQLite. A disabled store
// accepts every call as a no-op so callers need no special casing.
type Store struct {
	config *ArchiveConfig
	db     *sql.DB
}

// NewStore opens (or creates) the archive database.
func NewStore(config *ArchiveConfig) (*Store, error) {
	if config == nil {
		config = DefaultArchiveConfig()
	}

	if !config.Enabled {
		log.Info().Msg("run archive disabled")
		return &Store{config: config}, nil
	}

	if err := os.MkdirAll(filepath.Dir(config.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	// SQLite behaves best over a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{config: config, db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}

	log.Info().
		Str("db_path", config.DBPath).
		Dur("max_age", config.MaxAge).
		Msg("run archive ready")

	if err := s.Cleanup(); err != nil {
		log.Warn().Err(err).Msg("archive cleanup failed")
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		namespace TEXT NOT NULL,
		autoscaler TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		verdict TEXT NOT NULL,
		violations INTEGER NOT NULL,
		report TEXT NOT NULL,  -- JSON of the full RunReport
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_verdict ON runs(verdict);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO metadata (key, value, updated_at)
		VALUES ('schema_version', '1', CURRENT_TIMESTAMP)
	`)
	return err
}

// SaveReport archives one report. Saving the same run id again
// replaces the stored row.
func (s *Store) SaveReport(report models.RunReport) error {
	if !s.config.Enabled || s.db == nil {
		return nil
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO runs (run_id, namespace, autoscaler, started_at, finished_at, verdict, violations, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		report.Target.Namespace,
		report.Target.Autoscaler,
		report.StartedAt,
		report.FinishedAt,
		string(report.Verdict),
		len(report.Violations),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	log.Debug().Str("run_id", report.RunID).Msg("report archived")
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	if !s.config.Enabled || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT run_id, namespace, autoscaler, started_at, finished_at, verdict, violations
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	summaries := make([]RunSummary, 0, limit)
	for rows.Next() {
		var sum RunSummary
		var verdict string
		if err := rows.Scan(&sum.RunID, &sum.Namespace, &sum.Autoscaler, &sum.StartedAt, &sum.FinishedAt, &verdict, &sum.Violations); err != nil {
			log.Warn().Err(err).Msg("failed to scan run row")
			continue
		}
		sum.Verdict = models.Verdict(verdict)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return summaries, nil
}

// GetRun loads one archived report by run id.
func (s *Store) GetRun(runID string) (*models.RunReport, error) {
	if !s.config.Enabled || s.db == nil {
		return nil, ErrNotFound
	}

	var data string
	err := s.db.QueryRow(`SELECT report FROM runs WHERE run_id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	var report models.RunReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// Cleanup removes runs older than the retention window.
func (s *Store) Cleanup() error {
	if !s.config.Enabled || s.db == nil {
		return nil
	}

	cutoff := time.Now().Add(-s.config.MaxAge)
	result, err := s.db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup runs: %w", err)
	}

	if removed, _ := result.RowsAffected(); removed > 0 {
		log.Info().
			Int64("removed", removed).
			Time("cutoff", cutoff).
			Msg("archive cleanup removed old runs")
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
