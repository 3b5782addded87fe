package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/psantana5/procwatch/pkg/models"
)

// SQLiteStore is a SQLite-based implementation of the data store
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store. The connection string enables
// WAL and a busy timeout; writes are serialized through a single connection
// to avoid SQLITE_BUSY under concurrent watch-loop event recording.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS targets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		executable_path TEXT NOT NULL,
		arguments TEXT,
		working_dir TEXT,
		check_interval_seconds INTEGER NOT NULL,
		restart_delay_seconds INTEGER NOT NULL,
		enabled BOOLEAN NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS restart_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_id TEXT NOT NULL,
		target_name TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		success BOOLEAN NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_restart_events_target ON restart_events(target_id, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveTarget inserts or updates a target definition
func (s *SQLiteStore) SaveTarget(t *models.Target) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO targets
		(id, name, executable_path, arguments, working_dir, check_interval_seconds,
		 restart_delay_seconds, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Name, t.ExecutablePath, t.Arguments, t.WorkingDir,
		int(t.CheckInterval/time.Second), int(t.RestartDelay/time.Second),
		t.Enabled(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save target: %w", err)
	}
	return nil
}

// GetTarget retrieves a target by ID
func (s *SQLiteStore) GetTarget(id string) (*models.Target, error) {
	row := s.db.QueryRow(`
		SELECT id, name, executable_path, arguments, working_dir,
		       check_interval_seconds, restart_delay_seconds, enabled
		FROM targets WHERE id = ?
	`, id)
	return scanTarget(row)
}

// GetAllTargets retrieves every persisted target definition
func (s *SQLiteStore) GetAllTargets() ([]*models.Target, error) {
	rows, err := s.db.Query(`
		SELECT id, name, executable_path, arguments, working_dir,
		       check_interval_seconds, restart_delay_seconds, enabled
		FROM targets ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var targets []*models.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// DeleteTarget removes a target and its restart history
func (s *SQLiteStore) DeleteTarget(id string) error {
	res, err := s.db.Exec(`DELETE FROM targets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete target: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = s.db.Exec(`DELETE FROM restart_events WHERE target_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete restart history: %w", err)
	}
	return nil
}

// RecordRestart appends a restart attempt outcome
func (s *SQLiteStore) RecordRestart(ev *models.RestartEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO restart_events (target_id, target_name, timestamp, success, error)
		VALUES (?, ?, ?, ?, ?)
	`, ev.TargetID, ev.TargetName, ev.Timestamp, ev.Success, ev.Error)
	if err != nil {
		return fmt.Errorf("failed to record restart event: %w", err)
	}
	return nil
}

// GetRestartHistory returns the most recent restart events for a target,
// newest first
func (s *SQLiteStore) GetRestartHistory(targetID string, limit int) ([]models.RestartEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, target_id, target_name, timestamp, success, error
		FROM restart_events WHERE target_id = ?
		ORDER BY timestamp DESC LIMIT ?
	`, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query restart history: %w", err)
	}
	defer rows.Close()

	var events []models.RestartEvent
	for rows.Next() {
		var ev models.RestartEvent
		var errText sql.NullString
		if err := rows.Scan(&ev.ID, &ev.TargetID, &ev.TargetName, &ev.Timestamp, &ev.Success, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan restart event: %w", err)
		}
		ev.Error = errText.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// HealthCheck verifies the database connection
func (s *SQLiteStore) HealthCheck() error {
	return s.db.Ping()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTarget(row rowScanner) (*models.Target, error) {
	var (
		id, name, path       string
		args, workdir        sql.NullString
		checkSecs, delaySecs int
		enabled              bool
	)
	err := row.Scan(&id, &name, &path, &args, &workdir, &checkSecs, &delaySecs, &enabled)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan target: %w", err)
	}
	return models.NewTarget(id, name, path, args.String, workdir.String,
		time.Duration(checkSecs)*time.Second, time.Duration(delaySecs)*time.Second, enabled), nil
}
