// Package actionstore records the droplet actions submitted by snapcycle.
//
// Storage is backed by the shared SQLite database at
// ~/.config/snapcycle/snapcycle.db (or the platform-equivalent path
// returned by os.UserConfigDir).
package actionstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nathanbeddoewebdev/snapcycle/internal/database"
)

// ActionRepository defines the persistence interface for action records.
type ActionRepository interface {
	// Save inserts or updates an action record. On insert (ID == 0), an
	// ID is assigned to the record.
	Save(record *ActionRecord) error

	// Get retrieves a single action record by ID, or nil if absent.
	Get(id int64) (*ActionRecord, error)

	// ListRecent returns the most recent n records, newest first.
	ListRecent(n int) ([]ActionRecord, error)

	// ListByRun returns the records of one run in submission order.
	ListByRun(runID string) ([]ActionRecord, error)

	// DeleteOlderThan removes finished records older than d.
	// Returns the number of records removed.
	DeleteOlderThan(d time.Duration) (int64, error)

	// Close releases database resources.
	Close() error
}

// SQLiteRepository implements ActionRepository backed by a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// Open creates or opens the action repository at the default path.
func Open() (*SQLiteRepository, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("actions: %w", err)
	}
	return OpenAt(path)
}

// OpenAt creates or opens a SQLite database at the given path.
// The parent directory is created if it does not exist.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("actions: %w", err)
	}

	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return r, nil
}

// migrate creates the actions table if it doesn't exist.
func (r *SQLiteRepository) migrate() error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS actions (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id           TEXT    NOT NULL DEFAULT '',
			operation_id     TEXT    NOT NULL DEFAULT '',
			provider         TEXT    NOT NULL,
			resource_id      TEXT    NOT NULL,
			resource_name    TEXT    NOT NULL DEFAULT '',
			action_type      TEXT    NOT NULL DEFAULT '',
			status           TEXT    NOT NULL DEFAULT 'running',
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			error_message    TEXT    NOT NULL DEFAULT '',
			created_at       TEXT    NOT NULL,
			updated_at       TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_actions_status ON actions(status);
		CREATE INDEX IF NOT EXISTS idx_actions_run ON actions(run_id);
	`
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("actions: migration failed: %w", err)
	}
	return nil
}

// Save inserts a new record (ID == 0) or updates an existing one.
func (r *SQLiteRepository) Save(record *ActionRecord) error {
	record.UpdatedAt = time.Now().UTC()

	if record.ID == 0 {
		if record.CreatedAt.IsZero() {
			record.CreatedAt = record.UpdatedAt
		}
		result, err := r.db.Exec(`
			INSERT INTO actions (run_id, operation_id, provider, resource_id, resource_name, action_type,
			                     status, duration_seconds, error_message, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.RunID, record.OperationID, record.Provider, record.ResourceID, record.ResourceName,
			record.ActionType, record.Status, record.DurationSeconds, record.ErrorMessage,
			record.CreatedAt.Format(time.RFC3339Nano), record.UpdatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("actions: insert failed: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("actions: failed to get last insert ID: %w", err)
		}
		record.ID = id
		return nil
	}

	result, err := r.db.Exec(`
		UPDATE actions SET run_id=?, operation_id=?, provider=?, resource_id=?, resource_name=?,
		       action_type=?, status=?, duration_seconds=?, error_message=?, updated_at=?
		WHERE id=?`,
		record.RunID, record.OperationID, record.Provider, record.ResourceID, record.ResourceName,
		record.ActionType, record.Status, record.DurationSeconds, record.ErrorMessage,
		record.UpdatedAt.Format(time.RFC3339Nano), record.ID,
	)
	if err != nil {
		return fmt.Errorf("actions: update failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("actions: action with ID %d not found", record.ID)
	}
	return nil
}

const selectColumns = `
	SELECT id, run_id, operation_id, provider, resource_id, resource_name, action_type,
	       status, duration_seconds, error_message, created_at, updated_at
	FROM actions`

// Get retrieves a single action record by ID.
func (r *SQLiteRepository) Get(id int64) (*ActionRecord, error) {
	rows, err := r.db.Query(selectColumns+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("actions: query failed: %w", err)
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// ListRecent returns the most recent n action records regardless of status.
func (r *SQLiteRepository) ListRecent(n int) ([]ActionRecord, error) {
	rows, err := r.db.Query(selectColumns+` ORDER BY created_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("actions: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// ListByRun returns every record of the given run, oldest first.
func (r *SQLiteRepository) ListByRun(runID string) ([]ActionRecord, error) {
	if runID == "" {
		return nil, errors.New("actions: run ID is required")
	}
	rows, err := r.db.Query(selectColumns+` WHERE run_id = ? ORDER BY created_at ASC, id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("actions: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// DeleteOlderThan removes finished records older than d.
func (r *SQLiteRepository) DeleteOlderThan(d time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-d).Format(time.RFC3339Nano)
	result, err := r.db.Exec(`
		DELETE FROM actions WHERE status != 'running' AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("actions: delete failed: %w", err)
	}
	return result.RowsAffected()
}

// Close releases database resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// scanRows scans multiple rows into ActionRecords.
func scanRows(rows *sql.Rows) ([]ActionRecord, error) {
	var records []ActionRecord
	for rows.Next() {
		var record ActionRecord
		var createdStr, updatedStr string
		err := rows.Scan(
			&record.ID, &record.RunID, &record.OperationID, &record.Provider, &record.ResourceID,
			&record.ResourceName, &record.ActionType, &record.Status, &record.DurationSeconds,
			&record.ErrorMessage, &createdStr, &updatedStr,
		)
		if err != nil {
			return nil, fmt.Errorf("actions: scan failed: %w", err)
		}
		record.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		record.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
		records = append(records, record)
	}
	return records, rows.Err()
}
