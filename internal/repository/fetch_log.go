package repository

import (
	"database/sql"
	"time"

	"trade_dashboard/internal/database"
	"trade_dashboard/internal/models"
)

// FetchLogRepository handles fetch log database operations.
type FetchLogRepository struct {
	db *database.DB
}

// NewFetchLogRepository creates a new FetchLogRepository.
func NewFetchLogRepository(db *database.DB) *FetchLogRepository {
	return &FetchLogRepository{db: db}
}

// Start creates a new entry with status "started" and returns its ID.
func (r *FetchLogRepository) Start(view string) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO fetch_log (view, status, started_at)
		VALUES (?, 'started', ?)
	`, view, time.Now())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// Complete marks a fetch as successful.
func (r *FetchLogRepository) Complete(id int64, records int) error {
	now := time.Now()
	_, err := r.db.Exec(`
		UPDATE fetch_log
		SET status = 'success', records = ?, completed_at = ?,
		    duration_ms = CAST((julianday(?) - julianday(started_at)) * 86400000 AS INTEGER)
		WHERE id = ?
	`, records, now, now, id)
	return err
}

// Fail marks a fetch as failed with an error message.
func (r *FetchLogRepository) Fail(id int64, errorMsg string) error {
	now := time.Now()
	_, err := r.db.Exec(`
		UPDATE fetch_log
		SET status = 'error', error_message = ?, completed_at = ?,
		    duration_ms = CAST((julianday(?) - julianday(started_at)) * 86400000 AS INTEGER)
		WHERE id = ?
	`, errorMsg, now, now, id)
	return err
}

// GetByID retrieves a fetch log entry by ID.
func (r *FetchLogRepository) GetByID(id int64) (*models.FetchLog, error) {
	row := r.db.QueryRow(`
		SELECT id, view, status, records, error_message, started_at, completed_at, duration_ms
		FROM fetch_log
		WHERE id = ?
	`, id)

	entry, err := scanFetchLog(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// List returns one page of entries, most recent first. An empty view
// pages through every view.
func (r *FetchLogRepository) List(view string, p Pagination) (Page[*models.FetchLog], error) {
	var total int64
	if err := r.db.QueryRow(`
		SELECT COUNT(*) FROM fetch_log WHERE ? = '' OR view = ?
	`, view, view).Scan(&total); err != nil {
		return Page[*models.FetchLog]{}, err
	}

	rows, err := r.db.Query(`
		SELECT id, view, status, records, error_message, started_at, completed_at, duration_ms
		FROM fetch_log
		WHERE ? = '' OR view = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, view, view, p.Limit, p.Offset)
	if err != nil {
		return Page[*models.FetchLog]{}, err
	}
	defer rows.Close()

	entries := make([]*models.FetchLog, 0, p.Limit)
	for rows.Next() {
		entry, err := scanFetchLog(rows.Scan)
		if err != nil {
			return Page[*models.FetchLog]{}, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return Page[*models.FetchLog]{}, err
	}
	return newPage(entries, total, p), nil
}

// DeleteOlderThan removes entries older than the given time.
func (r *FetchLogRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM fetch_log WHERE started_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// scanFetchLog scans a single row into a FetchLog.
func scanFetchLog(scan func(dest ...any) error) (*models.FetchLog, error) {
	entry := &models.FetchLog{}
	var errorMsg sql.NullString
	var completedAt sql.NullTime
	var durationMs sql.NullInt64

	err := scan(
		&entry.ID,
		&entry.View,
		&entry.Status,
		&entry.Records,
		&errorMsg,
		&entry.StartedAt,
		&completedAt,
		&durationMs,
	)
	if err != nil {
		return nil, err
	}

	if errorMsg.Valid {
		entry.ErrorMessage = errorMsg.String
	}
	if completedAt.Valid {
		entry.CompletedAt = &completedAt.Time
	}
	if durationMs.Valid {
		entry.DurationMs = durationMs.Int64
	}
	return entry, nil
}
