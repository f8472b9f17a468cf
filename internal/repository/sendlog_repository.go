package repository

import (
	"context"
	"database/sql"
	"fmt"

	"admitcast/internal/models"
)

type sendLogRepository struct {
	db *sql.DB
}

// NewSendLogRepository creates a new send log repository. It satisfies
// engine.Journal, so it can be wired directly into the dispatcher.
func NewSendLogRepository(db *sql.DB) SendLogRepository {
	return &sendLogRepository{db: db}
}

// Append records one terminal item transition
func (r *sendLogRepository) Append(ctx context.Context, entry models.SendLogEntry) error {
	query := `
		INSERT INTO send_log (timestamp, recipient_id, display_name, phone, status, message_hash, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		entry.Timestamp,
		entry.RecipientID,
		entry.DisplayName,
		entry.Phone,
		entry.Status,
		entry.MessageHash,
		entry.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to append send log entry: %w", err)
	}

	return nil
}

// List returns the most recent entries, newest first
func (r *sendLogRepository) List(ctx context.Context, limit int) ([]*models.SendLogEntry, error) {
	query := `
		SELECT id, timestamp, recipient_id, display_name, phone, status, message_hash, error
		FROM send_log
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list send log: %w", err)
	}
	defer rows.Close()

	entries := []*models.SendLogEntry{}
	for rows.Next() {
		entry := &models.SendLogEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Timestamp,
			&entry.RecipientID,
			&entry.DisplayName,
			&entry.Phone,
			&entry.Status,
			&entry.MessageHash,
			&entry.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan send log entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Prune drops the oldest entries beyond the retention cap and returns
// how many were deleted
func (r *sendLogRepository) Prune(ctx context.Context, keep int) (int64, error) {
	query := `
		DELETE FROM send_log
		WHERE id NOT IN (SELECT id FROM send_log ORDER BY id DESC LIMIT $1)
	`

	result, err := r.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune send log: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
