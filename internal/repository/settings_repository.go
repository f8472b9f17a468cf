package repository

import (
	"context"
	"database/sql"
	"fmt"

	"admitcast/internal/models"
)

type settingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// Load reads the settings record, falling back to defaults when none
// has been saved yet. Values are clamped into their allowed bounds.
func (r *settingsRepository) Load(ctx context.Context) (*models.Settings, error) {
	query := `
		SELECT default_country_code, send_interval_secs, enable_jitter,
			retry_attempts, retry_backoff_ms, updated_at
		FROM broadcast_settings
		WHERE id = 1
	`

	settings := &models.Settings{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&settings.DefaultCountryCode,
		&settings.SendIntervalSecs,
		&settings.EnableJitter,
		&settings.RetryAttempts,
		&settings.RetryBackoffMs,
		&settings.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		defaults := models.DefaultSettings()
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	settings.Clamp()
	return settings, nil
}

// Save rewrites the whole settings record. No partial-field persistence.
func (r *settingsRepository) Save(ctx context.Context, settings *models.Settings) error {
	settings.Clamp()

	query := `
		INSERT INTO broadcast_settings
			(id, default_country_code, send_interval_secs, enable_jitter, retry_attempts, retry_backoff_ms, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			default_country_code = EXCLUDED.default_country_code,
			send_interval_secs = EXCLUDED.send_interval_secs,
			enable_jitter = EXCLUDED.enable_jitter,
			retry_attempts = EXCLUDED.retry_attempts,
			retry_backoff_ms = EXCLUDED.retry_backoff_ms,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		settings.DefaultCountryCode,
		settings.SendIntervalSecs,
		settings.EnableJitter,
		settings.RetryAttempts,
		settings.RetryBackoffMs,
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}
