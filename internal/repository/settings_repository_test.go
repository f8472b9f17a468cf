package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admitcast/internal/models"
)

func TestSettingsRepository_Load(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)

	rows := sqlmock.NewRows([]string{
		"default_country_code", "send_interval_secs", "enable_jitter",
		"retry_attempts", "retry_backoff_ms", "updated_at",
	}).AddRow("91", 8, false, 3, 4000, time.Now())

	mock.ExpectQuery("SELECT (.+) FROM broadcast_settings").
		WillReturnRows(rows)

	settings, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "91", settings.DefaultCountryCode)
	assert.Equal(t, 8, settings.SendIntervalSecs)
	assert.False(t, settings.EnableJitter)
	assert.Equal(t, 3, settings.RetryAttempts)
	assert.Equal(t, 4000, settings.RetryBackoffMs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepository_Load_NoRowFallsBackToDefaults(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM broadcast_settings").
		WillReturnRows(sqlmock.NewRows([]string{
			"default_country_code", "send_interval_secs", "enable_jitter",
			"retry_attempts", "retry_backoff_ms", "updated_at",
		}))

	settings, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), *settings)
}

func TestSettingsRepository_Load_ClampsStoredValues(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)

	// A hand-edited row with out-of-range values must not wedge the engine.
	rows := sqlmock.NewRows([]string{
		"default_country_code", "send_interval_secs", "enable_jitter",
		"retry_attempts", "retry_backoff_ms", "updated_at",
	}).AddRow("91", 1, true, 99, 50, time.Now())

	mock.ExpectQuery("SELECT (.+) FROM broadcast_settings").
		WillReturnRows(rows)

	settings, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.MinSendIntervalSecs, settings.SendIntervalSecs)
	assert.Equal(t, models.MaxRetryAttempts, settings.RetryAttempts)
	assert.Equal(t, models.MinRetryBackoffMs, settings.RetryBackoffMs)
}

func TestSettingsRepository_Save(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)

	mock.ExpectExec("INSERT INTO broadcast_settings").
		WithArgs("91", 10, true, 2, 3000).
		WillReturnResult(sqlmock.NewResult(0, 1))

	settings := &models.Settings{
		DefaultCountryCode: "91",
		SendIntervalSecs:   10,
		EnableJitter:       true,
		RetryAttempts:      2,
		RetryBackoffMs:     3000,
	}
	require.NoError(t, repo.Save(context.Background(), settings))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepository_Save_ClampsBeforeWrite(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)

	// Out-of-range input is clamped, then the clamped row is persisted.
	mock.ExpectExec("INSERT INTO broadcast_settings").
		WithArgs("91", models.MaxSendIntervalSecs, false, models.MaxRetryAttempts, models.MinRetryBackoffMs).
		WillReturnResult(sqlmock.NewResult(0, 1))

	settings := &models.Settings{
		SendIntervalSecs: 500,
		RetryAttempts:    50,
		RetryBackoffMs:   1,
	}
	require.NoError(t, repo.Save(context.Background(), settings))
	assert.NoError(t, mock.ExpectationsWereMet())
}
