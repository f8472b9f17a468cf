package repository

import (
	"context"
	"database/sql"

	"admitcast/internal/models"
)

// StudentRepository defines student record data access operations
type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id int) (*models.Student, error)
	GetByIDs(ctx context.Context, ids []int) ([]*models.Student, error)
	List(ctx context.Context, limit, offset int) ([]*models.Student, error)
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id int) error
}

// SettingsRepository persists the engine settings as a single flat
// record, rewritten whole on every update
type SettingsRepository interface {
	Load(ctx context.Context) (*models.Settings, error)
	Save(ctx context.Context, settings *models.Settings) error
}

// SendLogRepository is the append-only audit log of terminal item
// transitions, capped at a bounded retention count
type SendLogRepository interface {
	Append(ctx context.Context, entry models.SendLogEntry) error
	List(ctx context.Context, limit int) ([]*models.SendLogEntry, error)
	Prune(ctx context.Context, keep int) (int64, error)
}

// DB is a wrapper around *sql.DB to allow passing in transaction
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
