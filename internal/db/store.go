// exposes a Store interface that is passed to API and scheduler code
package db

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/trackerplugins/scheduled/internal/model"
)

type Store interface {
	// schedule CRUD
	CreateSchedule(ctx context.Context, s model.Schedule) (int, error)
	UpdateSchedule(ctx context.Context, id int, s model.Schedule) error
	DeleteSchedule(ctx context.Context, id int) (string, error)
	GetSchedule(ctx context.Context, id int) (model.Schedule, error)
	ListSchedules(ctx context.Context) ([]model.Schedule, error)

	// due evaluation (read-only) and post-fire persistence
	DueSchedules(ctx context.Context, asOf int64) ([]model.Schedule, error)
	MarkFired(ctx context.Context, s model.Schedule) error

	// schema versioning
	CurrentSchemaVersion(ctx context.Context) (int, bool, error)
	Migrate(ctx context.Context) error

	Close() error
}

type sqlStore struct {
	db     *sqlx.DB
	driver string
}

// compile-time check that sqlStore implements Store
var _ Store = (*sqlStore)(nil)

func NewStore(conn *sqlx.DB, driver string) Store {
	return &sqlStore{db: conn, driver: driver}
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
