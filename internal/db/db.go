package db

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the backing database. SQLite is the default backend and is
// opened with WAL mode; PostgreSQL connects with a retry loop since the server
// may still be starting when we are.
func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite:
		conn, err := sqlx.Connect("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite db: %w", err)
		}
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
		return conn, nil

	case DriverPostgres:
		const maxRetries = 10
		const retryInterval = 2 * time.Second
		var conn *sqlx.DB
		var err error
		for attempt := 1; attempt <= maxRetries; attempt++ {
			conn, err = sqlx.Connect("postgres", dsn)
			if err == nil {
				log.Info().Msg("connected to database")
				return conn, nil
			}
			log.Error().Err(err).
				Int("attempt", attempt).
				Msgf("failed to connect to database, retrying in %s", retryInterval)
			time.Sleep(retryInterval)
		}
		return nil, fmt.Errorf("could not connect to database after %d attempts: %w", maxRetries, err)

	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
