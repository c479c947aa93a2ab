package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// versionName is the schema_version row this plugin owns.
const versionName = "scheduled_db_version"

const (
	// SupportedVersion is the schedule table shape this build reads and writes.
	SupportedVersion = 3
	// oldestUpgradable is the floor below which no automatic upgrade path
	// exists.
	oldestUpgradable = 1
)

// migrationStep upgrades the schedule table one version forward. The
// transform is a pure old-row -> new-row function so each step can be tested
// on its own; the surrounding snapshot/recreate/restore dance is shared.
type migrationStep struct {
	version   int
	transform func(row map[string]any) map[string]any
}

var migrationSteps = []migrationStep{
	{version: 2, transform: addPriorityColumn},
	{version: 3, transform: addEnabledColumn},
}

// v2 introduced the priority code; old rows get the "no priority" default.
func addPriorityColumn(row map[string]any) map[string]any {
	row["priority"] = 0
	return row
}

// v3 introduced the enabled flag; pre-existing schedules stay active.
func addEnabledColumn(row map[string]any) map[string]any {
	row["enabled"] = 1
	return row
}

// versionColumns is the schedule column set at each schema version, in table
// order. Insert statements during migration are built from these.
var versionColumns = map[int][]string{
	1: {"id", "summary", "description", "recurring_days", "scheduled_start"},
	2: {"id", "summary", "description", "priority", "recurring_days", "scheduled_start"},
	3: {"id", "summary", "description", "priority", "recurring_days", "scheduled_start", "enabled"},
}

func (s *sqlStore) scheduleDDL(version int) string {
	idCol := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		idCol = "SERIAL PRIMARY KEY"
	}
	cols := []string{
		"id " + idCol,
		"summary TEXT NOT NULL",
		"description TEXT NOT NULL DEFAULT ''",
	}
	if version >= 2 {
		cols = append(cols, "priority INTEGER NOT NULL DEFAULT 0")
	}
	cols = append(cols,
		"recurring_days INTEGER NOT NULL DEFAULT 0",
		"scheduled_start INTEGER NOT NULL",
	)
	if version >= 3 {
		cols = append(cols, "enabled INTEGER NOT NULL DEFAULT 1")
	}
	return "CREATE TABLE schedule (\n\t" + strings.Join(cols, ",\n\t") + "\n)"
}

func (s *sqlStore) schemaVersionTableExists(ctx context.Context) (bool, error) {
	var n int
	var q string
	if s.driver == DriverPostgres {
		q = `SELECT COUNT(*) FROM information_schema.tables WHERE table_name = 'schema_version'`
	} else {
		q = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`
	}
	if err := s.db.GetContext(ctx, &n, q); err != nil {
		return false, fmt.Errorf("checking schema_version table: %w", err)
	}
	return n > 0, nil
}

// CurrentSchemaVersion reads the persisted schedule schema version. The
// second return is false on a fresh environment with no table yet.
func (s *sqlStore) CurrentSchemaVersion(ctx context.Context) (int, bool, error) {
	exists, err := s.schemaVersionTableExists(ctx)
	if err != nil {
		return 0, false, err
	}
	if !exists {
		return 0, false, nil
	}

	var ver int
	err = s.db.GetContext(ctx, &ver,
		s.db.Rebind(`SELECT value FROM schema_version WHERE name = ?`), versionName)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading schema version: %w", err)
	}
	return ver, true, nil
}

// Migrate brings the schedule table to SupportedVersion. Forward-only and
// idempotent: a fresh environment is created at v1 and stepped up, a current
// one is a no-op, and an incompatible persisted version is a SchemaError.
func (s *sqlStore) Migrate(ctx context.Context) error {
	cur, ok, err := s.CurrentSchemaVersion(ctx)
	if err != nil {
		return err
	}

	if !ok {
		if err := s.bootstrap(ctx); err != nil {
			return err
		}
		cur = 1
		log.Info().Int("version", cur).Msg("created schedule schema")
	}

	if cur > SupportedVersion {
		return &SchemaError{Found: cur, Supported: SupportedVersion, Oldest: oldestUpgradable}
	}
	// Logical AND: the guard fires only for a nonzero version below the
	// upgrade floor.
	if cur != 0 && cur < oldestUpgradable {
		return &SchemaError{Found: cur, Supported: SupportedVersion, Oldest: oldestUpgradable}
	}

	for _, step := range migrationSteps {
		if step.version <= cur {
			continue
		}
		if err := s.applyStep(ctx, step); err != nil {
			return fmt.Errorf("migrating schedule schema to v%d: %w", step.version, err)
		}
		log.Info().Int("from", cur).Int("to", step.version).Msg("migrated schedule schema")
		cur = step.version
	}
	return nil
}

// bootstrap creates the schema_version table and an empty v1 schedule table.
func (s *sqlStore) bootstrap(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
	name TEXT PRIMARY KEY,
	value INTEGER NOT NULL
)`,
		s.scheduleDDL(1),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO schema_version (name, value) VALUES (?, ?)`), versionName, 1)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// applyStep snapshots the schedule rows, recreates the table in the step's
// shape, restores the transformed rows and advances the stored version.
// All-or-nothing inside one transaction.
func (s *sqlStore) applyStep(ctx context.Context, step migrationStep) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	snapshot, err := snapshotRows(ctx, tx)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DROP TABLE schedule`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.scheduleDDL(step.version)); err != nil {
		return err
	}

	cols := versionColumns[step.version]
	insert := s.db.Rebind(fmt.Sprintf(
		"INSERT INTO schedule (%s) VALUES (%s)",
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	))
	for _, old := range snapshot {
		row := step.transform(old)
		args := make([]any, 0, len(cols))
		for _, col := range cols {
			args = append(args, row[col])
		}
		if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
			return err
		}
	}

	// Restoring explicit ids leaves the postgres sequence behind; realign it.
	if s.driver == DriverPostgres && len(snapshot) > 0 {
		const q = `SELECT setval(pg_get_serial_sequence('schedule', 'id'), (SELECT MAX(id) FROM schedule))`
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		s.db.Rebind(`UPDATE schema_version SET value = ? WHERE name = ?`), step.version, versionName)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func snapshotRows(ctx context.Context, tx *sqlx.Tx) ([]map[string]any, error) {
	rows, err := tx.QueryxContext(ctx, `SELECT * FROM schedule`)
	if err != nil {
		return nil, fmt.Errorf("snapshotting schedule rows: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scanning schedule row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
