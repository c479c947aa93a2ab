package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/trackerplugins/scheduled/internal/model"
)

const scheduleColumns = `id, summary, description, priority, recurring_days, scheduled_start, enabled`

// validateSchedule rejects bad field values before any row is written.
func validateSchedule(s model.Schedule) error {
	if strings.TrimSpace(s.Summary) == "" {
		return &ValidationError{Field: "summary", Reason: "must not be empty"}
	}
	if s.RecurringDays < 0 {
		return &ValidationError{Field: "recurring_days", Reason: "must not be negative"}
	}
	return nil
}

func (s *sqlStore) CreateSchedule(ctx context.Context, rec model.Schedule) (int, error) {
	if err := validateSchedule(rec); err != nil {
		return 0, err
	}

	const q = `
	INSERT INTO schedule (summary, description, priority, recurring_days, scheduled_start, enabled)
	VALUES (?, ?, ?, ?, ?, ?)`
	args := []any{rec.Summary, rec.Description, rec.Priority, rec.RecurringDays, rec.NextDueAt, boolToInt(rec.Enabled)}

	if s.driver == DriverPostgres {
		var id int
		if err := s.db.GetContext(ctx, &id, s.db.Rebind(q+" RETURNING id"), args...); err != nil {
			log.Error().Err(err).Msg("CreateSchedule failed")
			return 0, err
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		log.Error().Err(err).Msg("CreateSchedule failed")
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", err)
	}
	return int(id), nil
}

func (s *sqlStore) UpdateSchedule(ctx context.Context, id int, rec model.Schedule) error {
	if err := validateSchedule(rec); err != nil {
		return err
	}

	const q = `
	UPDATE schedule
	   SET summary = ?, description = ?, priority = ?, recurring_days = ?, scheduled_start = ?, enabled = ?
	 WHERE id = ?`
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q),
		rec.Summary, rec.Description, rec.Priority, rec.RecurringDays, rec.NextDueAt, boolToInt(rec.Enabled), id)
	if err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("UpdateSchedule failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSchedule removes a record and returns its summary for user-facing
// confirmation.
func (s *sqlStore) DeleteSchedule(ctx context.Context, id int) (string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var summary string
	err = tx.GetContext(ctx, &summary, s.db.Rebind(`SELECT summary FROM schedule WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("DeleteSchedule lookup failed")
		return "", err
	}

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM schedule WHERE id = ?`), id); err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("DeleteSchedule failed")
		return "", err
	}
	return summary, tx.Commit()
}

func (s *sqlStore) GetSchedule(ctx context.Context, id int) (model.Schedule, error) {
	var rec model.Schedule
	err := s.db.GetContext(ctx, &rec,
		s.db.Rebind(`SELECT `+scheduleColumns+` FROM schedule WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Schedule{}, ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("GetSchedule failed")
		return model.Schedule{}, err
	}
	return rec, nil
}

// ListSchedules surfaces active, due-soonest schedules first.
func (s *sqlStore) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	var out []model.Schedule
	const q = `
	SELECT ` + scheduleColumns + `
	  FROM schedule
	 ORDER BY enabled DESC, scheduled_start ASC`
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		log.Error().Err(err).Msg("ListSchedules failed")
		return nil, err
	}
	return out, nil
}

// DueSchedules returns every enabled record whose next-due time has passed,
// oldest overdue first. Read-only.
func (s *sqlStore) DueSchedules(ctx context.Context, asOf int64) ([]model.Schedule, error) {
	var out []model.Schedule
	const q = `
	SELECT ` + scheduleColumns + `
	  FROM schedule
	 WHERE enabled = 1 AND scheduled_start <= ?
	 ORDER BY scheduled_start ASC`
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q), asOf); err != nil {
		log.Error().Err(err).Msg("DueSchedules failed")
		return nil, err
	}
	return out, nil
}

// MarkFired persists the advanced next-due cursor (or the disabled flag for a
// one-shot) after a successful fire. Single-statement write, atomic at the row
// level.
func (s *sqlStore) MarkFired(ctx context.Context, rec model.Schedule) error {
	const q = `UPDATE schedule SET scheduled_start = ?, enabled = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), rec.NextDueAt, boolToInt(rec.Enabled), rec.ID)
	if err != nil {
		log.Error().Err(err).Int("schedule_id", rec.ID).Msg("MarkFired failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// boolToInt converts a boolean to the 0/1 integer the enabled column stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
