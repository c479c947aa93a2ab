package model

import "time"

// MicrosPerDay is the length of a schedule day in microseconds. Recurrence
// arithmetic is done in whole 86400-second days, not calendar days.
const MicrosPerDay = int64(86400) * 1e6

// Schedule is a stored scheduled-ticket definition. NextDueAt is a
// microsecond-resolution Unix epoch, matching the persisted column.
type Schedule struct {
	ID            int    `db:"id" json:"id"`
	Summary       string `db:"summary" json:"summary"`
	Description   string `db:"description" json:"description"`
	Priority      int    `db:"priority" json:"priority"`
	RecurringDays int    `db:"recurring_days" json:"recurring_days"`
	NextDueAt     int64  `db:"scheduled_start" json:"next_due_at"`
	Enabled       bool   `db:"enabled" json:"enabled"`
}

// Recurring reports whether the schedule fires repeatedly. A zero interval
// means it fires once and is then disabled.
func (s Schedule) Recurring() bool {
	return s.RecurringDays > 0
}

// NextDueTime returns the next-due cursor as a time.Time.
func (s Schedule) NextDueTime() time.Time {
	return TimeFromMicros(s.NextDueAt)
}

// MicrosFromTime converts t to a microsecond Unix epoch.
func MicrosFromTime(t time.Time) int64 {
	return t.UnixMicro()
}

// TimeFromMicros converts a microsecond Unix epoch to a time.Time in UTC.
func TimeFromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
