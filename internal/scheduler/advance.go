package scheduler

import "github.com/trackerplugins/scheduled/internal/model"

// Advance computes a schedule's state after a successful fire. A recurring
// schedule keeps its cadence anchored to the previous scheduled time rather
// than the actual fire time, so a late evaluation run does not drift the
// series. A one-shot schedule is disabled with its cursor untouched.
func Advance(rec model.Schedule) model.Schedule {
	if rec.RecurringDays > 0 {
		rec.NextDueAt += int64(rec.RecurringDays) * model.MicrosPerDay
	} else {
		rec.Enabled = false
	}
	return rec
}
