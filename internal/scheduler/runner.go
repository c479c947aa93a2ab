package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trackerplugins/scheduled/internal/db"
	"github.com/trackerplugins/scheduled/internal/model"
)

// ErrBatchInProgress means another evaluation holds the run lock.
var ErrBatchInProgress = errors.New("another due-schedule evaluation is already running")

// Emitter turns a fired schedule into a real ticket in the external tracker.
type Emitter interface {
	Emit(ctx context.Context, rec model.Schedule) (ticketID int, err error)
}

// Publisher announces fired schedules. Best-effort; implementations must not
// return errors into the batch.
type Publisher interface {
	ScheduleFired(ctx context.Context, rec model.Schedule, ticketID int)
}

// Lock keeps concurrent batch invocations from double-firing the same due
// set.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Fired is one successfully processed schedule, carrying its post-advance
// state.
type Fired struct {
	Schedule model.Schedule
	TicketID int
}

// Failure is one schedule that could not be fully processed.
type Failure struct {
	Schedule model.Schedule
	Err      error
}

// Runner evaluates due schedules sequentially: emit a ticket, then persist
// the advanced cursor, one record at a time. Events and Lock are optional.
type Runner struct {
	Store   db.Store
	Emitter Emitter
	Events  Publisher
	Lock    Lock
}

// Run processes every schedule due at asOf, in ascending due order. One
// record's failure never stops the rest; failures are collected and returned
// alongside the fired list. The due set is captured once at the start.
func (r *Runner) Run(ctx context.Context, asOf time.Time) ([]Fired, []Failure, error) {
	if r.Lock != nil {
		ok, err := r.Lock.Acquire(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("acquiring run lock: %w", err)
		}
		if !ok {
			return nil, nil, ErrBatchInProgress
		}
		defer func() {
			if err := r.Lock.Release(ctx); err != nil {
				log.Warn().Err(err).Msg("releasing run lock failed")
			}
		}()
	}

	due, err := r.Store.DueSchedules(ctx, model.MicrosFromTime(asOf))
	if err != nil {
		return nil, nil, fmt.Errorf("selecting due schedules: %w", err)
	}

	var fired []Fired
	var failed []Failure
	for _, rec := range due {
		ticketID, err := r.Emitter.Emit(ctx, rec)
		if err != nil {
			log.Error().Err(err).Int("schedule_id", rec.ID).Msg("ticket emission failed")
			failed = append(failed, Failure{Schedule: rec, Err: err})
			continue
		}

		next := Advance(rec)
		if err := r.Store.MarkFired(ctx, next); err != nil {
			// The ticket exists but the cursor did not move. Surface it so
			// the operator can reconcile before the next run fires again.
			log.Error().Err(err).
				Int("schedule_id", rec.ID).
				Int("ticket_id", ticketID).
				Msg("ticket created but schedule not advanced")
			failed = append(failed, Failure{
				Schedule: rec,
				Err:      fmt.Errorf("ticket %d created but schedule not advanced: %w", ticketID, err),
			})
			continue
		}

		if r.Events != nil {
			r.Events.ScheduleFired(ctx, rec, ticketID)
		}

		log.Info().
			Int("schedule_id", rec.ID).
			Int("ticket_id", ticketID).
			Str("summary", rec.Summary).
			Bool("recurring", rec.Recurring()).
			Msg("scheduled ticket fired")
		fired = append(fired, Fired{Schedule: next, TicketID: ticketID})
	}
	return fired, failed, nil
}
