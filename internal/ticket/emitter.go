package ticket

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/trackerplugins/scheduled/internal/model"
)

// Validator is a tracker-style pre-creation ticket check. A failing validator
// aborts emission for that record only.
type Validator func(f Fields) error

// RequireSummary is the baseline validation every tracker applies.
func RequireSummary(f Fields) error {
	if strings.TrimSpace(f.Summary) == "" {
		return errors.New("ticket must have a summary")
	}
	return nil
}

// Emitter maps schedules to ticket fields and drives the Sink. The priority
// enumeration is fetched once per process and cached; resolution failure
// degrades to "no priority" instead of failing the record.
type Emitter struct {
	sink       Sink
	reporter   string
	validators []Validator

	mu         sync.Mutex
	priorities map[int]string
}

// NewEmitter builds an emitter reporting tickets as the given system
// identity.
func NewEmitter(sink Sink, reporter string, validators ...Validator) *Emitter {
	return &Emitter{sink: sink, reporter: reporter, validators: validators}
}

// Emit creates one ticket for a fired schedule and best-effort notifies about
// it. The returned ticket ID is the tracker's.
func (e *Emitter) Emit(ctx context.Context, rec model.Schedule) (int, error) {
	f := Fields{
		Summary:     rec.Summary,
		Description: rec.Description,
		Status:      "new",
		Reporter:    e.reporter,
		Priority:    e.resolvePriority(ctx, rec.Priority),
	}

	for _, validate := range e.validators {
		if err := validate(f); err != nil {
			return 0, &EmissionError{ScheduleID: rec.ID, Stage: "validate", Err: err}
		}
	}

	ticketID, err := e.sink.CreateTicket(ctx, f)
	if err != nil {
		return 0, &EmissionError{ScheduleID: rec.ID, Stage: "create", Err: err}
	}

	if err := e.sink.Notify(ctx, ticketID); err != nil {
		// The ticket is already durable; notification is advisory.
		nErr := &NotificationError{TicketID: ticketID, Err: err}
		log.Warn().Err(nErr).Int("ticket_id", ticketID).Msg("ticket notification failed")
	}
	return ticketID, nil
}

// resolvePriority matches the stored code against the tracker's enumeration.
// No match, or an unreachable enumeration, yields an unset priority.
func (e *Emitter) resolvePriority(ctx context.Context, code int) string {
	if code <= 0 {
		return ""
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.priorities == nil {
		list, err := e.sink.Priorities(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("could not fetch priority enumeration")
			return ""
		}
		e.priorities = make(map[int]string, len(list))
		for _, p := range list {
			e.priorities[p.Code] = p.Name
		}
	}
	return e.priorities[code]
}
