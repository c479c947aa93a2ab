// Package ticket adapts fired schedules into real tracker tickets. The
// tracker itself is an external collaborator reached through the Sink
// contract.
package ticket

import (
	"context"
	"fmt"
)

// Priority is one entry of the tracker's priority enumeration.
type Priority struct {
	Name string `json:"name"`
	Code int    `json:"code"`
}

// Fields is the ticket payload handed to the tracker. Priority is the
// resolved name, empty when the schedule's code matched nothing.
type Fields struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Reporter    string `json:"reporter"`
	Priority    string `json:"priority,omitempty"`
}

// Sink is the tracker-side collaborator. CreateTicket is the durable side
// effect; Notify is advisory and its failure never unwinds a created ticket.
type Sink interface {
	CreateTicket(ctx context.Context, f Fields) (ticketID int, err error)
	Notify(ctx context.Context, ticketID int) error
	Priorities(ctx context.Context) ([]Priority, error)
}

// EmissionError means ticket creation or validation failed for one schedule.
// The batch skips the record and reports it.
type EmissionError struct {
	ScheduleID int
	Stage      string
	Err        error
}

func (e *EmissionError) Error() string {
	return fmt.Sprintf("emitting ticket for schedule %d (%s): %v", e.ScheduleID, e.Stage, e.Err)
}

func (e *EmissionError) Unwrap() error { return e.Err }

// NotificationError wraps a failed post-creation notify. Logged only, never
// surfaced as an operation failure.
type NotificationError struct {
	TicketID int
	Err      error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notifying for ticket %d: %v", e.TicketID, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
