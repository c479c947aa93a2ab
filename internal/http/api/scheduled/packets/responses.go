package packets

// ScheduleResponse is one schedule record as rendered to clients.
type ScheduleResponse struct {
	ID            int    `json:"id"`
	Summary       string `json:"summary"`
	Description   string `json:"description"`
	Priority      int    `json:"priority"`
	RecurringDays int    `json:"recurring_days"`
	NextDueAt     string `json:"next_due_at"`
	Enabled       bool   `json:"enabled"`
}

// FiredResponse is one successfully fired schedule in a batch report.
type FiredResponse struct {
	ScheduleID int    `json:"schedule_id"`
	TicketID   int    `json:"ticket_id"`
	Summary    string `json:"summary"`
}

// FailedResponse is one schedule the batch could not fire.
type FailedResponse struct {
	ScheduleID int    `json:"schedule_id"`
	Summary    string `json:"summary"`
	Error      string `json:"error"`
}

// RunResponse is the report of a run-now batch.
type RunResponse struct {
	Fired  []FiredResponse  `json:"fired"`
	Failed []FailedResponse `json:"failed"`
}
