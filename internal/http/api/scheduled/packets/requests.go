package packets

// ScheduleRequest carries the create/alter form fields. DueInDays is a
// relative day count; the server converts it to an absolute next-due time.
type ScheduleRequest struct {
	Summary       string `json:"summary"`
	Description   string `json:"description"`
	Priority      int    `json:"priority"`
	RecurringDays int    `json:"recurring_days"`
	DueInDays     int    `json:"due_in_days"`
	Enabled       *bool  `json:"enabled,omitempty"`
}
