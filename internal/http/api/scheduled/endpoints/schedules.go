package endpoints

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/trackerplugins/scheduled/internal/db"
	"github.com/trackerplugins/scheduled/internal/http/api"
	"github.com/trackerplugins/scheduled/internal/http/api/scheduled/packets"
	"github.com/trackerplugins/scheduled/internal/model"
	"github.com/trackerplugins/scheduled/internal/scheduler"
)

type ScheduleController struct {
	store  db.Store
	runner *scheduler.Runner
	now    func() time.Time
}

func NewScheduleController(store db.Store, runner *scheduler.Runner) *ScheduleController {
	return &ScheduleController{store: store, runner: runner, now: time.Now}
}

// ScheduledModule mounts the schedule CRUD surface.
func ScheduledModule(ctl *ScheduleController) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/scheduled", ctl.list)
		c.GET("/scheduled/:id", ctl.get)
		c.POST("/scheduled/create", ctl.create)
		c.POST("/scheduled/alter/:id", ctl.alter)
		c.POST("/scheduled/delete/:id", ctl.remove)
	})
}

// RunModule mounts the run-now trigger; mounted separately so it can sit
// behind the operator-token middleware instead of the session middleware.
func RunModule(ctl *ScheduleController) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/scheduled/update", ctl.runNow)
	})
}

func (s *ScheduleController) list(ctx *gin.Context) (any, *api.APIError) {
	list, err := s.store.ListSchedules(ctx)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "failed to list scheduled tickets"}
	}

	response := make([]packets.ScheduleResponse, 0, len(list))
	for _, rec := range list {
		response = append(response, toResponse(rec))
	}
	return response, nil
}

func (s *ScheduleController) get(ctx *gin.Context) (any, *api.APIError) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "invalid id"}
	}

	rec, err := s.store.GetSchedule(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, &api.APIError{Code: http.StatusNotFound, Message: db.ErrNotFound.Error()}
	}
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "failed to load scheduled ticket"}
	}
	return toResponse(rec), nil
}

func (s *ScheduleController) create(ctx *gin.Context) (any, *api.APIError) {
	var request packets.ScheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}
	if apiErr := validateRequest(request); apiErr != nil {
		return nil, apiErr
	}

	rec := s.fromRequest(request)
	id, err := s.store.CreateSchedule(ctx, rec)
	if err != nil {
		var vErr *db.ValidationError
		if errors.As(err, &vErr) {
			return nil, &api.APIError{Code: http.StatusBadRequest, Message: vErr.Error(), Submitted: request}
		}
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not create scheduled ticket"}
	}

	rec.ID = id
	return toResponse(rec), nil
}

func (s *ScheduleController) alter(ctx *gin.Context) (any, *api.APIError) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "invalid id"}
	}

	var request packets.ScheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}
	if apiErr := validateRequest(request); apiErr != nil {
		return nil, apiErr
	}

	rec := s.fromRequest(request)
	switch err := s.store.UpdateSchedule(ctx, id, rec); {
	case errors.Is(err, db.ErrNotFound):
		return nil, &api.APIError{Code: http.StatusNotFound, Message: db.ErrNotFound.Error()}
	case err != nil:
		var vErr *db.ValidationError
		if errors.As(err, &vErr) {
			return nil, &api.APIError{Code: http.StatusBadRequest, Message: vErr.Error(), Submitted: request}
		}
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not update scheduled ticket"}
	}

	rec.ID = id
	return toResponse(rec), nil
}

func (s *ScheduleController) remove(ctx *gin.Context) (any, *api.APIError) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "invalid id"}
	}

	summary, err := s.store.DeleteSchedule(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		// Soft outcome: the record is gone either way.
		return gin.H{"message": db.ErrNotFound.Error()}, nil
	}
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not delete scheduled ticket"}
	}
	return gin.H{"message": "deleted", "summary": summary}, nil
}

func (s *ScheduleController) runNow(ctx *gin.Context) (any, *api.APIError) {
	fired, failed, err := s.runner.Run(ctx, s.now())
	if errors.Is(err, scheduler.ErrBatchInProgress) {
		return nil, &api.APIError{Code: http.StatusConflict, Message: err.Error()}
	}
	if err != nil {
		log.Error().Err(err).Msg("manual due evaluation failed")
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "due evaluation failed"}
	}

	response := packets.RunResponse{
		Fired:  make([]packets.FiredResponse, 0, len(fired)),
		Failed: make([]packets.FailedResponse, 0, len(failed)),
	}
	for _, f := range fired {
		response.Fired = append(response.Fired, packets.FiredResponse{
			ScheduleID: f.Schedule.ID,
			TicketID:   f.TicketID,
			Summary:    f.Schedule.Summary,
		})
	}
	for _, f := range failed {
		response.Failed = append(response.Failed, packets.FailedResponse{
			ScheduleID: f.Schedule.ID,
			Summary:    f.Schedule.Summary,
			Error:      f.Err.Error(),
		})
	}
	return response, nil
}

func validateRequest(r packets.ScheduleRequest) *api.APIError {
	var msg string
	switch {
	case r.Summary == "":
		msg = "summary must not be empty"
	case r.RecurringDays < 0:
		msg = "recurring_days must not be negative"
	case r.DueInDays <= 0:
		msg = "due_in_days must be positive"
	}
	if msg == "" {
		return nil
	}
	return &api.APIError{Code: http.StatusBadRequest, Message: msg, Submitted: r}
}

func (s *ScheduleController) fromRequest(r packets.ScheduleRequest) model.Schedule {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return model.Schedule{
		Summary:       r.Summary,
		Description:   r.Description,
		Priority:      r.Priority,
		RecurringDays: r.RecurringDays,
		NextDueAt:     model.MicrosFromTime(s.now()) + int64(r.DueInDays)*model.MicrosPerDay,
		Enabled:       enabled,
	}
}

func toResponse(rec model.Schedule) packets.ScheduleResponse {
	return packets.ScheduleResponse{
		ID:            rec.ID,
		Summary:       rec.Summary,
		Description:   rec.Description,
		Priority:      rec.Priority,
		RecurringDays: rec.RecurringDays,
		NextDueAt:     rec.NextDueTime().Format(time.RFC3339),
		Enabled:       rec.Enabled,
	}
}
