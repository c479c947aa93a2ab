package ticket

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackerplugins/scheduled/internal/model"
)

type fakeSink struct {
	created      []Fields
	notified     []int
	createErr    error
	notifyErr    error
	priorities   []Priority
	priorityErr  error
	priorityGets int
}

func (f *fakeSink) CreateTicket(_ context.Context, fields Fields) (int, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.created = append(f.created, fields)
	return 100 + len(f.created), nil
}

func (f *fakeSink) Notify(_ context.Context, ticketID int) error {
	f.notified = append(f.notified, ticketID)
	return f.notifyErr
}

func (f *fakeSink) Priorities(context.Context) ([]Priority, error) {
	f.priorityGets++
	return f.priorities, f.priorityErr
}

func TestEmitMapsFields(t *testing.T) {
	sink := &fakeSink{priorities: []Priority{{Name: "major", Code: 3}, {Name: "minor", Code: 4}}}
	emitter := NewEmitter(sink, "scheduled")

	rec := model.Schedule{ID: 7, Summary: "do the thing", Description: "with care", Priority: 3}
	id, err := emitter.Emit(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 101, id)

	require.Len(t, sink.created, 1)
	f := sink.created[0]
	assert.Equal(t, "do the thing", f.Summary)
	assert.Equal(t, "with care", f.Description)
	assert.Equal(t, "new", f.Status)
	assert.Equal(t, "scheduled", f.Reporter)
	assert.Equal(t, "major", f.Priority)

	assert.Equal(t, []int{101}, sink.notified)
}

func TestEmitUnknownPriorityCodeLeavesPriorityUnset(t *testing.T) {
	sink := &fakeSink{priorities: []Priority{{Name: "major", Code: 3}}}
	emitter := NewEmitter(sink, "scheduled")

	_, err := emitter.Emit(context.Background(), model.Schedule{Summary: "s", Priority: 42})
	require.NoError(t, err)
	assert.Equal(t, "", sink.created[0].Priority)
}

func TestEmitPriorityEnumerationUnavailable(t *testing.T) {
	sink := &fakeSink{priorityErr: errors.New("tracker down")}
	emitter := NewEmitter(sink, "scheduled")

	// the record still fires, just without a priority
	_, err := emitter.Emit(context.Background(), model.Schedule{Summary: "s", Priority: 3})
	require.NoError(t, err)
	assert.Equal(t, "", sink.created[0].Priority)
}

func TestEmitCachesPriorityEnumeration(t *testing.T) {
	sink := &fakeSink{priorities: []Priority{{Name: "major", Code: 3}}}
	emitter := NewEmitter(sink, "scheduled")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := emitter.Emit(ctx, model.Schedule{Summary: "s", Priority: 3})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, sink.priorityGets)
}

func TestEmitValidationFailureSkipsCreation(t *testing.T) {
	sink := &fakeSink{}
	emitter := NewEmitter(sink, "scheduled", RequireSummary)

	_, err := emitter.Emit(context.Background(), model.Schedule{ID: 9, Summary: "   "})

	var eErr *EmissionError
	require.ErrorAs(t, err, &eErr)
	assert.Equal(t, 9, eErr.ScheduleID)
	assert.Equal(t, "validate", eErr.Stage)
	assert.Empty(t, sink.created)
	assert.Empty(t, sink.notified)
}

func TestEmitCreateFailure(t *testing.T) {
	sink := &fakeSink{createErr: errors.New("boom")}
	emitter := NewEmitter(sink, "scheduled")

	_, err := emitter.Emit(context.Background(), model.Schedule{ID: 4, Summary: "s"})

	var eErr *EmissionError
	require.ErrorAs(t, err, &eErr)
	assert.Equal(t, "create", eErr.Stage)
	assert.Empty(t, sink.notified)
}

func TestEmitNotifyFailureIsBestEffort(t *testing.T) {
	sink := &fakeSink{notifyErr: errors.New("smtp down")}
	emitter := NewEmitter(sink, "scheduled")

	id, err := emitter.Emit(context.Background(), model.Schedule{Summary: "s"})
	require.NoError(t, err)
	assert.Equal(t, 101, id)
}
