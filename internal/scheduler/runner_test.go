package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackerplugins/scheduled/internal/db"
	"github.com/trackerplugins/scheduled/internal/model"
)

func newTestStore(t *testing.T) db.Store {
	t.Helper()
	conn, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "scheduled.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := db.NewStore(conn, db.DriverSQLite)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

// fakeEmitter hands out sequential ticket ids and can be told to fail for
// particular summaries.
type fakeEmitter struct {
	nextID  int
	failFor map[string]error
	emitted []model.Schedule
}

func (f *fakeEmitter) Emit(_ context.Context, rec model.Schedule) (int, error) {
	if err := f.failFor[rec.Summary]; err != nil {
		return 0, err
	}
	f.nextID++
	f.emitted = append(f.emitted, rec)
	return f.nextID, nil
}

type fakeLock struct {
	held     bool
	acquired int
	released int
}

func (l *fakeLock) Acquire(context.Context) (bool, error) {
	l.acquired++
	return !l.held, nil
}

func (l *fakeLock) Release(context.Context) error {
	l.released++
	return nil
}

func TestRunFiresRecurringSchedule(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	t0 := int64(1_700_000_000_000_000)

	id, err := store.CreateSchedule(ctx, model.Schedule{
		Summary:       "biweekly",
		RecurringDays: 14,
		NextDueAt:     t0,
		Enabled:       true,
	})
	require.NoError(t, err)

	emitter := &fakeEmitter{}
	runner := &Runner{Store: store, Emitter: emitter}

	fired, failed, err := runner.Run(ctx, model.TimeFromMicros(t0+1))
	require.NoError(t, err)
	assert.Empty(t, failed)
	require.Len(t, fired, 1)
	assert.Equal(t, 1, fired[0].TicketID)

	got, err := store.GetSchedule(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, t0+14*model.MicrosPerDay, got.NextDueAt)
	assert.True(t, got.Enabled)
}

func TestRunDisablesOneShot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	t0 := int64(1_700_000_000_000_000)

	id, err := store.CreateSchedule(ctx, model.Schedule{
		Summary:   "one shot",
		NextDueAt: t0,
		Enabled:   true,
	})
	require.NoError(t, err)

	emitter := &fakeEmitter{}
	runner := &Runner{Store: store, Emitter: emitter}

	fired, failed, err := runner.Run(ctx, model.TimeFromMicros(t0+1))
	require.NoError(t, err)
	assert.Empty(t, failed)
	require.Len(t, fired, 1)

	got, err := store.GetSchedule(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, t0, got.NextDueAt)

	// a later run finds nothing due
	fired, failed, err = runner.Run(ctx, model.TimeFromMicros(t0+100))
	require.NoError(t, err)
	assert.Empty(t, fired)
	assert.Empty(t, failed)
}

func TestRunIsolatesPerRecordFailures(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	t0 := int64(1_000_000)

	_, err := store.CreateSchedule(ctx, model.Schedule{Summary: "broken", NextDueAt: t0, Enabled: true})
	require.NoError(t, err)
	okID, err := store.CreateSchedule(ctx, model.Schedule{Summary: "fine", NextDueAt: t0 + 1, RecurringDays: 1, Enabled: true})
	require.NoError(t, err)

	emitter := &fakeEmitter{failFor: map[string]error{"broken": errors.New("tracker rejected it")}}
	runner := &Runner{Store: store, Emitter: emitter}

	fired, failed, err := runner.Run(ctx, model.TimeFromMicros(t0+10))
	require.NoError(t, err)

	require.Len(t, failed, 1)
	assert.Equal(t, "broken", failed[0].Schedule.Summary)

	require.Len(t, fired, 1)
	assert.Equal(t, "fine", fired[0].Schedule.Summary)

	// the healthy record advanced despite its neighbor failing
	got, err := store.GetSchedule(ctx, okID)
	require.NoError(t, err)
	assert.Equal(t, t0+1+model.MicrosPerDay, got.NextDueAt)
}

func TestRunProcessesOldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, rec := range []model.Schedule{
		{Summary: "newer", NextDueAt: 300, Enabled: true},
		{Summary: "oldest", NextDueAt: 100, Enabled: true},
		{Summary: "middle", NextDueAt: 200, Enabled: true},
	} {
		_, err := store.CreateSchedule(ctx, rec)
		require.NoError(t, err)
	}

	emitter := &fakeEmitter{}
	runner := &Runner{Store: store, Emitter: emitter}

	_, _, err := runner.Run(ctx, model.TimeFromMicros(1000))
	require.NoError(t, err)

	require.Len(t, emitter.emitted, 3)
	assert.Equal(t, "oldest", emitter.emitted[0].Summary)
	assert.Equal(t, "middle", emitter.emitted[1].Summary)
	assert.Equal(t, "newer", emitter.emitted[2].Summary)
}

func TestRunRespectsLock(t *testing.T) {
	store := newTestStore(t)
	lock := &fakeLock{held: true}
	runner := &Runner{Store: store, Emitter: &fakeEmitter{}, Lock: lock}

	_, _, err := runner.Run(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrBatchInProgress)
	assert.Equal(t, 0, lock.released)

	lock.held = false
	_, _, err = runner.Run(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, lock.released)
}
