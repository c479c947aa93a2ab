package endpoints_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/trackerplugins/scheduled/internal/db"
	"github.com/trackerplugins/scheduled/internal/http/api"
	"github.com/trackerplugins/scheduled/internal/http/api/scheduled/endpoints"
	"github.com/trackerplugins/scheduled/internal/http/middleware"
	"github.com/trackerplugins/scheduled/internal/model"
	"github.com/trackerplugins/scheduled/internal/scheduler"
)

const (
	jwtSecret     = "supersecret"
	operatorToken = "letmein"
)

type fakeEmitter struct {
	nextID int
}

func (f *fakeEmitter) Emit(context.Context, model.Schedule) (int, error) {
	f.nextID++
	return f.nextID, nil
}

func setupRouter(t *testing.T) (*gin.Engine, db.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "scheduled.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := db.NewStore(conn, db.DriverSQLite)
	require.NoError(t, store.Migrate(context.Background()))

	runner := &scheduler.Runner{Store: store, Emitter: &fakeEmitter{}}
	ctl := endpoints.NewScheduleController(store, runner)

	hash, err := bcrypt.GenerateFromPassword([]byte(operatorToken), bcrypt.MinCost)
	require.NoError(t, err)

	r := gin.New()
	api.MountGroup(r, api.GroupConfig{Auth: true, SecretKey: jwtSecret},
		endpoints.ScheduledModule(ctl),
	)
	api.MountGroup(r, api.GroupConfig{
		Middleware: []gin.HandlerFunc{middleware.OperatorToken(string(hash))},
	},
		endpoints.RunModule(ctl),
	)
	return r, store
}

func authedRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	token, err := middleware.GenerateJWT(1, jwtSecret)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestRequiresSession(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scheduled", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAndList(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(t, http.MethodPost, "/scheduled/create", map[string]any{
		"summary":        "renew certificates",
		"description":    "wildcard certs",
		"priority":       2,
		"recurring_days": 90,
		"due_in_days":    7,
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var created map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "renew certificates", created["summary"])
	assert.Equal(t, true, created["enabled"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(t, http.MethodGet, "/scheduled", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, float64(90), list[0]["recurring_days"])
}

func TestCreateValidationPreservesInput(t *testing.T) {
	r, store := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(t, http.MethodPost, "/scheduled/create", map[string]any{
		"summary":     "typo heavy draft",
		"due_in_days": 0,
	}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error     string `json:"error"`
		Submitted struct {
			Summary string `json:"summary"`
		} `json:"submitted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "due_in_days")
	// the submitted values come back for redisplay
	assert.Equal(t, "typo heavy draft", resp.Submitted.Summary)

	// nothing was written
	list, err := store.ListSchedules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAlterUnknownID(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(t, http.MethodPost, "/scheduled/alter/1234", map[string]any{
		"summary":     "whatever",
		"due_in_days": 1,
	}))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteUnknownIDIsSoft(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(t, http.MethodPost, "/scheduled/delete/1234", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "no scheduled ticket found")
}

func TestDeleteReturnsSummary(t *testing.T) {
	r, store := setupRouter(t)

	id, err := store.CreateSchedule(context.Background(), model.Schedule{
		Summary: "short lived", NextDueAt: 1, Enabled: true,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(t, http.MethodPost, fmt.Sprintf("/scheduled/delete/%d", id), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "short lived")
}

func TestRunNowRequiresOperatorToken(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scheduled/update", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/scheduled/update", nil)
	req.Header.Set("X-Operator-Token", "wrong")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRunNowFiresDueSchedules(t *testing.T) {
	r, store := setupRouter(t)

	due := model.MicrosFromTime(time.Now().Add(-time.Hour))
	_, err := store.CreateSchedule(context.Background(), model.Schedule{
		Summary: "overdue", NextDueAt: due, RecurringDays: 7, Enabled: true,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/scheduled/update", nil)
	req.Header.Set("X-Operator-Token", operatorToken)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Fired []struct {
			ScheduleID int    `json:"schedule_id"`
			TicketID   int    `json:"ticket_id"`
			Summary    string `json:"summary"`
		} `json:"fired"`
		Failed []any `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Fired, 1)
	assert.Equal(t, "overdue", resp.Fired[0].Summary)
	assert.Equal(t, 1, resp.Fired[0].TicketID)
	assert.Empty(t, resp.Failed)
}
