package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvera/ojt-core/config"
	"github.com/solvera/ojt-core/internal/application/command"
	"github.com/solvera/ojt-core/internal/application/query"
	"github.com/solvera/ojt-core/internal/domain/account"
	"github.com/solvera/ojt-core/internal/domain/agenda"
	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/recruitment"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/internal/infrastructure/persistence/memory"
	"github.com/solvera/ojt-core/internal/interface/http/handlers"
	"github.com/solvera/ojt-core/pkg/logger"
	"github.com/solvera/ojt-core/pkg/timeutil"
)

const testAPIKey = "test-key"

// 2026-03-02 09:00 Jakarta.
var t0 = time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)

// staticAuth accepts "<login>:secret" for the users it knows.
type staticAuth map[string]*account.User

func (a staticAuth) Authenticate(_ context.Context, login, password string) (*account.User, error) {
	u, ok := a[login]
	if !ok || password != "secret" {
		return nil, shared.ErrUnauthorized
	}
	return u, nil
}

type testEnv struct {
	t        *testing.T
	ctx      context.Context
	repos    *memory.Repositories
	commands *command.Handlers
	features *config.FeatureFlags
	health   *handlers.CompositeHealthChecker
	server   *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repos := memory.New()
	clock := shared.FixedClock{T: t0}
	n := 0

	env := &testEnv{
		t:        t,
		ctx:      context.Background(),
		repos:    repos,
		features: config.LoadFeatureFlags(nil),
		health:   handlers.NewCompositeHealthChecker("test"),
	}
	env.commands = command.NewHandlers(command.Deps{
		Tx:    repos.Store,
		Clock: clock,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%03d", n)
		},
		Jobs:         repos.Jobs,
		Applicants:   repos.Applicants,
		Partners:     repos.Partners,
		Batches:      repos.Batches,
		Participants: repos.Participants,
		EventLinks:   repos.EventLinks,
		Assignments:  repos.Assignments,
		Submissions:  repos.Submissions,
		Attendance:   repos.Attendance,
		Certificates: repos.Certificates,
	})
	queries := query.New(query.Deps{
		Clock:        clock,
		Batches:      repos.Batches,
		Participants: repos.Participants,
		EventLinks:   repos.EventLinks,
		Assignments:  repos.Assignments,
		Submissions:  repos.Submissions,
		Attendance:   repos.Attendance,
		Certificates: repos.Certificates,
	})

	cfg := DefaultConfig()
	cfg.APIKeys = []string{testAPIKey}
	cfg.BaseURL = "https://ojt.example.com"
	cfg.RateLimitPerMinute = 0
	cfg.Version = "test"

	srv, err := NewServer(cfg, Dependencies{
		Commands: env.commands,
		Queries:  queries,
		Authenticator: staticAuth{
			"ayu":   {ID: "u1", Login: "ayu", PartnerID: "p-ayu", Active: true},
			"budi":  {ID: "u2", Login: "budi", PartnerID: "p-budi", Active: true},
			"staff": {ID: "u3", Login: "staff", PartnerID: "p-staff", Internal: true, Active: true},
		},
		HealthChecker: env.health,
		Features:      env.features,
		Logger:        logger.Nop(),
	})
	require.NoError(t, err)
	env.server = srv
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

// api sends an authenticated API request; body is JSON encoded unless nil.
func (e *testEnv) api(method, path string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	return e.do(req)
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

// envelope decodes a JSON response; data is decoded into out when non-nil.
func envelope(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) JSONResponse {
	t.Helper()
	var raw struct {
		JSONResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw), rec.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return raw.JSONResponse
}

// ─────────────────────────────────────────────────────────────────────────────
// Seed helpers
// ─────────────────────────────────────────────────────────────────────────────

func (e *testEnv) ongoingBatch(name string) *batch.Batch {
	e.t.Helper()
	res, err := e.commands.Batches.CreateBatch(e.ctx, command.CreateBatchCommand{
		Name:      name,
		StartDate: timeutil.Date(2026, 3, 1),
		EndDate:   timeutil.Date(2026, 4, 30),
	})
	require.NoError(e.t, err)
	b := res.Batch
	for _, s := range []batch.State{batch.StateRecruitment, batch.StateOngoing} {
		b, err = e.commands.Batches.ChangeBatchState(e.ctx, command.ChangeBatchStateCommand{BatchID: b.ID, State: s})
		require.NoError(e.t, err)
	}
	return b
}

func (e *testEnv) enroll(b *batch.Batch, partnerID, name string) *participant.Participant {
	e.t.Helper()
	if _, err := e.repos.Partners.GetByID(e.ctx, partnerID); err != nil {
		require.NoError(e.t, e.repos.Partners.Create(e.ctx, &recruitment.Partner{ID: partnerID, Name: name, CreatedAt: t0}))
	}
	res, err := e.commands.Enrollment.EnrollParticipant(e.ctx, command.EnrollParticipantCommand{BatchID: b.ID, PartnerID: partnerID})
	require.NoError(e.t, err)
	return res.Participant
}

func (e *testEnv) session(b *batch.Batch, title string, start time.Time, meetingURL string) *agenda.EventLink {
	e.t.Helper()
	end := start.Add(2 * time.Hour)
	res, err := e.commands.Agenda.CreateEventLink(e.ctx, command.CreateEventLinkCommand{
		BatchID: b.ID,
		EventLinkFields: command.EventLinkFields{
			Title:            title,
			DateStart:        &start,
			DateEnd:          &end,
			OnlineMeetingURL: meetingURL,
		},
	})
	require.NoError(e.t, err)
	return res.EventLink
}

func (e *testEnv) row(participantID, eventLinkID string) *attendance.Attendance {
	e.t.Helper()
	rows, err := e.repos.Attendance.List(e.ctx, attendance.ListOptions{ParticipantID: participantID, EventLinkID: eventLinkID})
	require.NoError(e.t, err)
	require.Len(e.t, rows, 1)
	return rows[0]
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestNewServer_RequiresApplication(t *testing.T) {
	_, err := NewServer(DefaultConfig(), Dependencies{})
	assert.Error(t, err)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/live")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.get("/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	env.health.AddOptionalCheck("cache", func(context.Context) error { return errors.New("down") })
	rec = env.get("/health")
	assert.Equal(t, http.StatusOK, rec.Code, "optional checks do not affect health")

	rec = env.get("/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := envelope(t, rec, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_ready", resp.Error.Code)

	env.health.AddCheck("database", func(context.Context) error { return errors.New("down") })
	rec = env.get("/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRoot(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get("/")
	require.Equal(t, http.StatusOK, rec.Code)

	var data map[string]interface{}
	resp := envelope(t, rec, &data)
	assert.True(t, resp.Success)
	assert.Equal(t, "test", data["version"])
	assert.NotEmpty(t, resp.RequestID)
}

func TestUnknownRoute_JSON404(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get("/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := envelope(t, rec, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_found", resp.Error.Code)
}

func TestAPI_RequiresKey(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/api/v1/batches")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := envelope(t, rec, nil)
	assert.Equal(t, "missing_api_key", resp.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/batches", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = env.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp = envelope(t, rec, nil)
	assert.Equal(t, "invalid_api_key", resp.Error.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/batches", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec = env.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{shared.ErrBatchNotFound, http.StatusNotFound, "not_found"},
		{shared.ErrBatchNameTaken, http.StatusConflict, "already_exists"},
		{shared.ErrCheckInClosed, http.StatusConflict, "state_conflict"},
		{shared.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{fmt.Errorf("%w: broken", errBadRequest), http.StatusBadRequest, "invalid_request"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		status, code := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
