package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"costmanager/internal/core"
	"costmanager/internal/middleware/ratelimit"
	"costmanager/internal/report"
	"costmanager/internal/services"
	"costmanager/internal/store/memory"
	"costmanager/internal/userdir"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser int64 = 123123

type fixture struct {
	store *memory.Store
	deps  Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	engine := report.NewEngine(st, st,
		report.WithClock(func() time.Time { return now }),
		report.WithLocation(time.UTC))

	return &fixture{
		store: st,
		deps: Deps{
			Reports:  engine,
			Costs:    services.NewCostService(st, userdir.NewStore(st), nil),
			Users:    services.NewUserService(st, nil),
			Logs:     services.NewLogService(st),
			Team:     []core.TeamMember{{FirstName: "Ada", LastName: "Lovelace"}},
			Ready:    st,
			Location: time.UTC,
		},
	}
}

func (f *fixture) server(t *testing.T, svc Service) *Server {
	t.Helper()
	srv, err := NewServer(":0", svc, f.deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func (f *fixture) addUser(t *testing.T, id int64) {
	t.Helper()
	require.NoError(t, f.store.AddUser(context.Background(), core.User{
		ID: id, FirstName: "Mosh", LastName: "Israeli", Birthday: time.Date(1990, 1, 10, 0, 0, 0, 0, time.UTC),
	}))
}

func do(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func TestRootAndProbes(t *testing.T) {
	f := newFixture(t)
	for svc, banner := range map[Service]string{
		ServiceCosts: "Costs Service is UP",
		ServiceUsers: "Users Service is UP",
		ServiceLogs:  "Logs Service is UP",
		ServiceAdmin: "Admin Service is UP",
	} {
		srv := f.server(t, svc)

		rec := do(srv, http.MethodGet, "/", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, banner, rec.Body.String())

		assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/healthz", "").Code)
		assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/readyz", "").Code)
	}
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyz_BackendDown(t *testing.T) {
	f := newFixture(t)
	f.deps.Ready = downPinger{}
	rec := do(f.server(t, ServiceAdmin), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	f := newFixture(t)
	rec := do(f.server(t, ServiceCosts), http.MethodGet, "/", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReport_WireShape(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.AddCost(context.Background(), core.Cost{
		Description: "milk", Category: core.Food, UserID: testUser, Sum: 25,
		CreatedAt: time.Date(2050, 2, 15, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	rec := do(f.server(t, ServiceCosts), http.MethodGet, "/api/report?id=123123&year=2050&month=2", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"userid": 123123,
		"year": 2050,
		"month": 2,
		"costs": [
			{"food": [{"day": 15, "description": "milk", "sum": 25}]},
			{"health": []},
			{"housing": []},
			{"sports": []},
			{"education": []}
		]
	}`, rec.Body.String())
	assert.Zero(t, f.store.ReportWrites(), "open months are never persisted")
}

func TestReport_PastMonthIsPersisted(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t, ServiceCosts)

	first := do(srv, http.MethodGet, "/api/report?id=7&year=2025&month=1", "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, 1, f.store.ReportWrites())

	second := do(srv, http.MethodGet, "/api/report?id=7&year=2025&month=1", "")
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, f.store.ReportWrites())
}

func TestReport_InvalidQueries(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t, ServiceCosts)

	tests := []struct {
		name    string
		query   string
		message string
	}{
		{"missing everything", "", "missing required query parameters"},
		{"missing month", "id=1&year=2050", "missing required query parameters"},
		{"year as string", "id=1&year=abc&month=2", "must be integers"},
		{"fractional month", "id=1&year=2050&month=2.5", "must be integers"},
		{"signed id", "id=%2B5&year=2050&month=2", "must be integers"},
		{"padded year", "id=5&year=%202050&month=2", "must be integers"},
		{"month out of range", "id=1&year=2050&month=13", "month 13 out of range"},
		{"non-positive id", "id=0&year=2050&month=2", "id must be a positive integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv, http.MethodGet, "/api/report?"+tt.query, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, errorMessage(t, rec), tt.message)
		})
	}
}

type failingReports struct{}

func (failingReports) GetMonthlyReport(context.Context, int64, int, int) (report.Result, error) {
	return report.Result{}, fmt.Errorf("%w: find report: disk I/O error", core.ErrInternal)
}

func TestReport_StoreFailureIs500(t *testing.T) {
	f := newFixture(t)
	f.deps.Reports = failingReports{}

	rec := do(f.server(t, ServiceCosts), http.MethodGet, "/api/report?id=1&year=2020&month=2", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "disk I/O error")
}

func TestAddCost(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, testUser)
	srv := f.server(t, ServiceCosts)

	t.Run("created", func(t *testing.T) {
		rec := do(srv, http.MethodPost, "/api/add",
			`{"description":"milk","category":"food","userid":123123,"sum":8.5,"created_at":"2026-03-04T10:00:00Z"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got core.Cost
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "milk", got.Description)
		assert.Equal(t, core.Food, got.Category)
		assert.Equal(t, 8.5, got.Sum)
		assert.True(t, got.CreatedAt.Equal(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)))
	})

	t.Run("form body and default timestamp", func(t *testing.T) {
		form := url.Values{"description": {"gym"}, "category": {"Sports"}, "userid": {"123123"}, "sum": {"30"}}
		req := httptest.NewRequest(http.MethodPost, "/api/add", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var got core.Cost
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, core.Sports, got.Category)
		assert.False(t, got.CreatedAt.IsZero())
	})

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"unknown user", `{"description":"x","category":"food","userid":5,"sum":1}`, "user does not exist"},
		{"unknown category", `{"description":"x","category":"travel","userid":123123,"sum":1}`, "unknown category"},
		{"negative sum", `{"description":"x","category":"food","userid":123123,"sum":-1}`, "sum cannot be negative"},
		{"sum NaN", `{"description":"x","category":"food","userid":123123,"sum":"NaN"}`, "sum must be a finite number"},
		{"sum Inf", `{"description":"x","category":"food","userid":123123,"sum":"+Inf"}`, "sum must be a finite number"},
		{"sum not a number", `{"description":"x","category":"food","userid":123123,"sum":"lots"}`, "sum must be a number"},
		{"missing userid", `{"description":"x","category":"food","sum":1}`, "userid is required"},
		{"bad created_at", `{"description":"x","category":"food","userid":123123,"sum":1,"created_at":"yesterday"}`, "created_at is not a valid date"},
		{"malformed json", `{"description":`, "malformed JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv, http.MethodPost, "/api/add", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, errorMessage(t, rec), tt.message)
		})
	}

	t.Run("rejected sums leave the month reportable", func(t *testing.T) {
		for _, sum := range []string{"NaN", "Inf"} {
			rec := do(srv, http.MethodPost, "/api/add",
				`{"description":"x","category":"food","userid":123123,"sum":"`+sum+`","created_at":"2026-09-05T10:00:00Z"}`)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		}
		rec := do(srv, http.MethodGet, "/api/report?id=123123&year=2026&month=9", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `{"food":[]}`)

		rec = do(srv, http.MethodGet, "/api/report?id=123123&year=2026&month=9", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestUsersEndpoints(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t, ServiceUsers)

	rec := do(srv, http.MethodPost, "/api/add", `{"id":123123,"first_name":"Mosh","last_name":"Israeli","birthday":"1990-01-10"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	dup := do(srv, http.MethodPost, "/api/add", `{"id":123123,"first_name":"Mosh","last_name":"Israeli","birthday":"1990-01-10"}`)
	assert.Equal(t, http.StatusBadRequest, dup.Code)
	assert.Contains(t, errorMessage(t, dup), "already exists")

	missing := do(srv, http.MethodPost, "/api/add", `{"id":5,"first_name":"A"}`)
	assert.Equal(t, http.StatusBadRequest, missing.Code)

	_, err := f.store.AddCost(context.Background(), core.Cost{Description: "a", Category: core.Food, UserID: testUser, Sum: 10, CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = f.store.AddCost(context.Background(), core.Cost{Description: "b", Category: core.Health, UserID: testUser, Sum: 2.5, CreatedAt: time.Now()})
	require.NoError(t, err)

	got := do(srv, http.MethodGet, "/api/users/123123", "")
	require.Equal(t, http.StatusOK, got.Code)
	assert.JSONEq(t, `{"first_name":"Mosh","last_name":"Israeli","id":123123,"total":12.5}`, got.Body.String())

	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodGet, "/api/users/42", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(srv, http.MethodGet, "/api/users/abc", "").Code)

	list := do(srv, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, list.Code)
	var users []core.User
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, testUser, users[0].ID)
}

func TestRequestLogsReachLogsService(t *testing.T) {
	f := newFixture(t)
	logs := services.NewLogService(f.store)
	f.deps.Recorder = logs
	costs := f.server(t, ServiceCosts)
	logsSrv := f.server(t, ServiceLogs)

	do(costs, http.MethodGet, "/api/report?id=1&year=2050&month=2", "")
	do(costs, http.MethodGet, "/healthz", "")

	want := "[Costs Service] GET /api/report?id=1&year=2050&month=2"
	require.Eventually(t, func() bool {
		entries, err := logs.ListLogs(context.Background())
		if err != nil {
			return false
		}
		for _, e := range entries {
			if e.Message == want {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	rec := do(logsSrv, http.MethodGet, "/api/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"level":"info"`)
	assert.NotContains(t, rec.Body.String(), "/healthz", "probes are not request-logged")
}

func TestAbout(t *testing.T) {
	f := newFixture(t)
	rec := do(f.server(t, ServiceAdmin), http.MethodGet, "/api/about", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"first_name":"Ada","last_name":"Lovelace"}]`, rec.Body.String())

	f.deps.Team = nil
	rec = do(f.server(t, ServiceAdmin), http.MethodGet, "/api/about", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRoutesAreScopedToService(t *testing.T) {
	f := newFixture(t)
	admin := f.server(t, ServiceAdmin)
	assert.Equal(t, http.StatusNotFound, do(admin, http.MethodGet, "/api/report?id=1&year=2050&month=2", "").Code)
	costs := f.server(t, ServiceCosts)
	assert.Equal(t, http.StatusMethodNotAllowed, do(costs, http.MethodGet, "/api/add", "").Code)
}

func TestRateLimitOnWrites(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, testUser)
	f.deps.RateLimit = ratelimit.Config{RequestsPerMinute: 1}
	srv := f.server(t, ServiceCosts)

	body := `{"description":"x","category":"food","userid":123123,"sum":1}`
	assert.Equal(t, http.StatusCreated, do(srv, http.MethodPost, "/api/add", body).Code)

	limited := do(srv, http.MethodPost, "/api/add", body)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))
	assert.Contains(t, errorMessage(t, limited), "rate limit")

	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/api/report?id=1&year=2050&month=2", "").Code)
}

func TestNewServer_MissingDeps(t *testing.T) {
	_, err := NewServer(":0", ServiceCosts, Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report engine")

	_, err = NewServer(":0", Service("billing"), Deps{})
	assert.Error(t, err)
}

func TestParseService(t *testing.T) {
	svc, err := ParseService(" Users ")
	require.NoError(t, err)
	assert.Equal(t, ServiceUsers, svc)
	assert.Equal(t, "Users", svc.DisplayName())

	_, err = ParseService("billing")
	assert.Error(t, err)
}
