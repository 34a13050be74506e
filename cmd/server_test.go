package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/interval-research/internal/config"
	"github.com/sells-group/interval-research/internal/model"
	"github.com/sells-group/interval-research/internal/reconcile"
	"github.com/sells-group/interval-research/internal/store"
)

type testServer struct {
	t       *testing.T
	env     *appEnv
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	env := newTestEnv(t, reg)
	h := newRouter(env, reg, config.ServerConfig{AllowedOrigins: []string{"*"}})
	return &testServer{t: t, env: env, handler: h}
}

// do sends a request with an optional JSON body. userID 0 omits the user
// header.
func (s *testServer) do(method, path string, userID int64, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set(userHeader, strconv.FormatInt(userID, 10))
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decode[map[string]string](t, rr)["status"])
}

func TestServer_HealthStoreDown(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.env.Store.Close())

	rr := s.do(http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestServer_Research(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/research", 3, map[string]any{"make": "Toyota", "model": "Camry", "year": 2020})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	out := decode[researchOutput](t, rr)
	assert.Equal(t, []string{"toyota", "base"}, out.SourcesUsed)
	assert.NotEmpty(t, out.Candidates)
	assert.Nil(t, out.Applied)

	logs, err := s.env.Store.ListResearchLogs(t.Context(), store.LogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, out.Log.ID, logs[0].ID)
	assert.Equal(t, int64(3), logs[0].UserID)
	assert.Equal(t, len(out.Candidates), logs[0].IntervalsFound)
}

func TestRunResearch_FailureReportsZeroResult(t *testing.T) {
	env := newTestEnv(t, prometheus.NewRegistry())

	out, err := runResearch(t.Context(), env, model.Vehicle{Make: "  ", Model: "Camry", Year: 2020}, 1, 10, true)
	require.NoError(t, err)
	assert.Empty(t, out.Candidates)
	assert.Zero(t, out.Confidence)
	assert.Nil(t, out.Applied)
	assert.True(t, out.Log.Failed())

	logs, err := env.Store.ListResearchLogs(t.Context(), store.LogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, out.Log.Error, logs[0].Error)

	ivs, err := env.Store.ActiveIntervals(t.Context(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, ivs)
}

func TestServer_ResearchBadRequests(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body any
		want string
	}{
		{"malformed json", `{"make":`, "invalid request body"},
		{"missing make", map[string]any{"model": "Camry", "year": 2020}, "'make'"},
		{"missing year", map[string]any{"make": "Toyota"}, "'year'"},
		{"unknown engine", map[string]any{"make": "Toyota", "year": 2020, "engine_type": "steam"}, "unknown engine type"},
		{"year out of range", map[string]any{"make": "Toyota", "year": 1850}, "invalid vehicle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(http.MethodPost, "/research", 0, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, decode[map[string]string](t, rr)["error"], tt.want)
		})
	}
}

func TestServer_CarRoutesRequireUser(t *testing.T) {
	s := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/cars/7/intervals"},
		{http.MethodPost, "/cars/7/intervals"},
		{http.MethodPost, "/cars/7/intervals/bulk"},
		{http.MethodPost, "/cars/7/research"},
		{http.MethodDelete, "/intervals/1"},
	} {
		rr := s.do(tc.method, tc.path, 0, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "%s %s", tc.method, tc.path)
	}
}

func TestServer_InvalidCarID(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(http.MethodGet, "/cars/abc/intervals", 1, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode[map[string]string](t, rr)["error"], "invalid carID")
}

func TestServer_UpsertIntervalUpdatesCaseInsensitively(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/cars/7/intervals", 1, map[string]any{"service_item": "Tire Rotation", "interval_miles": 5000})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[model.ServiceInterval](t, rr)
	assert.Equal(t, model.PriorityMedium, created.Priority)
	assert.Equal(t, model.DefaultSource, created.Source)

	rr = s.do(http.MethodPost, "/cars/7/intervals", 1, map[string]any{"service_item": "tire rotation", "interval_miles": 6000})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[model.ServiceInterval](t, rr)
	assert.Equal(t, created.ID, updated.ID)

	rr = s.do(http.MethodGet, "/cars/7/intervals", 1, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[struct {
		Intervals []model.ServiceInterval `json:"intervals"`
	}](t, rr)
	require.Len(t, list.Intervals, 1)
	assert.Equal(t, "Tire Rotation", list.Intervals[0].ServiceItem)
	assert.Equal(t, 6000, *list.Intervals[0].IntervalMiles)

	// Another user sees nothing for the same car id.
	rr = s.do(http.MethodGet, "/cars/7/intervals", 2, nil)
	assert.Empty(t, decode[struct {
		Intervals []model.ServiceInterval `json:"intervals"`
	}](t, rr).Intervals)
}

func TestServer_UpsertIntervalInvalid(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/cars/7/intervals", 1, map[string]any{
		"service_item": "Brake Pads", "cost_estimate_low": 300, "cost_estimate_high": 100,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPost, "/cars/7/intervals", 1, map[string]any{"interval_miles": 5000})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_BulkUpsert(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/cars/9/intervals/bulk", 1, map[string]any{
		"intervals": []map[string]any{
			{"service_item": "Oil Change", "interval_miles": 5000},
			{"service_item": "oil change", "interval_miles": 7500, "priority": "HIGH"},
			{"service_item": "Cabin Air Filter", "interval_months": 12},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	sum := decode[reconcile.Summary](t, rr)
	assert.Equal(t, 2, sum.Inserted)
	assert.Equal(t, 0, sum.Updated)

	ivs, err := s.env.Store.ActiveIntervals(t.Context(), 1, 9)
	require.NoError(t, err)
	require.Len(t, ivs, 2)
	assert.Equal(t, "Oil Change", ivs[0].ServiceItem)
	assert.Equal(t, 7500, *ivs[0].IntervalMiles)
	assert.Equal(t, model.PriorityHigh, ivs[0].Priority)
}

func TestServer_BulkUpsertRejectsWholeBatch(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/cars/9/intervals/bulk", 1, map[string]any{
		"intervals": []map[string]any{
			{"service_item": "Oil Change", "interval_miles": 5000},
			{"service_item": "Brake Pads", "cost_estimate_low": 300, "cost_estimate_high": 100},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	ivs, err := s.env.Store.ActiveIntervals(t.Context(), 1, 9)
	require.NoError(t, err)
	assert.Empty(t, ivs)

	rr = s.do(http.MethodPost, "/cars/9/intervals/bulk", 1, map[string]any{"intervals": []any{}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_DeactivateInterval(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/cars/7/intervals", 1, map[string]any{"service_item": "Coolant Flush", "interval_months": 60})
	require.Equal(t, http.StatusCreated, rr.Code)
	iv := decode[model.ServiceInterval](t, rr)
	path := "/intervals/" + strconv.FormatInt(iv.ID, 10)

	rr = s.do(http.MethodDelete, path, 2, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodDelete, path, 1, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = s.do(http.MethodDelete, path, 1, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	ivs, err := s.env.Store.ActiveIntervals(t.Context(), 1, 7)
	require.NoError(t, err)
	assert.Empty(t, ivs)
}

func TestServer_ResearchCarApply(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/cars/4/research?apply=true", 1, map[string]any{
		"make": "Ford", "model": "F-250 Super Duty", "year": 2019, "engine_type": "diesel",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	out := decode[researchOutput](t, rr)
	require.NotNil(t, out.Applied)
	assert.Equal(t, len(out.Candidates), out.Applied.Inserted)
	assert.Zero(t, out.Applied.Updated)

	ivs, err := s.env.Store.ActiveIntervals(t.Context(), 1, 4)
	require.NoError(t, err)
	assert.Len(t, ivs, len(out.Candidates))

	// Researching again updates in place.
	rr = s.do(http.MethodPost, "/cars/4/research?apply=1", 1, map[string]any{
		"make": "Ford", "model": "F-250 Super Duty", "year": 2019, "engine_type": "diesel",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	again := decode[researchOutput](t, rr)
	assert.Zero(t, again.Applied.Inserted)
	assert.Equal(t, len(out.Candidates), again.Applied.Updated)

	logs, err := s.env.Store.ListResearchLogs(t.Context(), store.LogFilter{UserID: 1})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, int64(4), logs[0].CarID)
}

func TestServer_ResearchCarWithoutApply(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/cars/4/research", 1, map[string]any{"make": "Honda", "model": "Civic", "year": 2018})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, decode[researchOutput](t, rr).Applied)

	ivs, err := s.env.Store.ActiveIntervals(t.Context(), 1, 4)
	require.NoError(t, err)
	assert.Empty(t, ivs)
}

func TestServer_ListLogs(t *testing.T) {
	s := newTestServer(t)

	for _, v := range []map[string]any{
		{"make": "Toyota", "model": "Camry", "year": 2020},
		{"make": "Honda", "model": "Civic", "year": 2018},
		{"make": "toyota", "model": "RAV4", "year": 2021},
	} {
		require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/research", 0, v).Code)
	}

	type logsResp struct {
		Logs []model.ResearchLog `json:"logs"`
	}

	rr := s.do(http.MethodGet, "/logs?make=TOYOTA", 0, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[logsResp](t, rr).Logs, 2)

	rr = s.do(http.MethodGet, "/logs?limit=1&since=1h", 0, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[logsResp](t, rr).Logs, 1)

	rr = s.do(http.MethodGet, "/logs?failed=true", 0, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[logsResp](t, rr).Logs)

	rr = s.do(http.MethodGet, "/logs?limit=-1", 0, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/research", 0, map[string]any{"make": "Mazda", "year": 2021}).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/cars/1/intervals", 1, map[string]any{"service_item": "Oil Change", "interval_miles": 5000}).Code)

	rr := s.do(http.MethodGet, "/metrics", 0, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `intervals_research_requests_total{family="mazda",outcome="ok"} 1`)
	assert.Contains(t, body, `intervals_reconcile_writes_total{kind="insert"} 1`)
}

func TestServer_RateLimit(t *testing.T) {
	reg := prometheus.NewRegistry()
	env := newTestEnv(t, reg)
	h := newRouter(env, nil, config.ServerConfig{AllowedOrigins: []string{"*"}, RateLimit: 0.001, RateBurst: 1})

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	other := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.9:4000"
	h.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/research", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogFilterFromQuery(t *testing.T) {
	t.Parallel()
	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		query   string
		want    store.LogFilter
		wantErr string
	}{
		{name: "empty", query: ""},
		{name: "all fields", query: "make=Ford&user_id=5&failed=true&limit=10&offset=20&since=2026-02-01T00:00:00Z",
			want: store.LogFilter{Make: "Ford", UserID: 5, OnlyFailed: true, Limit: 10, Offset: 20, Since: since}},
		{name: "bad limit", query: "limit=ten", wantErr: "invalid limit"},
		{name: "negative offset", query: "offset=-3", wantErr: "invalid offset"},
		{name: "bad user", query: "user_id=x", wantErr: "invalid user_id"},
		{name: "bad failed", query: "failed=maybe", wantErr: "invalid failed"},
		{name: "bad since", query: "since=yesterday", wantErr: "invalid since"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := logFilterFromQuery(httptest.NewRequest(http.MethodGet, "/logs?"+tt.query, nil))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("duration since", func(t *testing.T) {
		t.Parallel()
		got, err := logFilterFromQuery(httptest.NewRequest(http.MethodGet, "/logs?since=2h", nil))
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(-2*time.Hour), got.Since, time.Minute)
	})
}
