package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rusenback/dockerstats/internal/control"
	"github.com/rusenback/dockerstats/internal/docker"
	"github.com/rusenback/dockerstats/internal/model"
	"github.com/rusenback/dockerstats/internal/query"
	"github.com/rusenback/dockerstats/internal/storage"
	"github.com/rusenback/dockerstats/internal/telemetry"
)

type fixture struct {
	engine *docker.Mock
	store  *storage.Store
	server *Server
	forced int
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{engine: docker.NewMock(), store: storage.New(100)}

	f.engine.Add(docker.MockContainer{
		Container: model.Container{ID: "web1", Name: "web"},
		Detail:    model.ContainerDetail{Image: "nginx:latest", ImageRef: "nginx:latest"},
		Logs:      "one\ntwo\nthree\n",
		Processes: []model.Process{{PID: "1", User: "root", Command: "nginx: master process"}},
	})
	f.engine.Add(docker.MockContainer{
		Container: model.Container{ID: "db1", Name: "db"},
		Detail:    model.ContainerDetail{Image: "postgres:16", ImageRef: "postgres:16"},
	})
	f.engine.PullOutput = `{"status":"Status: Image is up to date for nginx:latest"}` + "\n"

	now := time.Now()
	f.store.Record("web1", model.MetricRecord{Timestamp: now.Add(-10 * time.Second), Name: "web", Status: model.StatusRunning, CPUPercent: 5, MemPercent: 20})
	f.store.Record("web1", model.MetricRecord{Timestamp: now, Name: "web", Status: model.StatusRunning, CPUPercent: 10, MemPercent: 20})
	f.store.Record("db1", model.MetricRecord{Timestamp: now, Name: "db", Status: model.StatusRunning, CPUPercent: 50, MemPercent: 5})

	queries := query.New(f.engine, f.store, query.WithHostMemory(func() (uint64, error) { return 8 << 30, nil }))
	t.Cleanup(queries.Close)
	exporter := telemetry.New(func() int { return len(f.store.IDs()) })
	ctrl := control.New(f.engine, f.store)

	opts = append([]Option{WithForceRefresh(func() { f.forced++ })}, opts...)
	f.server = New(f.engine, queries, ctrl, exporter, opts...)
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeRows(t *testing.T, rec *httptest.ResponseRecorder) []model.Row {
	t.Helper()
	var rows []model.Row
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	return rows
}

func names(rows []model.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Name)
	}
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{"default sorts by combined desc", "/api/metrics", []string{"db", "web"}},
		{"ascending cpu", "/api/metrics?sort=cpu&dir=asc", []string{"web", "db"}},
		{"name filter", "/api/metrics?name=%20WE%20", []string{"web"}},
		{"limit", "/api/metrics?max=1", []string{"db"}},
		{"bad limit ignored", "/api/metrics?max=lots", []string{"db", "web"}},
		{"status filter", "/api/metrics?status=exited", []string{}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, test.target, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, test.want, names(decodeRows(t, rec)))
		})
	}
	assert.Zero(t, f.forced)
}

func TestMetrics_EmptyIsArray(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/metrics?name=nothing", "")
	assert.Equal(t, "[]", rec.Body.String())
}

func TestMetrics_Force(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodGet, "/api/metrics?force=true", "")
	f.do(http.MethodGet, "/api/metrics?force=1", "")
	assert.Equal(t, 1, f.forced)
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/export/csv?sort=name&dir=asc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(query.CSVHeader, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "db1,db,"))

	rec = f.do(http.MethodPost, "/api/export/csv", `{"metrics":[{"id":"x","name":"posted","update_available":true}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	lines = strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "x,posted,"))

	rec = f.do(http.MethodPost, "/api/export/csv", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/history/web1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var series model.Series
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	assert.Equal(t, "web1", series.ContainerID)
	assert.Equal(t, int64(query.DefaultRangeSeconds), series.RangeSeconds)
	assert.Equal(t, []float64{5, 10}, series.CPUUsage)
	assert.Equal(t, []float64{20, 20}, series.RAMUsage)

	rec = f.do(http.MethodGet, "/api/history/web1?range=-5", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	assert.Equal(t, int64(query.DefaultRangeSeconds), series.RangeSeconds)

	rec = f.do(http.MethodGet, "/api/history/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"No history found for this container ID"}`, rec.Body.String())
}

func TestParseBucket(t *testing.T) {
	day := 24 * time.Hour
	assert.Equal(t, time.Duration(0), parseBucket("", day))
	assert.Equal(t, 10*time.Minute, parseBucket("auto", day))
	assert.Equal(t, 5*time.Minute, parseBucket("5m", day))
	assert.Equal(t, 30*time.Second, parseBucket("30", day))
	assert.Equal(t, time.Duration(0), parseBucket("-1", day))
	assert.Equal(t, time.Duration(0), parseBucket("soon", day))
}

func TestCompare(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/compare/usage?topN=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"db"}, names(decodeRows(t, rec)))

	rec = f.do(http.MethodGet, "/api/compare/usage?topN=zero", "")
	assert.Len(t, decodeRows(t, rec), 2)

	rec = f.do(http.MethodGet, "/api/compare/color", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid comparison type"}`, rec.Body.String())
}

func TestLogs(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/logs/web1?tail=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "two\nthree\n", rec.Body.String())
	assert.True(t, rec.Flushed)

	rec = f.do(http.MethodGet, "/api/logs/web1", "")
	assert.Equal(t, "one\ntwo\nthree\n", rec.Body.String())

	rec = f.do(http.MethodGet, "/api/logs/gone", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcesses(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/containers/web1/top", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var procs []model.Process
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &procs))
	require.Len(t, procs, 1)
	assert.Equal(t, "nginx: master process", procs[0].Command)

	rec = f.do(http.MethodGet, "/api/containers/db1/top", "")
	assert.Equal(t, "[]", rec.Body.String())

	rec = f.do(http.MethodGet, "/api/containers/gone/top", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAction(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/containers/web1/restart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Restarting web...\nweb restarted\n", rec.Body.String())

	rec = f.do(http.MethodPost, "/api/containers/web1/update", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pulling nginx:latest...\n"+
		"Status: Image is up to date for nginx:latest\n"+
		"Restarting web...\nweb restarted\nUpdate check scheduled\n", rec.Body.String())

	rec = f.do(http.MethodPost, "/api/containers/web1/explode", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/containers/gone/stop", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/api/containers/web1/stop", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	assert.Equal(t, []string{"restart:web1", "pull:nginx:latest", "restart:web1"}, f.engine.Calls())
}

func TestAction_FailureInBand(t *testing.T) {
	f := newFixture(t)
	f.engine.ActionErr = assert.AnError

	rec := f.do(http.MethodPost, "/api/containers/web1/start", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Starting web...\nError: "+assert.AnError.Error()+"\n", rec.Body.String())
}

func TestBasicAuth(t *testing.T) {
	f := newFixture(t, WithBasicAuth("admin", "s3cret"))

	rec := f.do(http.MethodGet, "/api/metrics", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	for _, creds := range [][2]string{{"admin", "wrong"}, {"root", "s3cret"}} {
		req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
		req.SetBasicAuth(creds[0], creds[1])
		rec = httptest.NewRecorder()
		f.server.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/metrics", "").Code)
}

func TestPrometheusEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodGet, "/api/metrics", "")

	rec := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `dockerstats_http_requests_total{code="200",route="/api/metrics"} 1`)
	assert.Contains(t, body, "dockerstats_tracked_containers 2")
}
