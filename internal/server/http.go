package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/rusenback/dockerstats/internal/control"
	"github.com/rusenback/dockerstats/internal/docker"
	"github.com/rusenback/dockerstats/internal/model"
	"github.com/rusenback/dockerstats/internal/query"
	"github.com/rusenback/dockerstats/internal/storage"
)

const defaultLogTail = 200

func (s *Server) registerRoutes() {
	if s.telemetry != nil {
		s.router.Use(s.telemetry.Middleware)
		s.router.Handle("/metrics", s.telemetry.Handler()).Methods(http.MethodGet)
	}
	s.router.Use(s.basicAuth)

	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/api/metrics", s.metrics).Methods(http.MethodGet)
	s.router.HandleFunc("/api/export/csv", s.exportCSV).Methods(http.MethodGet)
	s.router.HandleFunc("/api/export/csv", s.exportPostedCSV).Methods(http.MethodPost)
	s.router.HandleFunc("/api/history/{id}", s.history).Methods(http.MethodGet)
	s.router.HandleFunc("/api/compare/{type}", s.compare).Methods(http.MethodGet)
	s.router.HandleFunc("/api/logs/{id}", s.logs).Methods(http.MethodGet)
	s.router.HandleFunc("/api/containers/{id}/top", s.processes).Methods(http.MethodGet)
	s.router.HandleFunc("/api/containers/{id}/{action}", s.action).Methods(http.MethodPost)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		log.WithError(err).Warn("engine ping failed")
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// snapshot reads the filter, sort and limit parameters shared by the metrics
// and csv endpoints.
func (s *Server) snapshot(r *http.Request) []model.Row {
	q := r.URL.Query()
	filter := query.Filter{
		Name:    q.Get("name"),
		Status:  q.Get("status"),
		Project: q.Get("project"),
	}
	order := query.Sort{
		Key:  q.Get("sort"),
		Desc: !strings.EqualFold(q.Get("dir"), "asc"),
	}
	if order.Key == "" {
		order.Key = query.KeyCombined
	}
	return s.queries.Snapshot(r.Context(), filter, order, intParam(q.Get("max"), 0))
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("force") == "true" {
		log.Debug("forced update check requested")
		s.cfg.ForceRefresh()
	}
	writeJSON(w, http.StatusOK, s.snapshot(r))
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	writeCSV(w, s.snapshot(r))
}

type exportRequest struct {
	Metrics []model.Row `json:"metrics"`
}

// exportPostedCSV converts rows held by the client, e.g. a filtered view.
func (s *Server) exportPostedCSV(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 8<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid export body")
		return
	}
	writeCSV(w, req.Metrics)
}

func writeCSV(w http.ResponseWriter, rows []model.Row) {
	name := "container_metrics_" + time.Now().Format("20060102_150405") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if err := query.WriteCSV(w, rows); err != nil {
		log.WithError(err).Error("failed to write csv export")
	}
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()
	rangeSeconds := int64(intParam(q.Get("range"), query.DefaultRangeSeconds))
	if rangeSeconds <= 0 {
		rangeSeconds = query.DefaultRangeSeconds
	}
	bucket := parseBucket(q.Get("bucket"), time.Duration(rangeSeconds)*time.Second)

	series, err := s.queries.Series(id, rangeSeconds, bucket)
	if errors.Is(err, query.ErrUnknownEntity) {
		writeError(w, http.StatusNotFound, "No history found for this container ID")
		return
	}
	if err != nil {
		log.WithError(err).WithField("container", id).Error("failed to build history")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// parseBucket accepts "auto", a Go duration or plain seconds. Anything else
// means full resolution.
func parseBucket(v string, window time.Duration) time.Duration {
	switch {
	case v == "":
		return 0
	case v == "auto":
		return storage.BucketFor(window)
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return 0
}

func (s *Server) compare(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["type"]
	n := intParam(r.URL.Query().Get("topN"), query.DefaultTopN)
	rows, err := s.queries.TopN(r.Context(), kind, n)
	if errors.Is(err, query.ErrInvalidMetric) {
		writeError(w, http.StatusBadRequest, "Invalid comparison type")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) logs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()
	tail := intParam(q.Get("tail"), defaultLogTail)
	timestamps := q.Get("timestamps") != "false"

	rc, err := s.engine.ContainerLogs(r.Context(), id, tail, timestamps)
	if docker.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "container not found")
		return
	}
	if err != nil {
		log.WithError(err).WithField("container", id).Error("failed to open container logs")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(flushWriter{w}, rc); err != nil && r.Context().Err() == nil {
		log.WithError(err).WithField("container", id).Warn("log stream interrupted")
		_, _ = io.WriteString(w, "\n--- Error streaming logs: "+err.Error()+" ---\n")
	}
}

func (s *Server) processes(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	procs, err := s.engine.ListProcesses(r.Context(), id)
	if docker.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "container not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if procs == nil {
		procs = []model.Process{}
	}
	writeJSON(w, http.StatusOK, procs)
}

// action streams one progress line per step. Rejections that happen before
// the first line get a proper status code; later failures arrive in-band.
func (s *Server) action(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, action := vars["id"], vars["action"]

	stream := &lineStream{w: w}
	err := s.control.Perform(r.Context(), id, action, stream.emit)
	if stream.started {
		return
	}
	switch {
	case err == nil:
		stream.start()
	case errors.Is(err, control.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, "invalid action "+strconv.Quote(action))
	case docker.IsNotFound(err):
		writeError(w, http.StatusNotFound, "container not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type lineStream struct {
	w       http.ResponseWriter
	started bool
}

func (l *lineStream) start() {
	l.started = true
	l.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	l.w.Header().Set("X-Content-Type-Options", "nosniff")
	l.w.WriteHeader(http.StatusOK)
}

func (l *lineStream) emit(line string) {
	if !l.started {
		l.start()
	}
	_, _ = io.WriteString(l.w, line+"\n")
	if f, ok := l.w.(http.Flusher); ok {
		f.Flush()
	}
}

type flushWriter struct {
	w http.ResponseWriter
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if fl, ok := f.w.(http.Flusher); ok {
		fl.Flush()
	}
	return n, err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("failed to encode response")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// intParam parses v, returning def when it is empty or malformed.
func intParam(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
