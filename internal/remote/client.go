// Package remote is a client for the dockerstats HTTP API.
package remote

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/goccy/go-json"

	"github.com/rusenback/dockerstats/internal/model"
)

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.NewPlain("not found")

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return "HTTP " + strconv.Itoa(e.Code) + ": " + e.Message
}

// Client talks to one dockerstats server.
type Client struct {
	url      string
	user     string
	password string
	http     *http.Client
}

// NewClient creates a client for baseURL, e.g. http://localhost:5000.
// Empty credentials disable basic auth.
func NewClient(baseURL, user, password string) *Client {
	return &Client{
		url:      strings.TrimRight(baseURL, "/"),
		user:     user,
		password: password,
		// actions stream for as long as a pull takes, so no overall timeout
		http: &http.Client{},
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url+endpoint, body)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to build request")
	}
	if c.user != "" || c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "request failed", "endpoint", endpoint)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(msg, &apiErr) == nil && apiErr.Error != "" {
		msg = []byte(apiErr.Error)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.WithDetails(ErrNotFound, "endpoint", endpoint)
	}
	return nil, &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return errors.WrapIfWithDetails(err, "failed to decode response", "endpoint", endpoint)
	}
	return nil
}

// MetricsQuery mirrors the /api/metrics parameters.
type MetricsQuery struct {
	Name    string
	Status  string
	Project string
	Sort    string
	Asc     bool
	Max     int
	Force   bool
}

func (q MetricsQuery) encode() string {
	params := url.Values{}
	if q.Name != "" {
		params.Set("name", q.Name)
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.Project != "" {
		params.Set("project", q.Project)
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if q.Asc {
		params.Set("dir", "asc")
	}
	if q.Max > 0 {
		params.Set("max", strconv.Itoa(q.Max))
	}
	if q.Force {
		params.Set("force", "true")
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

func (c *Client) Metrics(ctx context.Context, q MetricsQuery) ([]model.Row, error) {
	var rows []model.Row
	if err := c.getJSON(ctx, "/api/metrics"+q.encode(), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// History fetches the series of id over window. A zero bucket lets the server
// pick one for the window.
func (c *Client) History(ctx context.Context, id string, window, bucket time.Duration) (model.Series, error) {
	params := url.Values{}
	params.Set("range", strconv.FormatInt(int64(window/time.Second), 10))
	if bucket > 0 {
		params.Set("bucket", bucket.String())
	} else {
		params.Set("bucket", "auto")
	}

	var series model.Series
	err := c.getJSON(ctx, "/api/history/"+url.PathEscape(id)+"?"+params.Encode(), &series)
	return series, err
}

func (c *Client) Processes(ctx context.Context, id string) ([]model.Process, error) {
	var procs []model.Process
	if err := c.getJSON(ctx, "/api/containers/"+url.PathEscape(id)+"/top", &procs); err != nil {
		return nil, err
	}
	return procs, nil
}

// Logs returns the last tail lines of id.
func (c *Client) Logs(ctx context.Context, id string, tail int) ([]string, error) {
	endpoint := "/api/logs/" + url.PathEscape(id) + "?tail=" + strconv.Itoa(tail)
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var lines []string
	err = readLines(resp.Body, func(line string) { lines = append(lines, line) })
	return lines, err
}

// Action runs action against id and hands every progress line to emit as it
// arrives. Failures reported in-band are returned as an error too.
func (c *Client) Action(ctx context.Context, id, action string, emit func(string)) error {
	endpoint := "/api/containers/" + url.PathEscape(id) + "/" + url.PathEscape(action)
	resp, err := c.do(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var failure string
	err = readLines(resp.Body, func(line string) {
		if strings.HasPrefix(line, "Error: ") {
			failure = strings.TrimPrefix(line, "Error: ")
		}
		emit(line)
	})
	if err != nil {
		return err
	}
	if failure != "" {
		return errors.NewWithDetails(failure, "container", id, "action", action)
	}
	return nil
}

func readLines(r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	return errors.WrapIf(scanner.Err(), "failed to read stream")
}
