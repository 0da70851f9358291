// Package query answers read-only questions over the history store: the
// latest row per container, a time series for one container and top-N
// comparisons. Live container detail is merged in at query time.
package query

import (
	"context"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
	"github.com/jellydator/ttlcache/v3"
	"github.com/shirou/gopsutil/mem"
	log "github.com/sirupsen/logrus"

	"github.com/rusenback/dockerstats/internal/docker"
	"github.com/rusenback/dockerstats/internal/metrics"
	"github.com/rusenback/dockerstats/internal/model"
	"github.com/rusenback/dockerstats/internal/storage"
)

var (
	// ErrUnknownEntity means the id was never sampled or has been purged.
	ErrUnknownEntity = errors.NewPlain("no history found for this container ID")
	// ErrInvalidMetric is returned by TopN for an unsupported comparison.
	ErrInvalidMetric = errors.NewPlain("invalid comparison type")
)

// DefaultRangeSeconds is used when a series is requested without a range.
const DefaultRangeSeconds = 86400

const (
	uptimeRemoved = "N/A (Removed)"
	uptimeError   = "Error Fetching"
	uptimeExited  = "N/A (Exited)"
	notAvailable  = "N/A"
)

// Filter narrows Snapshot. Empty fields match everything.
type Filter struct {
	Name    string
	Status  string
	Project string
}

// Sort orders Snapshot rows by a row field.
type Sort struct {
	Key  string
	Desc bool
}

type detailResult struct {
	detail *model.ContainerDetail
	err    error
}

type options struct {
	DetailTTL  time.Duration
	Now        func() time.Time
	HostMemory func() (uint64, error)
}

func defaultOptions() *options {
	return &options{
		DetailTTL: 5 * time.Second,
		Now:       time.Now,
		HostMemory: func() (uint64, error) {
			vm, err := mem.VirtualMemory()
			if err != nil {
				return 0, err
			}
			return vm.Total, nil
		},
	}
}

type Option func(*options)

// WithDetailTTL sets how long engine detail lookups are reused.
func WithDetailTTL(d time.Duration) Option {
	return func(opts *options) {
		opts.DetailTTL = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(opts *options) {
		opts.Now = now
	}
}

// WithHostMemory replaces the host total memory lookup used when a container
// has no memory limit.
func WithHostMemory(fn func() (uint64, error)) Option {
	return func(opts *options) {
		opts.HostMemory = fn
	}
}

type Service struct {
	engine  docker.Engine
	store   *storage.Store
	opts    *options
	details *ttlcache.Cache[string, detailResult]
	hostMem func() (uint64, error)
}

func New(engine docker.Engine, store *storage.Store, opts ...Option) *Service {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	details := ttlcache.New(
		ttlcache.WithTTL[string, detailResult](o.DetailTTL),
		ttlcache.WithDisableTouchOnHit[string, detailResult](),
	)
	go details.Start()

	return &Service{
		engine:  engine,
		store:   store,
		opts:    o,
		details: details,
		hostMem: sync.OnceValues(o.HostMemory),
	}
}

// Close stops the detail cache janitor.
func (s *Service) Close() {
	s.details.Stop()
}

// Invalidate forgets cached detail for id, e.g. after a control action.
func (s *Service) Invalidate(id string) {
	s.details.Delete(id)
}

func (s *Service) detail(ctx context.Context, id string) (*model.ContainerDetail, error) {
	if item := s.details.Get(id); item != nil {
		res := item.Value()
		return res.detail, res.err
	}
	detail, err := s.engine.InspectContainer(ctx, id, true)
	s.details.Set(id, detailResult{detail: detail, err: err}, ttlcache.DefaultTTL)
	return detail, err
}

// Snapshot returns the latest row of every tracked container that passes
// filter, sorted, truncated to limit when limit > 0.
func (s *Service) Snapshot(ctx context.Context, filter Filter, order Sort, limit int) []model.Row {
	name := strings.ToLower(strings.TrimSpace(filter.Name))
	status := strings.TrimSpace(filter.Status)
	project := strings.TrimSpace(filter.Project)

	rows := make([]model.Row, 0)
	for _, id := range s.store.IDs() {
		latest, ok := s.store.Latest(id)
		if !ok {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(latest.Name), name) {
			continue
		}

		row := s.row(ctx, id, latest)
		if status != "" && row.Status != status {
			continue
		}
		if project != "" && row.ComposeProject != project {
			continue
		}
		rows = append(rows, row)
	}

	SortRows(rows, order)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func (s *Service) row(ctx context.Context, id string, latest model.MetricRecord) model.Row {
	row := model.Row{
		ID:              id,
		Name:            latest.Name,
		PIDCount:        latest.PIDs,
		CPU:             latest.CPUPercent,
		Mem:             latest.MemPercent,
		MemUsage:        metrics.Round2(latest.MemUsageMiB),
		Combined:        latest.CPUPercent + latest.MemPercent,
		Status:          string(latest.Status),
		Uptime:          notAvailable,
		NetRx:           latest.NetRxMB,
		NetTx:           latest.NetTxMB,
		BlockRead:       latest.BlockReadMB,
		BlockWrite:      latest.BlockWriteMB,
		Image:           notAvailable,
		Ports:           notAvailable,
		UpdateAvailable: latest.UpdateAvailable,
	}

	var memLimit int64
	detail, err := s.detail(ctx, id)
	switch {
	case err == nil:
		s.applyDetail(&row, detail)
		memLimit = detail.MemoryLimit
	case docker.IsNotFound(err):
		row.Uptime = uptimeRemoved
	default:
		log.WithError(err).WithField("container", id).Warn("failed to fetch container detail")
		row.Uptime = uptimeError
	}

	if memLimit <= 0 {
		if total, err := s.hostMem(); err == nil {
			memLimit = int64(total)
		}
	}
	if memLimit > 0 {
		row.MemLimit = mb(memLimit)
	}
	return row
}

func (s *Service) applyDetail(row *model.Row, detail *model.ContainerDetail) {
	row.Status = detail.Status
	row.Image = detail.Image
	row.Ports = detail.Ports
	if row.Ports == "" {
		row.Ports = "None"
	}
	row.Restarts = detail.RestartCount
	row.ComposeProject = detail.Project()
	row.ComposeService = detail.Service()
	if detail.SizeRw != nil {
		row.SizeRw = mb(*detail.SizeRw)
	}
	if detail.SizeRootFs != nil {
		row.SizeRootFs = mb(*detail.SizeRootFs)
	}

	switch {
	case detail.Status == "running" && !detail.StartedAt.IsZero():
		sec := int64(s.opts.Now().Sub(detail.StartedAt).Seconds())
		if sec < 0 {
			sec = 0
		}
		row.UptimeSec = &sec
		row.Uptime = metrics.FormatUptime(sec)
	case detail.Status == "exited":
		row.Uptime = uptimeExited
	}
}

func mb(b int64) *float64 {
	v := metrics.Round2(datasize.ByteSize(b).MBytes())
	return &v
}

// Series returns CPU and memory points of id for the last rangeSeconds,
// averaged into buckets when bucket > 0.
func (s *Service) Series(id string, rangeSeconds int64, bucket time.Duration) (model.Series, error) {
	if rangeSeconds <= 0 {
		rangeSeconds = DefaultRangeSeconds
	}
	since := s.opts.Now().Add(-time.Duration(rangeSeconds) * time.Second)

	records, ok := s.store.Range(id, since)
	if !ok {
		return model.Series{}, errors.WithDetails(ErrUnknownEntity, "container", id)
	}
	records = storage.Downsample(records, bucket)

	series := model.Series{
		ContainerID:  id,
		RangeSeconds: rangeSeconds,
		Timestamps:   make([]float64, 0, len(records)),
		CPUUsage:     make([]float64, 0, len(records)),
		RAMUsage:     make([]float64, 0, len(records)),
	}
	for _, r := range records {
		series.Timestamps = append(series.Timestamps, float64(r.Timestamp.UnixNano())/1e9)
		series.CPUUsage = append(series.CPUUsage, r.CPUPercent)
		series.RAMUsage = append(series.RAMUsage, r.MemPercent)
	}
	return series, nil
}

// compareKeys maps a comparison type onto the row field it ranks by.
var compareKeys = map[string]string{
	"usage":  KeyCombined,
	"size":   KeySizeRw,
	"uptime": KeyUptimeSec,
}

// DefaultTopN is used when TopN is asked for a non-positive count.
const DefaultTopN = 5

// TopN ranks every tracked container by metric, highest first.
func (s *Service) TopN(ctx context.Context, metric string, n int) ([]model.Row, error) {
	key, ok := compareKeys[metric]
	if !ok {
		return nil, errors.WithDetails(ErrInvalidMetric, "type", metric)
	}
	if n <= 0 {
		n = DefaultTopN
	}
	return s.Snapshot(ctx, Filter{}, Sort{Key: key, Desc: true}, n), nil
}
