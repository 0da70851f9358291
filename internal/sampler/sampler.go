// Package sampler polls the engine on a fixed interval and appends one
// derived record per running container to the history store.
package sampler

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rusenback/dockerstats/internal/docker"
	"github.com/rusenback/dockerstats/internal/metrics"
	"github.com/rusenback/dockerstats/internal/model"
	"github.com/rusenback/dockerstats/internal/storage"
)

// Report summarises one sampling cycle.
type Report struct {
	Started    time.Time
	Duration   time.Duration
	Running    int
	Sampled    int
	Errors     int
	Purged     int
	Dropped    int
	ListFailed bool
}

type options struct {
	Interval time.Duration
	Workers  int
	Now      func() time.Time
	Observe  func(Report)
}

func defaultOptions() *options {
	return &options{
		Interval: 5 * time.Second,
		Workers:  4,
		Now:      time.Now,
		Observe:  func(Report) {},
	}
}

type Option func(*options)

func WithInterval(d time.Duration) Option {
	return func(opts *options) {
		opts.Interval = d
	}
}

// WithWorkers bounds how many containers are sampled at once.
func WithWorkers(n int) Option {
	return func(opts *options) {
		opts.Workers = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(opts *options) {
		opts.Now = now
	}
}

// WithObserver is called after every cycle, including failed ones.
func WithObserver(fn func(Report)) Option {
	return func(opts *options) {
		opts.Observe = fn
	}
}

type Sampler struct {
	engine docker.Engine
	store  *storage.Store
	opts   *options
}

func New(engine docker.Engine, store *storage.Store, opts ...Option) *Sampler {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	return &Sampler{engine: engine, store: store, opts: o}
}

// Run samples until ctx is cancelled. A cycle that has started is always
// completed; cancellation is only observed between cycles.
func (s *Sampler) Run(ctx context.Context) {
	log.WithFields(log.Fields{"interval": s.opts.Interval, "workers": s.opts.Workers}).Info("sampler started")
	defer log.Info("sampler stopped")

	cycleCtx := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			return
		}

		wait := s.opts.Interval
		report, err := s.Cycle(cycleCtx)
		if err != nil {
			log.WithError(err).Errorf("listing running containers failed, retrying in %s", 2*s.opts.Interval)
			wait = 2 * s.opts.Interval
		}
		s.opts.Observe(report)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Cycle performs one sampling pass followed by reconciliation. The returned
// error is non-nil only when the running containers could not be listed, in
// which case nothing was sampled or reconciled.
func (s *Sampler) Cycle(ctx context.Context) (Report, error) {
	report := Report{Started: s.opts.Now()}

	running, err := s.engine.ListContainers(ctx, false)
	if err != nil {
		report.ListFailed = true
		report.Duration = s.opts.Now().Sub(report.Started)
		return report, err
	}
	report.Running = len(running)

	var sampled, failed, purged atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.opts.Workers)
	for _, c := range running {
		c := c
		g.Go(func() error {
			switch s.sample(ctx, c) {
			case outcomeSampled:
				sampled.Add(1)
			case outcomeError:
				failed.Add(1)
			case outcomePurged:
				purged.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Sampled = int(sampled.Load())
	report.Errors = int(failed.Load())
	report.Purged = int(purged.Load())

	runningIDs := make([]string, 0, len(running))
	for _, c := range running {
		runningIDs = append(runningIDs, c.ID)
	}

	var allIDs []string
	all, err := s.engine.ListContainers(ctx, true)
	if err != nil {
		log.WithError(err).Warn("full container listing failed, skipping history cleanup")
	} else {
		allIDs = make([]string, 0, len(all))
		for _, c := range all {
			allIDs = append(allIDs, c.ID)
		}
	}

	dropped, removed := s.store.Reconcile(runningIDs, allIDs)
	report.Dropped = len(dropped)
	report.Purged += len(removed)
	for _, id := range removed {
		log.WithField("container", shortID(id)).Debug("container removed, history purged")
	}

	report.Duration = s.opts.Now().Sub(report.Started)
	return report, nil
}

type outcome int

const (
	outcomeSampled outcome = iota
	outcomeError
	outcomePurged
)

func (s *Sampler) sample(ctx context.Context, c model.Container) outcome {
	logger := log.WithFields(log.Fields{"container": shortID(c.ID), "name": c.Name})

	snap, err := s.engine.StatsSnapshot(ctx, c.ID)
	if docker.IsNotFound(err) {
		// stopped and removed between list and stats
		s.store.Purge(c.ID)
		logger.Debug("container vanished while sampling")
		return outcomePurged
	}
	if err != nil {
		logger.WithError(err).Warn("sampling failed")
		s.store.Record(c.ID, model.ErrorRecord(c.Name, s.opts.Now()))
		return outcomeError
	}

	previous := s.store.Previous(c.ID)
	memPercent, memUsage := metrics.MemPercentAndUsage(snap)
	rx, tx := metrics.NetIO(snap)
	blkRead, blkWrite := metrics.BlockIO(snap)

	s.store.Record(c.ID, model.MetricRecord{
		Timestamp:       s.opts.Now(),
		CPUPercent:      metrics.CPUPercent(snap, previous),
		MemPercent:      memPercent,
		MemUsageMiB:     memUsage,
		Status:          model.StatusRunning,
		Name:            c.Name,
		NetRxMB:         rx,
		NetTxMB:         tx,
		BlockReadMB:     blkRead,
		BlockWriteMB:    blkWrite,
		PIDs:            metrics.PIDs(snap),
		UpdateAvailable: s.store.UpdateStatus(c.ID),
	})
	s.store.SetPrevious(c.ID, snap)
	return outcomeSampled
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
