package updates

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"emperror.dev/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/rusenback/dockerstats/internal/docker"
	"github.com/rusenback/dockerstats/internal/model"
	"github.com/rusenback/dockerstats/internal/storage"
)

type options struct {
	Interval time.Duration
	Tick     time.Duration
	Now      func() time.Time
	Observe  func(model.UpdateStatus)
}

func defaultOptions() *options {
	return &options{
		Interval: 60 * time.Second,
		Tick:     15 * time.Second,
		Now:      time.Now,
		Observe:  func(model.UpdateStatus) {},
	}
}

type Option func(*options)

// WithInterval sets how old a cached result may get before it is rechecked.
func WithInterval(d time.Duration) Option {
	return func(opts *options) {
		opts.Interval = d
	}
}

// WithTick sets how often the scheduler looks for due checks.
func WithTick(d time.Duration) Option {
	return func(opts *options) {
		opts.Tick = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(opts *options) {
		opts.Now = now
	}
}

// WithObserver is called with every check result.
func WithObserver(fn func(model.UpdateStatus)) Option {
	return func(opts *options) {
		opts.Observe = fn
	}
}

// Scheduler runs update checks in the background and writes the results to
// the store, where the sampler picks them up.
type Scheduler struct {
	engine  docker.Engine
	store   *storage.Store
	checker *Checker
	opts    *options

	cron    *cron.Cron
	trigger chan struct{}
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewScheduler(engine docker.Engine, store *storage.Store, checker *Checker, opts ...Option) *Scheduler {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Scheduler{
		engine:  engine,
		store:   store,
		checker: checker,
		opts:    o,
		trigger: make(chan struct{}, 1),
	}
}

// Start schedules runs every tick and serves Trigger until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@every "+s.opts.Tick.String(), func() { s.RunOnce(ctx) }); err != nil {
		s.cancel()
		return errors.WrapIf(err, "failed to schedule update checks")
	}
	s.cron.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.trigger:
				s.RunOnce(ctx)
			}
		}
	}()

	log.WithField("tick", s.opts.Tick).Info("update checker started")
	return nil
}

// Stop cancels any pass in progress and waits for it to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
}

// Trigger asks for a run as soon as possible. Calls while one is already
// pending are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// RunOnce performs every due check and returns how many were made. If
// another pass is in progress it returns 0 immediately.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	if !s.running.CompareAndSwap(false, true) {
		return 0
	}
	defer s.running.Store(false)

	containers, err := s.engine.ListContainers(ctx, false)
	if err != nil {
		log.WithError(err).Warn("update checker could not list containers")
		return 0
	}

	forceAll := s.store.TakeForceAll()
	checked := 0
	for _, c := range containers {
		if ctx.Err() != nil {
			break
		}
		if !s.store.Has(c.ID) {
			continue
		}
		forced := s.store.TakeForce(c.ID)
		if !s.due(c.ID, forced || forceAll) {
			continue
		}

		target, err := s.target(ctx, c)
		if err != nil {
			log.WithError(err).WithField("container", c.Name).Debug("update check skipped")
			continue
		}
		result := s.checker.Check(ctx, target)
		s.store.SetUpdateCheck(c.ID, result, s.opts.Now())
		s.opts.Observe(result)
		checked++
	}

	if checked > 0 {
		log.WithField("checked", checked).Debug("update checks done")
	}
	return checked
}

// target resolves the configured image reference of c. The listing reports
// the image ID instead once the tag has moved to another image.
func (s *Scheduler) target(ctx context.Context, c model.Container) (Target, error) {
	detail, err := s.engine.InspectContainer(ctx, c.ID, false)
	if err != nil {
		return Target{}, err
	}
	t := Target{ID: c.ID, ImageRef: detail.ImageRef, ImageID: detail.ImageID}
	if t.ImageRef == "" {
		t.ImageRef = c.Image
	}
	if t.ImageID == "" {
		t.ImageID = c.ImageID
	}
	return t, nil
}

func (s *Scheduler) due(id string, forced bool) bool {
	if forced {
		return true
	}
	check, ok := s.store.UpdateCheck(id)
	if !ok {
		return true
	}
	return s.opts.Now().Sub(check.CheckedAt) > s.opts.Interval
}
