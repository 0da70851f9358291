package updates

import (
	"context"
	"sync"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/rusenback/dockerstats/internal/docker"
	"github.com/rusenback/dockerstats/internal/model"
	"github.com/rusenback/dockerstats/internal/storage"
)

var (
	digestA = digest.FromString("a")
	digestB = digest.FromString("b")
)

func newEngine() *docker.Mock {
	m := docker.NewMock()
	m.AddImage(model.ImageDetail{ID: "sha256:nginx", RepoDigests: []string{"nginx@" + digestA.String()}})
	m.AddImage(model.ImageDetail{ID: "sha256:app", RepoDigests: []string{
		"other/app@" + digestB.String(),
		"registry.example.com:5000/team/app@" + digestA.String(),
	}})
	m.AddImage(model.ImageDetail{ID: "sha256:local"})
	return m
}

func TestChecker(t *testing.T) {
	tests := []struct {
		name     string
		target   Target
		registry map[string]digest.Digest
		expected model.UpdateStatus
	}{
		{
			name:     "current",
			target:   Target{ImageRef: "nginx:latest", ImageID: "sha256:nginx"},
			registry: map[string]digest.Digest{"nginx:latest": digestA},
			expected: model.UpdateCurrent,
		},
		{
			name:     "available",
			target:   Target{ImageRef: "nginx:latest", ImageID: "sha256:nginx"},
			registry: map[string]digest.Digest{"nginx:latest": digestB},
			expected: model.UpdateAvailable,
		},
		{
			name:     "implicit latest tag",
			target:   Target{ImageRef: "nginx", ImageID: "sha256:nginx"},
			registry: map[string]digest.Digest{"nginx:latest": digestB},
			expected: model.UpdateAvailable,
		},
		{
			name:     "private registry picks matching repo digest",
			target:   Target{ImageRef: "registry.example.com:5000/team/app:1.2", ImageID: "sha256:app"},
			registry: map[string]digest.Digest{"registry.example.com:5000/team/app:1.2": digestA},
			expected: model.UpdateCurrent,
		},
		{
			name:     "pinned by digest",
			target:   Target{ImageRef: "nginx@" + digestA.String(), ImageID: "sha256:nginx"},
			registry: map[string]digest.Digest{"nginx:latest": digestB},
			expected: model.UpdateUnknown,
		},
		{
			name:     "locally built image",
			target:   Target{ImageRef: "myapp:dev", ImageID: "sha256:local"},
			expected: model.UpdateUnknown,
		},
		{
			name:     "image gone",
			target:   Target{ImageRef: "nginx:latest", ImageID: "sha256:missing"},
			expected: model.UpdateUnknown,
		},
		{
			name:     "invalid reference",
			target:   Target{ImageRef: "Not A Ref", ImageID: "sha256:nginx"},
			expected: model.UpdateUnknown,
		},
		{
			name:     "image id as reference",
			target:   Target{ImageRef: "sha256:0123", ImageID: "sha256:nginx"},
			expected: model.UpdateUnknown,
		},
		{
			name:     "registry unreachable",
			target:   Target{ImageRef: "nginx:latest", ImageID: "sha256:nginx"},
			expected: model.UpdateUnknown,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			engine := newEngine()
			for ref, d := range test.registry {
				engine.SetRegistryDigest(ref, d)
			}
			checker := NewChecker(engine, nil)
			assert.Equal(t, test.expected, checker.Check(context.Background(), test.target))
		})
	}
}

func TestChecker_DigestPinnedSkipsRegistry(t *testing.T) {
	engine := newEngine()
	checker := NewChecker(engine, nil)
	checker.Check(context.Background(), Target{ImageRef: "nginx@" + digestA.String(), ImageID: "sha256:nginx"})
	assert.Zero(t, engine.RegistryCalls())
}

func TestChecker_RateLimited(t *testing.T) {
	engine := newEngine()
	engine.SetRegistryDigest("nginx:latest", digestA)
	checker := NewChecker(engine, rate.NewLimiter(rate.Every(time.Hour), 1))
	target := Target{ImageRef: "nginx:latest", ImageID: "sha256:nginx"}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.Equal(t, model.UpdateCurrent, checker.Check(ctx, target))
	assert.Equal(t, model.UpdateUnknown, checker.Check(ctx, target))
	assert.Equal(t, 1, engine.RegistryCalls())
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newScheduler(t *testing.T) (*Scheduler, *storage.Store, *docker.Mock, *clock) {
	t.Helper()
	engine := newEngine()
	engine.SetRegistryDigest("nginx:latest", digestA)
	engine.Add(docker.MockContainer{
		Container: model.Container{ID: "a", Name: "web", Image: "nginx:latest", ImageID: "sha256:nginx"},
		Detail:    model.ContainerDetail{ImageRef: "nginx:latest", ImageID: "sha256:nginx"},
	})
	engine.Add(docker.MockContainer{Container: model.Container{ID: "b", Name: "new", Image: "nginx:latest", ImageID: "sha256:nginx"}})

	store := storage.New(10)
	store.Record("a", model.MetricRecord{Name: "web"})

	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewScheduler(engine, store, NewChecker(engine, nil), WithClock(c.Now), WithInterval(60*time.Second))
	return s, store, engine, c
}

func TestScheduler_RunOnce(t *testing.T) {
	s, store, _, c := newScheduler(t)
	ctx := context.Background()

	require.Equal(t, 1, s.RunOnce(ctx), "only tracked containers are checked")
	assert.Equal(t, model.UpdateCurrent, store.UpdateStatus("a"))
	_, ok := store.UpdateCheck("b")
	assert.False(t, ok)

	assert.Zero(t, s.RunOnce(ctx), "fresh result is reused")

	c.Advance(60 * time.Second)
	assert.Zero(t, s.RunOnce(ctx))

	c.Advance(time.Second)
	assert.Equal(t, 1, s.RunOnce(ctx), "stale result is rechecked")
}

func TestScheduler_ForceFlags(t *testing.T) {
	s, store, engine, _ := newScheduler(t)
	ctx := context.Background()
	s.RunOnce(ctx)

	engine.SetRegistryDigest("nginx:latest", digestB)
	assert.Equal(t, model.UpdateCurrent, store.UpdateStatus("a"))

	store.ForceUpdateCheck("a")
	assert.Equal(t, 1, s.RunOnce(ctx))
	assert.Equal(t, model.UpdateAvailable, store.UpdateStatus("a"))
	assert.Zero(t, s.RunOnce(ctx), "force is one-shot")

	store.ForceAllUpdateChecks()
	assert.Equal(t, 1, s.RunOnce(ctx))
	assert.Zero(t, s.RunOnce(ctx))
}

func TestScheduler_ConfiguredReference(t *testing.T) {
	engine := newEngine()
	engine.SetRegistryDigest("nginx:latest", digestB)
	// tag moved after a pull, the listing shows the image ID
	engine.Add(docker.MockContainer{
		Container: model.Container{ID: "a", Name: "web", Image: "sha256:nginx", ImageID: "sha256:nginx"},
		Detail:    model.ContainerDetail{ImageRef: "nginx:latest", ImageID: "sha256:nginx"},
	})
	store := storage.New(10)
	store.Record("a", model.MetricRecord{Name: "web"})

	s := NewScheduler(engine, store, NewChecker(engine, nil))
	require.Equal(t, 1, s.RunOnce(context.Background()))
	assert.Equal(t, model.UpdateAvailable, store.UpdateStatus("a"))
}

func TestScheduler_InspectFailure(t *testing.T) {
	s, store, engine, _ := newScheduler(t)
	engine.InspectErr = errors.NewPlain("engine down")

	assert.Zero(t, s.RunOnce(context.Background()))
	_, ok := store.UpdateCheck("a")
	assert.False(t, ok)
}

func TestScheduler_ListFailure(t *testing.T) {
	s, store, engine, _ := newScheduler(t)
	engine.SetListErr(errors.NewPlain("engine down"))

	assert.Zero(t, s.RunOnce(context.Background()))
	_, ok := store.UpdateCheck("a")
	assert.False(t, ok)
}

func TestScheduler_Trigger(t *testing.T) {
	s, store, _, _ := newScheduler(t)
	s.opts.Tick = time.Hour

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	s.Trigger()
	s.Trigger()

	assert.Eventually(t, func() bool {
		_, ok := store.UpdateCheck("a")
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestScheduler_Observer(t *testing.T) {
	var mu sync.Mutex
	var seen []model.UpdateStatus
	_, store, engine, c := newScheduler(t)
	s := NewScheduler(engine, store, NewChecker(engine, nil), WithClock(c.Now), WithObserver(func(u model.UpdateStatus) {
		mu.Lock()
		seen = append(seen, u)
		mu.Unlock()
	}))

	s.RunOnce(context.Background())
	assert.Equal(t, []model.UpdateStatus{model.UpdateCurrent}, seen)
}
