package docker

import (
	"context"
	"io"
	"strings"
	"sync"

	"emperror.dev/errors"
	"github.com/opencontainers/go-digest"

	"github.com/rusenback/dockerstats/internal/model"
)

// MockContainer is one container known to a Mock engine.
type MockContainer struct {
	Container model.Container
	Detail    model.ContainerDetail
	// Snapshots are handed out in order; the last one repeats.
	Snapshots []*model.RawSnapshot
	StatsErr  error
	Logs      string
	Processes []model.Process
}

// Mock is an in-memory Engine for tests.
type Mock struct {
	mu sync.Mutex

	containers map[string]*MockContainer
	order      []string
	images     map[string]model.ImageDetail
	registry   map[string]digest.Digest

	ListErr     error
	ListAllErr  error
	InspectErr  error
	RegistryErr error
	PullOutput  string
	PullErr     error
	ActionErr   error

	registryCalls int
	statsCalls    map[string]int
	calls         []string
}

func NewMock() *Mock {
	return &Mock{
		containers: make(map[string]*MockContainer),
		images:     make(map[string]model.ImageDetail),
		registry:   make(map[string]digest.Digest),
		statsCalls: make(map[string]int),
	}
}

// Add registers a container. State defaults to running.
func (m *Mock) Add(c MockContainer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Container.State == "" {
		c.Container.State = "running"
	}
	if c.Detail.ID == "" {
		c.Detail.ID = c.Container.ID
	}
	if c.Detail.Name == "" {
		c.Detail.Name = c.Container.Name
	}
	if c.Detail.Status == "" {
		c.Detail.Status = c.Container.State
	}
	if c.Detail.Labels == nil {
		c.Detail.Labels = c.Container.Labels
	}
	id := c.Container.ID
	if _, ok := m.containers[id]; !ok {
		m.order = append(m.order, id)
	}
	m.containers[id] = &c
}

// Remove deletes a container as `docker rm` would.
func (m *Mock) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.containers, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// SetState changes the lifecycle state of a container.
func (m *Mock) SetState(id, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.containers[id]; ok {
		c.Container.State = state
		c.Detail.Status = state
	}
}

// SetStatsErr makes StatsSnapshot fail for id.
func (m *Mock) SetStatsErr(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.containers[id]; ok {
		c.StatsErr = err
	}
}

// AddImage registers a local image.
func (m *Mock) AddImage(img model.ImageDetail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[img.ID] = img
}

// SetRegistryDigest sets what the registry reports for ref.
func (m *Mock) SetRegistryDigest(ref string, d digest.Digest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[ref] = d
}

// RegistryCalls returns how many registry lookups were made.
func (m *Mock) RegistryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registryCalls
}

// StatsCalls returns how many snapshots were requested for id.
func (m *Mock) StatsCalls(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsCalls[id]
}

// Calls returns the recorded mutating calls, e.g. "restart:abc".
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *Mock) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Mock) ListContainers(ctx context.Context, all bool) ([]model.Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if all && m.ListAllErr != nil {
		return nil, m.ListAllErr
	}
	if !all && m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []model.Container
	for _, id := range m.order {
		c := m.containers[id]
		if all || c.Container.Running() {
			out = append(out, c.Container)
		}
	}
	return out, nil
}

func (m *Mock) lookup(id string) (*MockContainer, error) {
	c, ok := m.containers[id]
	if !ok {
		return nil, notFound("No such container: %s", id)
	}
	return c, nil
}

func (m *Mock) StatsSnapshot(ctx context.Context, id string) (*model.RawSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	n := m.statsCalls[id]
	m.statsCalls[id] = n + 1
	if c.StatsErr != nil {
		return nil, c.StatsErr
	}
	if len(c.Snapshots) == 0 {
		return &model.RawSnapshot{}, nil
	}
	if n >= len(c.Snapshots) {
		n = len(c.Snapshots) - 1
	}
	return c.Snapshots[n], nil
}

func (m *Mock) InspectContainer(ctx context.Context, id string, withSize bool) (*model.ContainerDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InspectErr != nil {
		return nil, m.InspectErr
	}
	c, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	detail := c.Detail
	if !withSize {
		detail.SizeRw, detail.SizeRootFs = nil, nil
	}
	return &detail, nil
}

func (m *Mock) InspectImage(ctx context.Context, id string) (*model.ImageDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[id]
	if !ok {
		return nil, notFound("No such image: %s", id)
	}
	return &img, nil
}

func (m *Mock) RegistryDigest(ctx context.Context, ref string) (digest.Digest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registryCalls++
	if m.RegistryErr != nil {
		return "", m.RegistryErr
	}
	d, ok := m.registry[ref]
	if !ok {
		return "", errors.Errorf("manifest unknown: %s", ref)
	}
	return d, nil
}

func (m *Mock) action(name, id, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name+":"+id)
	c, err := m.lookup(id)
	if err != nil {
		return err
	}
	if m.ActionErr != nil {
		return m.ActionErr
	}
	c.Container.State = state
	c.Detail.Status = state
	if name == "restart" {
		c.Detail.RestartCount++
	}
	return nil
}

func (m *Mock) StartContainer(ctx context.Context, id string) error {
	return m.action("start", id, "running")
}

func (m *Mock) StopContainer(ctx context.Context, id string) error {
	return m.action("stop", id, "exited")
}

func (m *Mock) RestartContainer(ctx context.Context, id string) error {
	return m.action("restart", id, "running")
}

func (m *Mock) PullImage(ctx context.Context, ref string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "pull:"+ref)
	if m.PullErr != nil {
		return nil, m.PullErr
	}
	return io.NopCloser(strings.NewReader(m.PullOutput)), nil
}

func (m *Mock) ContainerLogs(ctx context.Context, id string, tail int, timestamps bool) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	lines := strings.SplitAfter(c.Logs, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if tail >= 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	return io.NopCloser(strings.NewReader(strings.Join(lines, ""))), nil
}

func (m *Mock) ListProcesses(ctx context.Context, id string) ([]model.Process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return append([]model.Process(nil), c.Processes...), nil
}

func (m *Mock) Close() error {
	return nil
}

// SetListErr sets the error returned when listing running containers.
func (m *Mock) SetListErr(err error) {
	m.mu.Lock()
	m.ListErr = err
	m.mu.Unlock()
}

// SetListAllErr sets the error returned by the full listing.
func (m *Mock) SetListAllErr(err error) {
	m.mu.Lock()
	m.ListAllErr = err
	m.mu.Unlock()
}

// SetActionErr makes start, stop and restart fail with err.
func (m *Mock) SetActionErr(err error) {
	m.mu.Lock()
	m.ActionErr = err
	m.mu.Unlock()
}
