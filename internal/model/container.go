package model

import "time"

// Container edustaa Docker containeria
type Container struct {
	ID      string
	Name    string
	Image   string
	ImageID string
	Status  string
	State   string
	Created time.Time
	Ports   []Port
	Labels  map[string]string
}

// Running reports whether the engine lists the container as running.
func (c Container) Running() bool {
	return c.State == "running"
}

// Port edustaa container porttia
type Port struct {
	Private int
	Public  int
	HostIP  string
	Type    string
}

// Compose labels used for project grouping.
const (
	ComposeProjectLabel = "com.docker.compose.project"
	ComposeServiceLabel = "com.docker.compose.service"
)

// ContainerDetail is the live, query-time view of a container. None of it is
// kept in history.
type ContainerDetail struct {
	ID           string
	Name         string
	Status       string
	Image        string // display name: first tag or short image ID
	ImageRef     string // reference the container was created from
	ImageID      string
	Ports        string
	RestartCount int
	StartedAt    time.Time
	Labels       map[string]string
	MemoryLimit  int64
	SizeRw       *int64
	SizeRootFs   *int64
}

// Project returns the compose project label, if any.
func (d *ContainerDetail) Project() string {
	if d == nil {
		return ""
	}
	return d.Labels[ComposeProjectLabel]
}

// Service returns the compose service label, if any.
func (d *ContainerDetail) Service() string {
	if d == nil {
		return ""
	}
	return d.Labels[ComposeServiceLabel]
}

// ImageDetail holds what the update checker needs from a local image.
type ImageDetail struct {
	ID          string
	RepoTags    []string
	RepoDigests []string
}
