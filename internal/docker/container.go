// internal/docker/container.go
package docker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/go-connections/nat"

	"github.com/rusenback/dockerstats/internal/metrics"
	"github.com/rusenback/dockerstats/internal/model"
)

// stopTimeout on sekunteja ennen kuin engine tappaa containerin
const stopTimeout = 10

// ListContainers palauttaa running containerit, tai all=true kaikki
// (running + stopped)
func (c *Client) ListContainers(ctx context.Context, all bool) ([]model.Container, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	opts := container.ListOptions{All: all}
	if !all {
		opts.Filters = filters.NewArgs(filters.Arg("status", "running"))
	}

	containers, err := c.cli.ContainerList(ctx, opts)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to list containers")
	}

	result := make([]model.Container, 0, len(containers))
	for _, cont := range containers {
		ports := make([]model.Port, 0, len(cont.Ports))
		for _, p := range cont.Ports {
			ports = append(ports, model.Port{
				Private: int(p.PrivatePort),
				Public:  int(p.PublicPort),
				HostIP:  p.IP,
				Type:    p.Type,
			})
		}

		result = append(result, model.Container{
			ID:      cont.ID,
			Name:    containerName(cont.Names),
			Image:   cont.Image,
			ImageID: cont.ImageID,
			Status:  cont.Status,
			State:   cont.State,
			Created: time.Unix(cont.Created, 0),
			Ports:   ports,
			Labels:  cont.Labels,
		})
	}

	return result, nil
}

// containerName poistaa "/" nimen alusta
func containerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}

// InspectContainer returns the live detail of a container. withSize asks the
// engine to compute filesystem sizes, which is noticeably slower.
func (c *Client) InspectContainer(ctx context.Context, id string, withSize bool) (*model.ContainerDetail, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	info, _, err := c.cli.ContainerInspectWithRaw(ctx, id, withSize)
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "failed to inspect container", "container", id)
	}
	if info.ContainerJSONBase == nil {
		return nil, errors.Errorf("empty inspect response for %s", id)
	}

	detail := &model.ContainerDetail{
		ID:           info.ID,
		Name:         strings.TrimPrefix(info.Name, "/"),
		ImageID:      info.Image,
		RestartCount: info.RestartCount,
		SizeRw:       info.SizeRw,
		SizeRootFs:   info.SizeRootFs,
	}
	if info.State != nil {
		detail.Status = info.State.Status
		if started, ok := metrics.ParseEngineTime(info.State.StartedAt); ok {
			detail.StartedAt = started
		}
	}
	if info.HostConfig != nil {
		detail.MemoryLimit = info.HostConfig.Memory
	}
	if info.Config != nil {
		detail.ImageRef = info.Config.Image
		detail.Labels = info.Config.Labels
	}
	if info.NetworkSettings != nil {
		detail.Ports = FormatPorts(info.NetworkSettings.Ports)
	}
	detail.Image = displayImage(detail.ImageRef, detail.ImageID)

	return detail, nil
}

// displayImage prefers the reference the container was created from and
// falls back to the short image ID.
func displayImage(ref, id string) string {
	if ref != "" && !strings.HasPrefix(ref, "sha256:") {
		return ref
	}
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// FormatPorts renders a port map the way `docker ps` does, sorted by port.
func FormatPorts(ports nat.PortMap) string {
	keys := make([]nat.Port, 0, len(ports))
	for p := range ports {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Int() != keys[j].Int() {
			return keys[i].Int() < keys[j].Int()
		}
		return keys[i].Proto() < keys[j].Proto()
	})

	var parts []string
	for _, p := range keys {
		bindings := ports[p]
		if len(bindings) == 0 {
			parts = append(parts, string(p))
			continue
		}
		for _, b := range bindings {
			ip := b.HostIP
			if ip == "" {
				ip = "0.0.0.0"
			}
			parts = append(parts, fmt.Sprintf("%s:%s->%s", ip, b.HostPort, p))
		}
	}
	return strings.Join(parts, ", ")
}

// StartContainer käynnistää containerin
func (c *Client) StartContainer(ctx context.Context, id string) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	return errors.WrapIf(c.cli.ContainerStart(ctx, id, container.StartOptions{}), "failed to start container")
}

// StopContainer pysäyttää containerin
func (c *Client) StopContainer(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout+stopTimeout*time.Second)
	defer cancel()

	timeout := stopTimeout
	return errors.WrapIf(c.cli.ContainerStop(ctx, id, container.StopOptions{
		Timeout: &timeout,
	}), "failed to stop container")
}

// RestartContainer uudelleenkäynnistää containerin
func (c *Client) RestartContainer(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout+stopTimeout*time.Second)
	defer cancel()

	timeout := stopTimeout
	return errors.WrapIf(c.cli.ContainerRestart(ctx, id, container.StopOptions{
		Timeout: &timeout,
	}), "failed to restart container")
}
