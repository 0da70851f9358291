// internal/docker/interface.go
package docker

import (
	"context"
	"io"

	"github.com/opencontainers/go-digest"

	"github.com/rusenback/dockerstats/internal/model"
)

// Engine interface mahdollistaa mockauksen testeissä
type Engine interface {
	Ping(ctx context.Context) error
	ListContainers(ctx context.Context, all bool) ([]model.Container, error)
	StatsSnapshot(ctx context.Context, id string) (*model.RawSnapshot, error)
	InspectContainer(ctx context.Context, id string, withSize bool) (*model.ContainerDetail, error)
	InspectImage(ctx context.Context, id string) (*model.ImageDetail, error)
	RegistryDigest(ctx context.Context, ref string) (digest.Digest, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string) error
	RestartContainer(ctx context.Context, id string) error
	PullImage(ctx context.Context, ref string) (io.ReadCloser, error)
	ContainerLogs(ctx context.Context, id string, tail int, timestamps bool) (io.ReadCloser, error)
	ListProcesses(ctx context.Context, id string) ([]model.Process, error)
	Close() error
}

// Varmista että Client ja Mock toteuttavat interfacen
var (
	_ Engine = (*Client)(nil)
	_ Engine = (*Mock)(nil)
)
