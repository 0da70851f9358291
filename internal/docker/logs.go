// internal/docker/logs.go
package docker

import (
	"context"
	"io"
	"strconv"

	"emperror.dev/errors"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// ContainerLogs returns the last tail lines of a container's output with
// stdout and stderr merged into one plain stream. The returned reader must be
// closed; closing it also releases the engine connection. ctx should be the
// caller's request context, it is not bounded by the call timeout.
func (c *Client) ContainerLogs(ctx context.Context, id string, tail int, timestamps bool) (io.ReadCloser, error) {
	inspectCtx, cancel := c.bound(ctx)
	info, _, err := c.cli.ContainerInspectWithRaw(inspectCtx, id, false)
	cancel()
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "failed to inspect container", "container", id)
	}
	tty := info.Config != nil && info.Config.Tty

	raw, err := c.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: timestamps,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "failed to fetch logs", "container", id)
	}

	// TTY containers write a raw stream without the multiplexing header
	if tty {
		return raw, nil
	}
	return Demux(raw), nil
}

// Demux strips the engine's stdout/stderr framing from a multiplexed stream.
func Demux(raw io.ReadCloser) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, raw)
		pw.CloseWithError(err)
	}()
	return &demuxReader{PipeReader: pr, raw: raw}
}

type demuxReader struct {
	*io.PipeReader
	raw io.ReadCloser
}

func (d *demuxReader) Close() error {
	err := d.raw.Close()
	d.PipeReader.Close()
	return err
}
