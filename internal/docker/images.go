package docker

import (
	"context"
	"io"
	"strings"

	"emperror.dev/errors"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/goccy/go-json"
	"github.com/opencontainers/go-digest"

	"github.com/rusenback/dockerstats/internal/model"
)

// InspectImage returns the tags and repository digests of a local image.
func (c *Client) InspectImage(ctx context.Context, id string) (*model.ImageDetail, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	img, _, err := c.cli.ImageInspectWithRaw(ctx, id)
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "failed to inspect image", "image", id)
	}

	return &model.ImageDetail{
		ID:          img.ID,
		RepoTags:    img.RepoTags,
		RepoDigests: img.RepoDigests,
	}, nil
}

// RegistryDigest asks the registry, through the engine, which manifest
// digest ref currently points to.
func (c *Client) RegistryDigest(ctx context.Context, ref string) (digest.Digest, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	inspect, err := c.cli.DistributionInspect(ctx, ref, "")
	if err != nil {
		return "", errors.WrapIfWithDetails(err, "failed to inspect distribution", "ref", ref)
	}
	if err := inspect.Descriptor.Digest.Validate(); err != nil {
		return "", errors.WrapIf(err, "registry returned an invalid digest")
	}
	return inspect.Descriptor.Digest, nil
}

// PullImage starts pulling ref. The returned stream carries JSON progress
// messages, see PullProgress.
func (c *Client) PullImage(ctx context.Context, ref string) (io.ReadCloser, error) {
	rc, err := c.cli.ImagePull(ctx, ref, types.ImagePullOptions{})
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "failed to pull image", "ref", ref)
	}
	return rc, nil
}

// PullProgress decodes a pull progress stream and hands a readable line for
// every status change to emit. An error message inside the stream is
// returned as an error.
func PullProgress(r io.Reader, emit func(string)) error {
	dec := json.NewDecoder(r)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.WrapIf(err, "failed to decode pull progress")
		}
		if msg.Error != nil {
			return errors.NewPlain(msg.Error.Message)
		}
		if msg.Status == "" {
			continue
		}
		// per-layer byte counters are too chatty, only keep transitions
		if msg.Progress != nil && msg.Progress.Current > 0 {
			continue
		}
		line := msg.Status
		if msg.ID != "" {
			line = msg.ID + ": " + msg.Status
		}
		emit(strings.TrimSpace(line))
	}
}
