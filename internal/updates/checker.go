// Package updates decides whether the image a container runs has a newer
// build in its registry, and keeps those results fresh in the background.
package updates

import (
	"context"
	"strings"

	"github.com/distribution/reference"
	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/rusenback/dockerstats/internal/docker"
	"github.com/rusenback/dockerstats/internal/model"
)

// Target identifies what to check: the reference the container was created
// from and the local image it runs.
type Target struct {
	ID       string
	ImageRef string
	ImageID  string
}

// Checker compares local and registry digests. Any failure along the way
// yields unknown rather than an error.
type Checker struct {
	engine  docker.Engine
	limiter *rate.Limiter
}

// NewChecker creates a checker. A nil limiter means registry calls are not
// rate limited.
func NewChecker(engine docker.Engine, limiter *rate.Limiter) *Checker {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Checker{engine: engine, limiter: limiter}
}

func (c *Checker) Check(ctx context.Context, target Target) model.UpdateStatus {
	logger := log.WithFields(log.Fields{"container": shortID(target.ID), "image": target.ImageRef})

	if target.ImageRef == "" || strings.HasPrefix(target.ImageRef, "sha256:") {
		return model.UpdateUnknown
	}
	named, err := reference.ParseNormalizedNamed(target.ImageRef)
	if err != nil {
		logger.WithError(err).Debug("unparseable image reference")
		return model.UpdateUnknown
	}
	// pinned by digest, there is nothing newer to pull
	if _, ok := named.(reference.Digested); ok {
		return model.UpdateUnknown
	}
	tagged := reference.TagNameOnly(named)

	local, ok := c.localDigest(ctx, named.Name(), target.ImageID)
	if !ok {
		logger.Debug("no local repo digest")
		return model.UpdateUnknown
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return model.UpdateUnknown
	}
	remote, err := c.engine.RegistryDigest(ctx, reference.FamiliarString(tagged))
	if err != nil {
		logger.WithError(err).Debug("registry lookup failed")
		return model.UpdateUnknown
	}

	if local == remote {
		return model.UpdateCurrent
	}
	logger.WithFields(log.Fields{"local": shortID(local.Encoded()), "remote": shortID(remote.Encoded())}).Info("update available")
	return model.UpdateAvailable
}

// localDigest finds the repo digest of imageID that belongs to repo.
func (c *Checker) localDigest(ctx context.Context, repo, imageID string) (digest.Digest, bool) {
	if imageID == "" {
		return "", false
	}
	img, err := c.engine.InspectImage(ctx, imageID)
	if err != nil {
		return "", false
	}
	for _, rd := range img.RepoDigests {
		d, ok := matchRepoDigest(rd, repo)
		if ok {
			return d, true
		}
	}
	return "", false
}

// matchRepoDigest parses an entry like "nginx@sha256:..." and returns its
// digest if the repository is repo.
func matchRepoDigest(repoDigest, repo string) (digest.Digest, bool) {
	at := strings.LastIndex(repoDigest, "@")
	if at < 0 {
		return "", false
	}
	named, err := reference.ParseNormalizedNamed(repoDigest[:at])
	if err != nil || named.Name() != repo {
		return "", false
	}
	d, err := digest.Parse(repoDigest[at+1:])
	if err != nil {
		return "", false
	}
	return d, true
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
