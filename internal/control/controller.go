// Package control mutates container state on behalf of API clients and
// reports progress line by line.
package control

import (
	"context"
	"fmt"
	"strings"

	"emperror.dev/errors"
	"github.com/distribution/reference"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rusenback/dockerstats/internal/docker"
	"github.com/rusenback/dockerstats/internal/storage"
)

const (
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionRestart = "restart"
	ActionUpdate  = "update"
)

// Actions lists every supported action.
var Actions = []string{ActionStart, ActionStop, ActionRestart, ActionUpdate}

var ErrInvalidAction = errors.NewPlain("invalid action")

// ValidAction reports whether action is supported.
func ValidAction(action string) bool {
	for _, a := range Actions {
		if a == action {
			return true
		}
	}
	return false
}

type options struct {
	After func(id, action string, err error)
}

func defaultOptions() *options {
	return &options{
		After: func(string, string, error) {},
	}
}

type Option func(*options)

// WithAfter is called once an action has finished, successfully or not.
func WithAfter(fn func(id, action string, err error)) Option {
	return func(opts *options) {
		opts.After = fn
	}
}

type Controller struct {
	engine docker.Engine
	store  *storage.Store
	opts   *options
}

func New(engine docker.Engine, store *storage.Store, opts ...Option) *Controller {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Controller{engine: engine, store: store, opts: o}
}

// Perform runs action against container id, passing every progress line to
// emit as it happens. An invalid action or unknown container is reported
// through the returned error before anything is emitted. Once the action has
// started, a failing step is emitted as an error line, ends the action and is
// also returned.
func (c *Controller) Perform(ctx context.Context, id, action string, emit func(string)) error {
	if !ValidAction(action) {
		return errors.WithDetails(ErrInvalidAction, "action", action)
	}
	detail, err := c.engine.InspectContainer(ctx, id, false)
	if err != nil {
		return err
	}
	name := detail.Name
	if name == "" {
		name = id
	}

	logger := log.WithFields(log.Fields{
		"action":    action,
		"container": name,
		"action_id": uuid.NewString(),
	})
	logger.Info("performing container action")

	switch action {
	case ActionStart:
		err = c.step(ctx, emit, "Starting "+name, name+" started", c.engine.StartContainer, id)
	case ActionStop:
		err = c.step(ctx, emit, "Stopping "+name, name+" stopped", c.engine.StopContainer, id)
	case ActionRestart:
		err = c.step(ctx, emit, "Restarting "+name, name+" restarted", c.engine.RestartContainer, id)
	case ActionUpdate:
		err = c.update(ctx, id, name, detail.ImageRef, emit)
	}

	if err != nil {
		emit("Error: " + err.Error())
		logger.WithError(err).Warn("container action failed")
	} else {
		logger.Info("container action done")
	}
	c.opts.After(id, action, err)
	return err
}

func (c *Controller) step(ctx context.Context, emit func(string), before, after string, fn func(context.Context, string) error, id string) error {
	emit(before + "...")
	if err := fn(ctx, id); err != nil {
		return err
	}
	emit(after)
	return nil
}

// update pulls the tag the container was created from, restarts it and asks
// for a fresh update check.
func (c *Controller) update(ctx context.Context, id, name, imageRef string, emit func(string)) error {
	if ref, ok := PullReference(imageRef); ok {
		emit(fmt.Sprintf("Pulling %s...", ref))
		rc, err := c.engine.PullImage(ctx, ref)
		if err != nil {
			return err
		}
		err = docker.PullProgress(rc, emit)
		rc.Close()
		if err != nil {
			return errors.WrapIf(err, "pull failed")
		}
	} else {
		emit(fmt.Sprintf("No image tag for %s, skipping pull", name))
	}

	if err := c.step(ctx, emit, "Restarting "+name, name+" restarted", c.engine.RestartContainer, id); err != nil {
		return err
	}

	c.store.ForceUpdateCheck(id)
	emit("Update check scheduled")
	return nil
}

// PullReference returns the tagged reference to pull for imageRef. Image IDs
// and digest-only references have no tag and yield false.
func PullReference(imageRef string) (string, bool) {
	if imageRef == "" || strings.HasPrefix(imageRef, "sha256:") {
		return "", false
	}
	named, err := reference.ParseNormalizedNamed(imageRef)
	if err != nil {
		return "", false
	}
	if tagged, ok := named.(reference.NamedTagged); ok {
		withTag, err := reference.WithTag(reference.TrimNamed(named), tagged.Tag())
		if err != nil {
			return "", false
		}
		return reference.FamiliarString(withTag), true
	}
	if _, ok := named.(reference.Digested); ok {
		return "", false
	}
	return reference.FamiliarString(reference.TagNameOnly(named)), true
}
