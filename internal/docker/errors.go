package docker

import (
	"emperror.dev/errors"
	"github.com/docker/docker/errdefs"
)

// IsNotFound reports whether err means the container or image no longer
// exists, looking through any wrapping.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errdefs.IsNotFound(err) {
		return true
	}
	var nf errdefs.ErrNotFound
	return errors.As(err, &nf)
}

// notFound builds an engine-style not found error.
func notFound(format string, args ...interface{}) error {
	return errdefs.NotFound(errors.Errorf(format, args...))
}
