package git

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	opClone      = "clone"
	opSubmodules = "submodules"
)

// ErrInvalidRequest indicates that the provided clone request is invalid
var ErrInvalidRequest = errors.New("invalid clone request")

// Backend names a Cloner implementation
type Backend string

const (
	BackendExec  Backend = "exec"
	BackendGoGit Backend = "gogit"
)

// CloneRequest describes a single clone
type CloneRequest struct {
	URL          string
	Token        string // Token for HTTPS authentication
	Branch       string // Empty clones the remote default branch
	Destination  string
	Depth        int // Zero clones full history
	SingleBranch bool
}

// Validate checks the fields every backend needs
func (r CloneRequest) Validate() error {
	switch {
	case r.URL == "":
		return fmt.Errorf("%w: source URL must be specified", ErrInvalidRequest)
	case strings.HasPrefix(r.URL, "git@"):
		return fmt.Errorf("%w: SSH URLs are not supported, please use HTTPS", ErrInvalidRequest)
	case r.Destination == "":
		return fmt.Errorf("%w: destination must be specified", ErrInvalidRequest)
	case r.Depth < 0:
		return fmt.Errorf("%w: negative depth %d", ErrInvalidRequest, r.Depth)
	}
	return nil
}

// Cloner clones repositories and initializes their submodules
type Cloner interface {
	Clone(ctx context.Context, req CloneRequest) error

	// UpdateSubmodules initializes and shallowly updates every submodule of
	// the working tree at dir, recursively.
	UpdateSubmodules(ctx context.Context, dir string) error
}

// ParseBackend validates a backend name
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToLower(name)); b {
	case BackendExec, BackendGoGit:
		return b, nil
	}
	return "", fmt.Errorf("unknown clone backend %q (want %s or %s)", name, BackendExec, BackendGoGit)
}
