package git

import (
	"context"
	"fmt"
	"io"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"

	"github.com/NicabarNimble/go-gitmirror/internal/errors"
	"github.com/NicabarNimble/go-gitmirror/internal/urlutils"
)

// basicAuthUser is the user name GitHub accepts alongside a token password
const basicAuthUser = "x-access-token"

// GoGitOptions configures NewGoGitCloner
type GoGitOptions struct {
	// Progress receives the remote's sideband progress when set
	Progress io.Writer

	Logger *zap.Logger
}

// GoGitCloner clones in-process with go-git
type GoGitCloner struct {
	progress io.Writer
	logger   *zap.Logger
}

var _ Cloner = (*GoGitCloner)(nil)

// NewGoGitCloner creates a Cloner that needs no git installation
func NewGoGitCloner(opts GoGitOptions) *GoGitCloner {
	c := &GoGitCloner{progress: opts.Progress, logger: opts.Logger}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Clone clones req.URL into req.Destination
func (c *GoGitCloner) Clone(ctx context.Context, req CloneRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	opts := &gogit.CloneOptions{
		URL:          req.URL,
		Auth:         authFor(req.URL, req.Token),
		Depth:        req.Depth,
		SingleBranch: req.SingleBranch,
		Tags:         gogit.NoTags,
	}
	if req.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(req.Branch)
	}
	if c.progress != nil {
		opts.Progress = newProgressWriter("  ", c.progress)
	}

	c.logger.Debug("cloning with go-git",
		zap.String("url", urlutils.Redact(req.URL)),
		zap.String("branch", req.Branch),
		zap.String("destination", req.Destination),
	)

	if _, err := gogit.PlainCloneContext(ctx, req.Destination, false, opts); err != nil {
		return errors.New(opClone, fmt.Errorf("failed to clone %s: %w", urlutils.Redact(req.URL), err))
	}
	return nil
}

// UpdateSubmodules initializes and updates the submodules of the working
// tree at dir, recursively.
func (c *GoGitCloner) UpdateSubmodules(ctx context.Context, dir string) error {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return errors.New(opSubmodules, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return errors.New(opSubmodules, err)
	}
	submodules, err := worktree.Submodules()
	if err != nil {
		return errors.New(opSubmodules, err)
	}
	if len(submodules) == 0 {
		return nil
	}

	err = submodules.UpdateContext(ctx, &gogit.SubmoduleUpdateOptions{
		Init:              true,
		RecurseSubmodules: gogit.DefaultSubmoduleRecursionDepth,
	})
	if err != nil {
		return errors.New(opSubmodules, err)
	}
	return nil
}

// authFor returns basic auth for HTTPS URLs when a token is set
func authFor(rawURL, token string) transport.AuthMethod {
	if token == "" || !strings.HasPrefix(rawURL, "https://") {
		return nil
	}
	return &http.BasicAuth{Username: basicAuthUser, Password: token}
}
