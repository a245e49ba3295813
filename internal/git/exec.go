package git

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/NicabarNimble/go-gitmirror/internal/errors"
	"github.com/NicabarNimble/go-gitmirror/internal/urlutils"
)

// commandRunner runs git with args in dir, streaming its stderr
type commandRunner func(ctx context.Context, dir string, stderr io.Writer, args ...string) error

// ExecOptions configures NewExecCloner
type ExecOptions struct {
	// Binary is the git executable; "git" when empty
	Binary string

	// Progress receives reformatted transfer progress when set
	Progress io.Writer

	Logger *zap.Logger
}

// ExecCloner clones with the system git binary
type ExecCloner struct {
	binary   string
	progress io.Writer
	logger   *zap.Logger
	run      commandRunner
}

var _ Cloner = (*ExecCloner)(nil)

// NewExecCloner creates a Cloner backed by the git command line
func NewExecCloner(opts ExecOptions) *ExecCloner {
	c := &ExecCloner{
		binary:   opts.Binary,
		progress: opts.Progress,
		logger:   opts.Logger,
	}
	if c.binary == "" {
		c.binary = "git"
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.run = c.runGit
	return c
}

// Available reports whether the git binary can be found
func (c *ExecCloner) Available() bool {
	_, err := exec.LookPath(c.binary)
	return err == nil
}

// Clone runs git clone for req
func (c *ExecCloner) Clone(ctx context.Context, req CloneRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	sourceURL, err := urlutils.AuthenticatedURL(req.URL, req.Token)
	if err != nil {
		return errors.New(opClone, fmt.Errorf("failed to format URL with token: %w", err))
	}

	args := []string{"clone"}
	if c.progress != nil {
		args = append(args, "--progress")
	}
	if req.Depth > 0 {
		args = append(args, "--depth", strconv.Itoa(req.Depth))
	}
	if req.SingleBranch {
		args = append(args, "--single-branch")
	}
	if req.Branch != "" {
		args = append(args, "--branch", req.Branch)
	}
	args = append(args, "--", sourceURL, req.Destination)

	c.logger.Debug("running git clone",
		zap.String("url", urlutils.Redact(sourceURL)),
		zap.String("branch", req.Branch),
		zap.String("destination", req.Destination),
	)

	if err := c.exec(ctx, "", req.Token, args...); err != nil {
		return errors.New(opClone, fmt.Errorf("failed to clone %s: %w", urlutils.Redact(req.URL), err))
	}
	return nil
}

// UpdateSubmodules runs git submodule update --init --recursive --depth 1 in dir
func (c *ExecCloner) UpdateSubmodules(ctx context.Context, dir string) error {
	if err := c.exec(ctx, dir, "", "submodule", "update", "--init", "--recursive", "--depth", "1"); err != nil {
		return errors.New(opSubmodules, err)
	}
	return nil
}

// exec runs one git command and turns a failure into an error carrying git's
// stderr with the token scrubbed.
func (c *ExecCloner) exec(ctx context.Context, dir, token string, args ...string) error {
	var stderr bytes.Buffer
	var sink io.Writer = &stderr
	if c.progress != nil {
		sink = io.MultiWriter(&stderr, newProgressWriter("  ", c.progress))
	}

	err := c.run(ctx, dir, sink, args...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	message := strings.TrimSpace(stderr.String())
	if token != "" {
		message = strings.ReplaceAll(message, token, "redacted")
	}
	if message == "" {
		return fmt.Errorf("git %s: %w", args[0], err)
	}
	return fmt.Errorf("git %s: %w: %s", args[0], err, message)
}

func (c *ExecCloner) runGit(ctx context.Context, dir string, stderr io.Writer, args ...string) error {
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Dir = dir
	cmd.Stderr = stderr
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	return cmd.Run()
}
