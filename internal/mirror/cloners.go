package mirror

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	errs "github.com/NicabarNimble/go-gitmirror/internal/errors"
	"github.com/NicabarNimble/go-gitmirror/internal/git"
	"github.com/NicabarNimble/go-gitmirror/internal/github"
	"github.com/NicabarNimble/go-gitmirror/internal/retry"
	"github.com/NicabarNimble/go-gitmirror/internal/urlutils"
)

const (
	opCloneBranch = "clone-branch"
	opCloneRoot   = "clone-root"

	kindBranch = "branch"
	kindRoot   = "root"

	cloneDepth = 1

	// noSubmoduleMapping is how git reports a gitlink without a .gitmodules
	// entry; such repositories simply have nothing to update.
	noSubmoduleMapping = "no submodule mapping found"

	defaultCloneAttempts = 3
	defaultCloneBackoff  = 500 * time.Millisecond
)

// ErrEmptyBranch is reported for a branch whose clone holds nothing but git
// metadata
var ErrEmptyBranch = errors.New("branch has no files")

// ClonerOptions configures the branch and root cloners
type ClonerOptions struct {
	// CloneBase is the host clone URLs are built on, e.g. https://github.com
	CloneBase string

	// Token is embedded in HTTPS clone URLs when set
	Token string

	// Attempts per branch clone; 3 when zero
	Attempts int

	// Backoff is the exponential base between branch clone attempts. Zero
	// retries without waiting; negative values select 500ms.
	Backoff time.Duration

	Logger   *zap.Logger
	Recorder Recorder
}

func (o ClonerOptions) withDefaults() ClonerOptions {
	if o.Attempts <= 0 {
		o.Attempts = defaultCloneAttempts
	}
	if o.Backoff < 0 {
		o.Backoff = defaultCloneBackoff
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	return o
}

// BranchCloner clones single branches
type BranchCloner struct {
	cloner git.Cloner
	opts   ClonerOptions
}

// NewBranchCloner creates a BranchCloner on top of cloner
func NewBranchCloner(cloner git.Cloner, opts ClonerOptions) *BranchCloner {
	return &BranchCloner{cloner: cloner, opts: opts.withDefaults()}
}

// Clone makes a shallow, single-branch clone of branch into targetPath and
// reports whether the branch is now present there. An existing targetPath
// counts as present. A branch without files is removed again and reported as
// a failure without further attempts.
func (b *BranchCloner) Clone(ctx context.Context, username string, repo github.Repository, branch, targetPath string) bool {
	log := b.opts.Logger.With(
		zap.String("repository", username+"/"+repo.Name),
		zap.String("branch", branch),
	)

	sourceURL, err := urlutils.RepositoryURL(b.opts.CloneBase, username, repo.Name)
	if err != nil {
		log.Error("cannot build clone URL", zap.Error(err))
		return false
	}

	policy := retry.Policy{
		MaxAttempts: b.opts.Attempts,
		Backoff:     retry.Exponential(b.opts.Backoff),
		Fatal: func(err error) bool {
			return errors.Is(err, ErrEmptyBranch)
		},
		Notify: func(attempt int, err error, next time.Duration) {
			log.Warn("branch clone failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", next),
				zap.Error(err),
			)
		},
	}

	err = retry.Do(ctx, policy, func(ctx context.Context) error {
		return b.attempt(ctx, log, sourceURL, branch, targetPath)
	})
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrEmptyBranch):
		log.Warn("branch is empty, removed its directory", zap.String("path", targetPath))
	default:
		log.Error("failed to clone branch", zap.String("path", targetPath), zap.Error(err))
	}
	return false
}

func (b *BranchCloner) attempt(ctx context.Context, log *zap.Logger, sourceURL, branch, targetPath string) error {
	if exists(targetPath) {
		log.Info("branch already cloned, skipping", zap.String("path", targetPath))
		return nil
	}

	err := b.cloner.Clone(ctx, git.CloneRequest{
		URL:          sourceURL,
		Token:        b.opts.Token,
		Branch:       branch,
		Destination:  targetPath,
		Depth:        cloneDepth,
		SingleBranch: true,
	})
	b.opts.Recorder.RecordCloneAttempt(kindBranch, err == nil)
	if err != nil {
		removePartial(log, targetPath)
		return errs.New(opCloneBranch, err)
	}

	empty, err := onlyMetadata(targetPath)
	if err != nil {
		removePartial(log, targetPath)
		return errs.New(opCloneBranch, err)
	}
	if empty {
		removePartial(log, targetPath)
		return errs.New(opCloneBranch, ErrEmptyBranch)
	}

	b.updateSubmodules(ctx, log, targetPath)
	log.Info("cloned branch", zap.String("path", targetPath))
	return nil
}

func (b *BranchCloner) updateSubmodules(ctx context.Context, log *zap.Logger, dir string) {
	err := b.cloner.UpdateSubmodules(ctx, dir)
	switch {
	case err == nil:
	case strings.Contains(err.Error(), noSubmoduleMapping):
		log.Debug("submodule without mapping ignored", zap.Error(err))
	default:
		log.Warn("submodule update failed", zap.String("path", dir), zap.Error(err))
	}
}

// RootCloner clones the default branch of a repository
type RootCloner struct {
	cloner git.Cloner
	opts   ClonerOptions
}

// NewRootCloner creates a RootCloner on top of cloner
func NewRootCloner(cloner git.Cloner, opts ClonerOptions) *RootCloner {
	return &RootCloner{cloner: cloner, opts: opts.withDefaults()}
}

// Clone makes a single shallow clone of the default branch of repo into
// outputDir/<repo> and reports whether the repository is now present there.
func (r *RootCloner) Clone(ctx context.Context, username string, repo github.Repository, outputDir string) bool {
	log := r.opts.Logger.With(zap.String("repository", username+"/"+repo.Name))

	sourceURL, err := urlutils.RepositoryURL(r.opts.CloneBase, username, repo.Name)
	if err != nil {
		log.Error("cannot build clone URL", zap.Error(err))
		return false
	}

	target := filepath.Join(outputDir, repo.Name)
	if exists(target) {
		log.Info("repository already cloned, skipping", zap.String("path", target))
		return true
	}

	err = r.cloner.Clone(ctx, git.CloneRequest{
		URL:         sourceURL,
		Token:       r.opts.Token,
		Destination: target,
		Depth:       cloneDepth,
	})
	r.opts.Recorder.RecordCloneAttempt(kindRoot, err == nil)
	if err != nil {
		removePartial(log, target)
		log.Error("failed to clone repository", zap.String("path", target), zap.Error(errs.New(opCloneRoot, err)))
		return false
	}

	log.Info("cloned repository", zap.String("path", target))
	return true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// onlyMetadata reports whether dir holds nothing besides .git
func onlyMetadata(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.Name() != ".git" {
			return false, nil
		}
	}
	return true, nil
}

func removePartial(log *zap.Logger, path string) {
	if err := os.RemoveAll(path); err != nil {
		log.Warn("failed to remove partial clone", zap.String("path", path), zap.Error(err))
	}
}
