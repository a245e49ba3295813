package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	errs "github.com/NicabarNimble/go-gitmirror/internal/errors"
	"github.com/NicabarNimble/go-gitmirror/internal/git"
	"github.com/NicabarNimble/go-gitmirror/internal/github"
	"github.com/NicabarNimble/go-gitmirror/internal/progress"
	"github.com/NicabarNimble/go-gitmirror/internal/urlutils"
)

const opRun = "mirror"

// ErrMissingUsername is returned by Run when no GitHub user is configured
var ErrMissingUsername = errors.New("a GitHub username is required")

// Mode selects what is cloned for each repository
type Mode string

const (
	// ModeRoot clones the default branch of every repository
	ModeRoot Mode = "root"

	// ModeBranches clones every branch of every repository separately
	ModeBranches Mode = "branches"
)

// RepositoryLister lists the repositories to mirror
type RepositoryLister interface {
	ListRepositories(ctx context.Context, username string) ([]github.Repository, error)
}

// BranchLister lists the branches of one repository. An empty result means
// the branches could not be determined.
type BranchLister interface {
	ListBranches(ctx context.Context, owner, repo string) []string
}

// Recorder receives run counters
type Recorder interface {
	RecordRepository(ok bool)
	RecordBranch(ok bool)
	RecordCloneAttempt(kind string, ok bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordRepository(bool)           {}
func (nopRecorder) RecordBranch(bool)               {}
func (nopRecorder) RecordCloneAttempt(string, bool) {}

// CloneResult is the outcome of mirroring one repository. Branch counts are
// zero in root mode.
type CloneResult struct {
	Success            bool
	SuccessfulBranches int
	FailedBranches     int
}

// Summary folds the results of one run
type Summary struct {
	Username               string    `yaml:"username"`
	Mode                   Mode      `yaml:"mode"`
	TotalRepositories      int       `yaml:"total_repositories"`
	SuccessfulRepositories int       `yaml:"successful_repositories"`
	FailedRepositories     int       `yaml:"failed_repositories"`
	SuccessfulBranches     int       `yaml:"successful_branches"`
	FailedBranches         int       `yaml:"failed_branches"`
	StartedAt              time.Time `yaml:"started_at"`
	FinishedAt             time.Time `yaml:"finished_at"`
}

func (s *Summary) add(result CloneResult) {
	if result.Success {
		s.SuccessfulRepositories++
	} else {
		s.FailedRepositories++
	}
	s.SuccessfulBranches += result.SuccessfulBranches
	s.FailedBranches += result.FailedBranches
}

// Options configures New
type Options struct {
	Username   string
	Token      string
	OutputRoot string
	Mode       Mode

	// RepositoryDelay separates consecutive repositories
	RepositoryDelay time.Duration

	// BranchDelay separates consecutive branches of one repository
	BranchDelay time.Duration

	Repositories RepositoryLister
	Branches     BranchLister
	Cloner       git.Cloner

	// Clone settings shared by the branch and root cloners. Token and
	// Recorder are filled in from the fields above.
	Clone ClonerOptions

	Tracker  progress.Tracker
	Recorder Recorder
	Logger   *zap.Logger
}

// Mirror runs one mirror of a user's repositories
type Mirror struct {
	opts   Options
	branch *BranchCloner
	root   *RootCloner
	now    func() time.Time
}

// New creates a Mirror
func New(opts Options) *Mirror {
	if opts.Mode == "" {
		opts.Mode = ModeRoot
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tracker == nil {
		opts.Tracker = &progress.DefaultTracker{}
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	cloneOpts := opts.Clone
	cloneOpts.Token = opts.Token
	cloneOpts.Logger = opts.Logger
	cloneOpts.Recorder = opts.Recorder

	return &Mirror{
		opts:   opts,
		branch: NewBranchCloner(opts.Cloner, cloneOpts),
		root:   NewRootCloner(opts.Cloner, cloneOpts),
		now:    time.Now,
	}
}

// Run mirrors every non-fork repository of the configured user. Clone
// failures are counted in the returned Summary; the error is non-nil only
// for a missing username, an unusable output directory, a rate-limited
// listing or a cancelled context.
func (m *Mirror) Run(ctx context.Context) (Summary, error) {
	summary := Summary{
		Username:  m.opts.Username,
		Mode:      m.opts.Mode,
		StartedAt: m.now(),
	}
	finish := func(err error) (Summary, error) {
		summary.FinishedAt = m.now()
		return summary, err
	}
	log := m.opts.Logger

	if m.opts.Username == "" {
		return finish(errs.New(opRun, ErrMissingUsername))
	}
	if m.opts.Token == "" {
		log.Warn("no GitHub token configured, using unauthenticated requests with a low rate limit")
	}

	userDir := filepath.Join(m.opts.OutputRoot, m.opts.Username)
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return finish(errs.New(opRun, fmt.Errorf("failed to create output directory: %w", err)))
	}

	log.Info("listing repositories", zap.String("user", m.opts.Username))
	repos, err := m.opts.Repositories.ListRepositories(ctx, m.opts.Username)
	if err != nil {
		return finish(err)
	}
	summary.TotalRepositories = len(repos)
	if len(repos) == 0 {
		log.Info("no repositories found", zap.String("user", m.opts.Username))
		return finish(nil)
	}
	log.Info("mirroring repositories",
		zap.String("user", m.opts.Username),
		zap.Int("count", len(repos)),
		zap.String("mode", string(m.opts.Mode)),
		zap.String("output", userDir),
	)

	m.opts.Tracker.Start(fmt.Sprintf("mirror %s", m.opts.Username))
	for i, repo := range repos {
		if i > 0 {
			if err := sleep(ctx, m.opts.RepositoryDelay); err != nil {
				m.opts.Tracker.Error(err)
				return finish(errs.New(opRun, err))
			}
		}

		var result CloneResult
		if m.opts.Mode == ModeBranches {
			result = m.mirrorBranches(ctx, userDir, repo)
		} else {
			result = CloneResult{Success: m.root.Clone(ctx, m.opts.Username, repo, userDir)}
		}
		summary.add(result)
		m.opts.Recorder.RecordRepository(result.Success)
		m.opts.Tracker.Update(int64(i+1), int64(len(repos)))

		if err := ctx.Err(); err != nil {
			m.opts.Tracker.Error(err)
			return finish(errs.New(opRun, err))
		}
	}
	m.opts.Tracker.Complete()

	return finish(nil)
}

// mirrorBranches clones every branch of repo into userDir/<repo>/<branch-dir>.
// The repository succeeds when at least one branch does; when none does, its
// directory is removed.
func (m *Mirror) mirrorBranches(ctx context.Context, userDir string, repo github.Repository) CloneResult {
	log := m.opts.Logger.With(zap.String("repository", m.opts.Username+"/"+repo.Name))

	if err := urlutils.ValidateRepositoryName(repo.Name); err != nil {
		log.Error("skipping repository", zap.Error(err))
		return CloneResult{}
	}

	branches := m.opts.Branches.ListBranches(ctx, m.opts.Username, repo.Name)
	if len(branches) == 0 {
		log.Warn("no branches found, counting repository as failed")
		return CloneResult{}
	}

	repoDir := filepath.Join(userDir, repo.Name)
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		log.Error("failed to create repository directory", zap.Error(err))
		return CloneResult{FailedBranches: len(branches)}
	}

	var result CloneResult
	for i, planned := range PlanBranchDirs(branches) {
		if i > 0 {
			if err := sleep(ctx, m.opts.BranchDelay); err != nil {
				result.FailedBranches += len(branches) - i
				break
			}
		}
		if planned.CollidesWith != "" {
			log.Warn("branch directory name collision, using suffixed directory",
				zap.String("branch", planned.Branch),
				zap.String("collides_with", planned.CollidesWith),
				zap.String("dir", planned.Dir),
			)
		}

		ok := m.branch.Clone(ctx, m.opts.Username, repo, planned.Branch, filepath.Join(repoDir, planned.Dir))
		m.opts.Recorder.RecordBranch(ok)
		if ok {
			result.SuccessfulBranches++
		} else {
			result.FailedBranches++
		}
	}

	if result.SuccessfulBranches == 0 {
		log.Warn("every branch failed, removing repository directory", zap.String("path", repoDir))
		if err := os.RemoveAll(repoDir); err != nil {
			log.Warn("failed to remove repository directory", zap.Error(err))
		}
		return result
	}

	result.Success = true
	log.Info("repository mirrored",
		zap.Int("successful_branches", result.SuccessfulBranches),
		zap.Int("failed_branches", result.FailedBranches),
	)
	return result
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
