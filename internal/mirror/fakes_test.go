package mirror

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NicabarNimble/go-gitmirror/internal/git"
	"github.com/NicabarNimble/go-gitmirror/internal/github"
)

type outcome int

const (
	cloneOK outcome = iota
	cloneEmpty
	cloneFail
)

var errRemoteBranchNotFound = errors.New("fatal: Remote branch not found in upstream origin")

// fakeCloner writes directory trees instead of cloning. Outcomes are keyed by
// the base name of the destination; the last outcome of a key repeats.
type fakeCloner struct {
	t              *testing.T
	outcomes       map[string][]outcome
	requests       []git.CloneRequest
	submoduleErr   error
	submoduleCalls []string
}

func newFakeCloner(t *testing.T) *fakeCloner {
	return &fakeCloner{t: t, outcomes: map[string][]outcome{}}
}

func (f *fakeCloner) on(key string, outcomes ...outcome) *fakeCloner {
	f.outcomes[key] = outcomes
	return f
}

func (f *fakeCloner) next(key string) outcome {
	queue := f.outcomes[key]
	if len(queue) == 0 {
		return cloneOK
	}
	o := queue[0]
	if len(queue) > 1 {
		f.outcomes[key] = queue[1:]
	}
	return o
}

func (f *fakeCloner) Clone(_ context.Context, req git.CloneRequest) error {
	f.requests = append(f.requests, req)

	switch f.next(filepath.Base(req.Destination)) {
	case cloneEmpty:
		require.NoError(f.t, os.MkdirAll(filepath.Join(req.Destination, ".git"), 0o755))
	case cloneFail:
		require.NoError(f.t, os.MkdirAll(filepath.Join(req.Destination, ".git"), 0o755))
		return errRemoteBranchNotFound
	default:
		require.NoError(f.t, os.MkdirAll(filepath.Join(req.Destination, ".git"), 0o755))
		require.NoError(f.t, os.WriteFile(filepath.Join(req.Destination, "README.md"), []byte("hello\n"), 0o644))
	}
	return nil
}

func (f *fakeCloner) UpdateSubmodules(_ context.Context, dir string) error {
	f.submoduleCalls = append(f.submoduleCalls, dir)
	return f.submoduleErr
}

type fakeLister struct {
	repos      []github.Repository
	listErr    error
	branches   map[string][]string
	listCalls  int
	branchReqs []string
}

func (f *fakeLister) ListRepositories(context.Context, string) ([]github.Repository, error) {
	f.listCalls++
	return f.repos, f.listErr
}

func (f *fakeLister) ListBranches(_ context.Context, _ string, repo string) []string {
	f.branchReqs = append(f.branchReqs, repo)
	if b, ok := f.branches[repo]; ok {
		return b
	}
	return []string{}
}

type fakeRecorder struct {
	repositories map[bool]int
	branches     map[bool]int
	attempts     map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{repositories: map[bool]int{}, branches: map[bool]int{}, attempts: map[string]int{}}
}

func (r *fakeRecorder) RecordRepository(ok bool) { r.repositories[ok]++ }
func (r *fakeRecorder) RecordBranch(ok bool)     { r.branches[ok]++ }
func (r *fakeRecorder) RecordCloneAttempt(kind string, ok bool) {
	if ok {
		r.attempts[kind+"/success"]++
	} else {
		r.attempts[kind+"/failure"]++
	}
}
