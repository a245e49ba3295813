package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/NicabarNimble/go-gitmirror/internal/errors"
)

type recordedCall struct {
	dir  string
	args []string
}

func fakeRunner(calls *[]recordedCall, stderr string, err error) commandRunner {
	return func(ctx context.Context, dir string, w io.Writer, args ...string) error {
		*calls = append(*calls, recordedCall{dir: dir, args: args})
		if stderr != "" {
			fmt.Fprint(w, stderr)
		}
		return err
	}
}

func TestExecClonerCloneArguments(t *testing.T) {
	tests := []struct {
		name     string
		req      CloneRequest
		wantArgs []string
	}{
		{
			name: "shallow single branch with token",
			req: CloneRequest{
				URL:          "https://github.com/octocat/hello.git",
				Token:        "ghp_secret",
				Branch:       "feature/x",
				Destination:  "/out/octocat/hello/feature-x",
				Depth:        1,
				SingleBranch: true,
			},
			wantArgs: []string{"clone", "--depth", "1", "--single-branch", "--branch", "feature/x", "--",
				"https://ghp_secret@github.com/octocat/hello.git", "/out/octocat/hello/feature-x"},
		},
		{
			name: "default branch without token",
			req: CloneRequest{
				URL:         "https://github.com/octocat/hello.git",
				Destination: "/out/octocat/hello",
				Depth:       1,
			},
			wantArgs: []string{"clone", "--depth", "1", "--",
				"https://github.com/octocat/hello.git", "/out/octocat/hello"},
		},
		{
			name: "file URL never carries a token",
			req: CloneRequest{
				URL:         "file:///srv/git/hello.git",
				Token:       "ghp_secret",
				Destination: "/out/hello",
			},
			wantArgs: []string{"clone", "--", "file:///srv/git/hello.git", "/out/hello"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []recordedCall
			cloner := NewExecCloner(ExecOptions{})
			cloner.run = fakeRunner(&calls, "", nil)

			require.NoError(t, cloner.Clone(context.Background(), tt.req))
			require.Len(t, calls, 1)
			assert.Equal(t, tt.wantArgs, calls[0].args)
			assert.Empty(t, calls[0].dir)
		})
	}
}

func TestExecClonerCloneFailureRedactsToken(t *testing.T) {
	var calls []recordedCall
	cloner := NewExecCloner(ExecOptions{})
	cloner.run = fakeRunner(&calls,
		"fatal: unable to access 'https://ghp_secret@github.com/octocat/hello.git/': The requested URL returned error: 403\n",
		errors.New("exit status 128"))

	err := cloner.Clone(context.Background(), CloneRequest{
		URL:         "https://github.com/octocat/hello.git",
		Token:       "ghp_secret",
		Destination: t.TempDir(),
	})

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "ghp_secret")
	assert.Contains(t, err.Error(), "returned error: 403")
	assert.NotErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, opClone, errs.Op(err))
}

func TestExecClonerRejectsInvalidRequest(t *testing.T) {
	var calls []recordedCall
	cloner := NewExecCloner(ExecOptions{})
	cloner.run = fakeRunner(&calls, "", nil)

	err := cloner.Clone(context.Background(), CloneRequest{Destination: "/tmp/x"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, calls)
}

func TestExecClonerUpdateSubmodules(t *testing.T) {
	var calls []recordedCall
	cloner := NewExecCloner(ExecOptions{})
	cloner.run = fakeRunner(&calls, "", nil)

	require.NoError(t, cloner.UpdateSubmodules(context.Background(), "/out/hello"))
	require.Len(t, calls, 1)
	assert.Equal(t, "/out/hello", calls[0].dir)
	assert.Equal(t, []string{"submodule", "update", "--init", "--recursive", "--depth", "1"}, calls[0].args)
}

func TestExecClonerSubmoduleErrorKeepsMessage(t *testing.T) {
	var calls []recordedCall
	cloner := NewExecCloner(ExecOptions{})
	cloner.run = fakeRunner(&calls,
		"fatal: no submodule mapping found in .gitmodules for path 'vendor/lib'\n",
		errors.New("exit status 128"))

	err := cloner.UpdateSubmodules(context.Background(), "/out/hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no submodule mapping found")
}

func TestExecClonerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls []recordedCall
	cloner := NewExecCloner(ExecOptions{})
	cloner.run = fakeRunner(&calls, "", errors.New("signal: killed"))

	err := cloner.Clone(ctx, CloneRequest{URL: "https://github.com/octocat/hello.git", Destination: "/out/hello"})
	assert.ErrorIs(t, err, context.Canceled)
}

// sourceRepository creates a local repository with a main branch and a
// feature/x branch and returns its file:// URL.
func sourceRepository(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not installed")
	}

	dir := t.TempDir()
	gitRun(t, dir, "init", "--quiet")
	gitRun(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	gitRun(t, dir, "add", "README.md")
	gitRun(t, dir, "commit", "--quiet", "-m", "initial")
	gitRun(t, dir, "checkout", "--quiet", "-b", "feature/x")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature.txt"), []byte("x\n"), 0o644))
	gitRun(t, dir, "add", "feature.txt")
	gitRun(t, dir, "commit", "--quiet", "-m", "feature")
	gitRun(t, dir, "checkout", "--quiet", "main")

	return "file://" + filepath.ToSlash(dir)
}

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-c", "user.name=mirror", "-c", "user.email=mirror@example.com"}, args...)...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func testClonerAgainstLocalRepository(t *testing.T, cloner Cloner) {
	sourceURL := sourceRepository(t)
	out := t.TempDir()

	feature := filepath.Join(out, "feature-x")
	require.NoError(t, cloner.Clone(context.Background(), CloneRequest{
		URL:          sourceURL,
		Branch:       "feature/x",
		Destination:  feature,
		Depth:        1,
		SingleBranch: true,
	}))
	assert.FileExists(t, filepath.Join(feature, "README.md"))
	assert.FileExists(t, filepath.Join(feature, "feature.txt"))
	require.NoError(t, cloner.UpdateSubmodules(context.Background(), feature))

	root := filepath.Join(out, "root")
	require.NoError(t, cloner.Clone(context.Background(), CloneRequest{
		URL:         sourceURL,
		Destination: root,
		Depth:       1,
	}))
	assert.FileExists(t, filepath.Join(root, "README.md"))
	assert.NoFileExists(t, filepath.Join(root, "feature.txt"))

	err := cloner.Clone(context.Background(), CloneRequest{
		URL:          sourceURL,
		Branch:       "does-not-exist",
		Destination:  filepath.Join(out, "missing"),
		Depth:        1,
		SingleBranch: true,
	})
	assert.Error(t, err)
}

func TestExecClonerLocalRepository(t *testing.T) {
	testClonerAgainstLocalRepository(t, NewExecCloner(ExecOptions{}))
}
