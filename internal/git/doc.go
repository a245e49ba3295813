// Package git clones repositories for the mirror.
//
// Two Cloner implementations are provided:
//
// ExecCloner runs the system git binary. Tokens are embedded in HTTPS clone
// URLs, terminal prompts are disabled, and git's progress output can be
// reformatted onto any writer.
//
// GoGitCloner clones in-process with go-git and needs no git installation.
// Tokens are sent as HTTP basic auth.
//
// Example Usage:
//
//	cloner := git.NewExecCloner(git.ExecOptions{Logger: logger})
//	err := cloner.Clone(ctx, git.CloneRequest{
//	    URL:          "https://github.com/octocat/hello.git",
//	    Token:        token,
//	    Branch:       "main",
//	    Destination:  "/srv/mirror/octocat/hello/main",
//	    Depth:        1,
//	    SingleBranch: true,
//	})
//
// Neither implementation removes a partially written destination on failure;
// callers own the target directory.
package git
