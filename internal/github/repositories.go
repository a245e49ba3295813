package github

import (
	"context"
	"fmt"
	"time"

	gh "github.com/google/go-github/v82/github"
	"go.uber.org/zap"

	errs "github.com/NicabarNimble/go-gitmirror/internal/errors"
	"github.com/NicabarNimble/go-gitmirror/internal/retry"
)

const (
	opListRepos    = "list-repos"
	opListBranches = "list-branches"
	opRateLimit    = "rate-limit"
)

// ListRepositories returns every non-fork repository owned by username.
//
// Pages of 100 are requested from page 1 until a page comes back empty. A
// page that keeps failing ends the listing early: the repositories gathered
// so far are returned with a nil error. The only errors returned are
// ErrRateLimited and context cancellation.
func (c *Client) ListRepositories(ctx context.Context, username string) ([]Repository, error) {
	var all []Repository

	for page := 1; ; page++ {
		var repos []*gh.Repository
		err := retry.Do(ctx, c.policy(opListRepos, errs.IsRateLimitExceeded), func(ctx context.Context) error {
			var err error
			repos, _, err = c.api.Repositories.ListByUser(ctx, username, &gh.RepositoryListByUserOptions{
				ListOptions: gh.ListOptions{Page: page, PerPage: perPage},
			})
			return classify(opListRepos, err)
		})
		if err != nil {
			if errs.IsRateLimitExceeded(err) {
				return nil, errs.New(opListRepos, fmt.Errorf("%w: %w", ErrRateLimited, err))
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errs.New(opListRepos, ctxErr)
			}
			c.logger.Warn("giving up on repository listing, keeping partial result",
				zap.String("user", username),
				zap.Int("page", page),
				zap.Int("repositories", len(all)),
				zap.Error(err),
			)
			break
		}

		if len(repos) == 0 {
			break
		}
		for _, repo := range repos {
			all = append(all, Repository{
				Name:          repo.GetName(),
				Fork:          repo.GetFork(),
				DefaultBranch: repo.GetDefaultBranch(),
			})
		}
		c.logger.Debug("fetched repository page",
			zap.String("user", username),
			zap.Int("page", page),
			zap.Int("count", len(repos)),
		)
	}

	return FilterForks(all), nil
}

// FilterForks drops every repository flagged as a fork, keeping order
func FilterForks(repos []Repository) []Repository {
	owned := make([]Repository, 0, len(repos))
	for _, repo := range repos {
		if !repo.Fork {
			owned = append(owned, repo)
		}
	}
	return owned
}

// ListBranches returns the branch names of owner/repo. It never fails: a
// rate-limit or not-found response, or a request that keeps failing, yields
// an empty list.
func (c *Client) ListBranches(ctx context.Context, owner, repo string) []string {
	names := []string{}
	opts := &gh.BranchListOptions{ListOptions: gh.ListOptions{PerPage: perPage}}
	stop := func(err error) bool {
		return errs.IsRateLimitExceeded(err) || errs.IsNotFound(err)
	}

	for {
		var (
			branches []*gh.Branch
			resp     *gh.Response
		)
		err := retry.Do(ctx, c.policy(opListBranches, stop), func(ctx context.Context) error {
			var err error
			branches, resp, err = c.api.Repositories.ListBranches(ctx, owner, repo, opts)
			return classify(opListBranches, err)
		})
		if err != nil {
			c.logger.Warn("could not list branches",
				zap.String("repository", owner+"/"+repo),
				zap.Error(err),
			)
			return []string{}
		}

		for _, branch := range branches {
			names = append(names, branch.GetName())
		}
		if resp == nil || resp.NextPage == 0 {
			return names
		}
		opts.Page = resp.NextPage
	}
}

// RateLimit reports the core API quota for the configured credentials
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// CoreRateLimit queries the current core quota. It is a single request
// without retries.
func (c *Client) CoreRateLimit(ctx context.Context) (RateLimit, error) {
	limits, _, err := c.api.RateLimit.Get(ctx)
	if err != nil {
		return RateLimit{}, classify(opRateLimit, err)
	}
	core := limits.GetCore()
	if core == nil {
		return RateLimit{}, errs.NewAPIError(opRateLimit, "response has no core quota", nil)
	}
	return RateLimit{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		Reset:     core.Reset.Time,
	}, nil
}
