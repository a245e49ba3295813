// Package github lists repositories and branches through the GitHub REST API.
//
// Client wraps go-github with the retry policies used by the mirror: every
// page request is retried with a linear backoff, rate-limit responses are
// never retried, and failures are reported as errors.APIError values so
// callers can classify them without touching go-github types.
package github

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	errs "github.com/NicabarNimble/go-gitmirror/internal/errors"
	"github.com/NicabarNimble/go-gitmirror/internal/retry"
)

const (
	// DefaultBaseURL is the public GitHub REST endpoint
	DefaultBaseURL = "https://api.github.com/"

	userAgent          = "go-gitmirror/1.0"
	perPage            = 100
	defaultMaxAttempts = 3
	defaultRetryBase   = time.Second
	requestTimeout     = 30 * time.Second

	// authScheme is sent as "Authorization: token <value>"
	authScheme = "token"
)

// ErrRateLimited is returned when the API refuses to list repositories
// because of rate limiting. It is fatal for a mirror run.
var ErrRateLimited = errors.New("GitHub API rate limit exceeded; set GITHUB_TOKEN to raise the limit")

// ErrNotFound marks API errors for users or repositories that do not exist
var ErrNotFound = errors.New("not found")

// Repository is the part of a GitHub repository descriptor the mirror needs
type Repository struct {
	Name          string
	Fork          bool
	DefaultBranch string
}

// RetryObserver is told about every retried API request
type RetryObserver interface {
	ObserveAPIRetry(operation string)
}

// Options configures NewClient
type Options struct {
	// BaseURL of the REST API; DefaultBaseURL when empty
	BaseURL string

	// Token authenticates requests when non-empty
	Token string

	// MaxAttempts per page request; 3 when zero
	MaxAttempts int

	// RetryBase is the linear backoff unit: the n-th retry waits n*RetryBase.
	// Zero retries without waiting; negative values select one second.
	RetryBase time.Duration

	Logger   *zap.Logger
	Observer RetryObserver
}

// Client handles GitHub API operations
type Client struct {
	api         *gh.Client
	maxAttempts int
	retryBase   time.Duration
	logger      *zap.Logger
	observer    RetryObserver
}

// NewHTTPClient returns the HTTP client used for API calls. With a token it
// authenticates every request through an oauth2 transport using the "token"
// authorization scheme.
func NewHTTPClient(token string) *http.Client {
	if token == "" {
		return &http.Client{Timeout: requestTimeout}
	}

	source := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   authScheme,
	})
	return &http.Client{
		Timeout: requestTimeout,
		Transport: &oauth2.Transport{
			Source: source,
			Base:   http.DefaultTransport,
		},
	}
}

// NewClient creates a new GitHub API client
func NewClient(opts Options) (*Client, error) {
	api := gh.NewClient(NewHTTPClient(opts.Token))
	api.UserAgent = userAgent

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL %q: %w", baseURL, err)
	}
	api.BaseURL = parsed

	client := &Client{
		api:         api,
		maxAttempts: opts.MaxAttempts,
		retryBase:   opts.RetryBase,
		logger:      opts.Logger,
		observer:    opts.Observer,
	}
	if client.maxAttempts <= 0 {
		client.maxAttempts = defaultMaxAttempts
	}
	if client.retryBase < 0 {
		client.retryBase = defaultRetryBase
	}
	if client.logger == nil {
		client.logger = zap.NewNop()
	}
	return client, nil
}

// policy builds the retry policy for one API operation. fatal errors are
// returned without further attempts.
func (c *Client) policy(op string, fatal func(error) bool) retry.Policy {
	return retry.Policy{
		MaxAttempts: c.maxAttempts,
		Backoff:     retry.Linear(c.retryBase),
		Retryable:   errs.IsRetryable,
		Fatal:       fatal,
		Notify: func(attempt int, err error, next time.Duration) {
			c.logger.Warn("GitHub API request failed, retrying",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", next),
				zap.Error(err),
			)
			if c.observer != nil {
				c.observer.ObserveAPIRetry(op)
			}
		},
	}
}

// classify converts go-github errors into errors.APIError
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return errs.NewHTTPError(op, statusOf(rateErr.Response, http.StatusForbidden), rateErr.Message, err)
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return errs.NewHTTPError(op, statusOf(abuseErr.Response, http.StatusForbidden), abuseErr.Message, err)
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		status := respErr.Response.StatusCode
		message := respErr.Message
		if message == "" {
			message = http.StatusText(status)
		}
		if status == http.StatusNotFound {
			err = fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return errs.NewHTTPError(op, status, message, err)
	}

	return errs.NewAPIError(op, err.Error(), err)
}

func statusOf(resp *http.Response, fallback int) int {
	if resp == nil || resp.StatusCode == 0 {
		return fallback
	}
	return resp.StatusCode
}
