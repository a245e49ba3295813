// Package urlutils builds and sanitizes the clone URLs used for mirroring.
// Clone URLs are derived from a base (https://github.com for public GitHub,
// any https:// or file:// base otherwise), an owner and a repository name.
// Tokens are embedded as URL user info for HTTPS remotes and must be
// stripped again before a URL is logged.
package urlutils

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// ErrInvalidURL indicates that the provided URL is not valid
	ErrInvalidURL = errors.New("invalid URL format")

	// ErrUnsupportedScheme indicates a clone base that is neither https nor file
	ErrUnsupportedScheme = errors.New("clone base must use https or file scheme")

	// ErrInvalidOwner indicates that an owner name is not a valid GitHub login
	ErrInvalidOwner = errors.New("invalid owner name")

	// ErrInvalidRepository indicates that a repository name is unsafe or malformed
	ErrInvalidRepository = errors.New("invalid repository name")

	// ErrEmptyToken indicates that an empty token was provided
	ErrEmptyToken = errors.New("empty token provided")

	// Regular expressions for validation
	ownerRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,38}$`)
	repoRegex  = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,100}$`)
)

const redactedUserInfo = "redacted"

// ValidateOwner checks that owner looks like a GitHub user or organization login.
func ValidateOwner(owner string) error {
	if !ownerRegex.MatchString(owner) {
		return fmt.Errorf("%w: %q", ErrInvalidOwner, owner)
	}
	return nil
}

// ValidateRepositoryName checks that name is a GitHub repository name that is
// safe to use as a single directory segment.
func ValidateRepositoryName(name string) error {
	if name == "." || name == ".." || !repoRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidRepository, name)
	}
	return nil
}

// ParseBase parses and validates a clone base such as https://github.com.
func ParseBase(rawBase string) (*url.URL, error) {
	base, err := url.Parse(strings.TrimSuffix(rawBase, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	switch base.Scheme {
	case "https":
		if base.Host == "" {
			return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
		}
	case "file":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, rawBase)
	}

	base.User = nil
	return base, nil
}

// RepositoryURL returns the unauthenticated clone URL of owner/repo under base.
//
//	RepositoryURL("https://github.com", "octocat", "hello") // https://github.com/octocat/hello.git
func RepositoryURL(rawBase, owner, repo string) (string, error) {
	base, err := ParseBase(rawBase)
	if err != nil {
		return "", err
	}
	if err := ValidateRepositoryName(repo); err != nil {
		return "", err
	}

	repoURL := *base
	repoURL.Path = strings.TrimSuffix(base.Path, "/") + "/" + owner + "/" + repo + ".git"
	return repoURL.String(), nil
}

// FormatTokenURL formats a URL with the provided token.
// It creates a new URL with the token embedded as the user info component.
// The original URL is not modified.
func FormatTokenURL(parsedURL *url.URL, token string) (*url.URL, error) {
	if parsedURL == nil {
		return nil, fmt.Errorf("%w: nil URL provided", ErrInvalidURL)
	}

	if token == "" {
		return nil, ErrEmptyToken
	}

	tokenURL := *parsedURL
	tokenURL.User = url.User(token)

	return &tokenURL, nil
}

// AuthenticatedURL embeds token into an HTTPS clone URL. URLs with any other
// scheme, and calls with an empty token, return rawURL unchanged.
func AuthenticatedURL(rawURL, token string) (string, error) {
	if token == "" {
		return rawURL, nil
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsedURL.Scheme != "https" {
		return rawURL, nil
	}

	tokenURL, err := FormatTokenURL(parsedURL, token)
	if err != nil {
		return "", err
	}
	return tokenURL.String(), nil
}

// Redact replaces any user info in rawURL so the result is safe to log.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	u.User = url.User(redactedUserInfo)
	return u.String()
}
