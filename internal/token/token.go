// Package token resolves the GitHub access token used for API calls and
// clone URLs.
//
// Resolution order
//
// A token passed explicitly (flag or config file) always wins. Otherwise the
// plain environment variables GITHUB_TOKEN and GH_TOKEN are consulted, then
// the JSON token store GIT_TOKEN_GITHUB shared with the other git tools:
//
//	export GITHUB_TOKEN="ghp_..."
//	export GIT_TOKEN_GITHUB='{"Value":"ghp_...","ExpiresAt":"2030-01-01T00:00:00Z"}'
//
// No token is not an error: mirroring public repositories works without one,
// subject to lower rate limits.
package token

import (
	"errors"
	"time"
)

// Common errors that may be returned by token operations
var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenInvalid  = errors.New("token is invalid")
	ErrTokenExpired  = errors.New("token has expired")
)

// Token represents an authentication token with metadata
type Token struct {
	// Value is the actual token string
	Value string `json:"Value"`

	// ExpiresAt indicates when the token will expire
	// Zero value means the token does not expire
	ExpiresAt time.Time `json:"ExpiresAt"`

	// Source names where the token was found (flag, GITHUB_TOKEN, ...)
	Source string `json:"-"`
}

// IsExpired checks if a token has expired
func IsExpired(token Token) bool {
	if token.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(token.ExpiresAt)
}

// IsValid performs basic validation of a token
func IsValid(token Token) bool {
	return token.Value != ""
}
