package token

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// EnvPrefix is the prefix used for JSON token store environment variables
	EnvPrefix = "GIT_TOKEN_"

	// SourceExplicit marks a token passed by flag or config file
	SourceExplicit = "explicit"
)

// PlainEnvVars are consulted, in order, before the JSON token store.
var PlainEnvVars = []string{"GITHUB_TOKEN", "GH_TOKEN"}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// EnvStorage reads tokens from environment variables with the GIT_TOKEN_
// prefix. Values are JSON encoded Token objects; a bare string is accepted
// as the token value.
type EnvStorage struct {
	lookup LookupFunc
}

// NewEnvStorage creates an environment backed token store reading through lookup
func NewEnvStorage(lookup LookupFunc) *EnvStorage {
	return &EnvStorage{lookup: lookup}
}

// Retrieve gets a token by its key from environment variables
func (e *EnvStorage) Retrieve(key string) (Token, error) {
	envKey := e.FormatEnvKey(key)
	data, ok := e.lookup(envKey)
	data = strings.TrimSpace(data)
	if !ok || data == "" {
		return Token{}, ErrTokenNotFound
	}

	var token Token
	if strings.HasPrefix(data, "{") {
		if err := json.Unmarshal([]byte(data), &token); err != nil {
			return Token{}, fmt.Errorf("failed to unmarshal token: %w", err)
		}
	} else {
		token.Value = data
	}
	token.Source = envKey

	if !IsValid(token) {
		return Token{}, ErrTokenInvalid
	}
	if IsExpired(token) {
		return Token{}, ErrTokenExpired
	}

	return token, nil
}

// FormatEnvKey converts a token key into an environment variable name
func (e *EnvStorage) FormatEnvKey(key string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, strings.ToUpper(key))

	return EnvPrefix + sanitized
}

// Resolve picks the token to use. explicit wins when non-empty; otherwise
// PlainEnvVars and then the GIT_TOKEN_GITHUB store are consulted. It returns
// ErrTokenNotFound when nothing is configured and ErrTokenExpired or
// ErrTokenInvalid when the store holds an unusable token.
func Resolve(explicit string, lookup LookupFunc) (Token, error) {
	if value := strings.TrimSpace(explicit); value != "" {
		return Token{Value: value, Source: SourceExplicit}, nil
	}

	for _, name := range PlainEnvVars {
		if value, ok := lookup(name); ok && strings.TrimSpace(value) != "" {
			return Token{Value: strings.TrimSpace(value), Source: name}, nil
		}
	}

	return NewEnvStorage(lookup).Retrieve(string(ProviderGitHub))
}
