package token

import "strings"

// Provider represents a Git provider type
type Provider string

const (
	ProviderGitHub Provider = "GITHUB"
	ProviderGitLab Provider = "GITLAB"
)

// DetectProvider attempts to determine the token provider from the token format
func DetectProvider(tokenValue string) Provider {
	switch {
	case strings.HasPrefix(tokenValue, "ghp_"),
		strings.HasPrefix(tokenValue, "gho_"),
		strings.HasPrefix(tokenValue, "ghs_"),
		strings.HasPrefix(tokenValue, "github_pat_"):
		return ProviderGitHub
	case strings.HasPrefix(tokenValue, "glpat-"):
		return ProviderGitLab
	default:
		return ""
	}
}

// LooksForeign reports whether the token clearly belongs to another provider.
// Unknown formats are not foreign: classic tokens carry no prefix.
func LooksForeign(tokenValue string) bool {
	provider := DetectProvider(tokenValue)
	return provider != "" && provider != ProviderGitHub
}

// Mask hides all but the first and last four characters of a token
func Mask(tokenValue string) string {
	const visible = 4
	if len(tokenValue) <= 3*visible {
		return strings.Repeat("*", len(tokenValue))
	}
	return tokenValue[:visible] + strings.Repeat("*", len(tokenValue)-2*visible) + tokenValue[len(tokenValue)-visible:]
}
