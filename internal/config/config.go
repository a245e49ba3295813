// Package config resolves the settings of a mirror run.
//
// Values are layered, lowest first: built-in defaults, an optional YAML
// config file, a .env file, the environment (GITMIRROR_<KEY>) and finally
// command-line flags. The token is resolved separately through the token
// package so that GITHUB_TOKEN, GH_TOKEN and GIT_TOKEN_GITHUB work as they do
// for the other git tools.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/NicabarNimble/go-gitmirror/internal/git"
	"github.com/NicabarNimble/go-gitmirror/internal/github"
	"github.com/NicabarNimble/go-gitmirror/internal/logging"
	"github.com/NicabarNimble/go-gitmirror/internal/mirror"
	"github.com/NicabarNimble/go-gitmirror/internal/token"
	"github.com/NicabarNimble/go-gitmirror/internal/urlutils"
)

const (
	// EnvPrefix prefixes every configuration environment variable
	EnvPrefix = "GITMIRROR"

	// DefaultEnvFile is loaded from the working directory when present
	DefaultEnvFile = ".env"
)

// Keys shared by the config file, environment variables and flags. A flag
// named "log-level" sets the key "log_level".
const (
	KeyUsername        = "username"
	KeyToken           = "token"
	KeyBranches        = "branches"
	KeyOutput          = "output"
	KeyBackend         = "backend"
	KeyLogLevel        = "log_level"
	KeyLogFormat       = "log_format"
	KeyMetricsFile     = "metrics_file"
	KeyReportFile      = "report_file"
	KeyAPIBaseURL      = "api_base_url"
	KeyCloneBaseURL    = "clone_base_url"
	KeyRepositoryDelay = "repository_delay"
	KeyBranchDelay     = "branch_delay"
	KeyListAttempts    = "list_attempts"
	KeyListBackoff     = "list_backoff"
	KeyCloneAttempts   = "clone_attempts"
	KeyCloneBackoff    = "clone_backoff"
)

// Config holds everything a mirror run needs
type Config struct {
	Username string `mapstructure:"username"`
	Token    string `mapstructure:"token"`

	// TokenSource names where Token came from; empty without a token
	TokenSource string `mapstructure:"-"`

	Branches    bool   `mapstructure:"branches"`
	Output      string `mapstructure:"output"`
	Backend     string `mapstructure:"backend"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	MetricsFile string `mapstructure:"metrics_file"`
	ReportFile  string `mapstructure:"report_file"`

	APIBaseURL   string `mapstructure:"api_base_url"`
	CloneBaseURL string `mapstructure:"clone_base_url"`

	RepositoryDelay time.Duration `mapstructure:"repository_delay"`
	BranchDelay     time.Duration `mapstructure:"branch_delay"`
	ListAttempts    int           `mapstructure:"list_attempts"`
	ListBackoff     time.Duration `mapstructure:"list_backoff"`
	CloneAttempts   int           `mapstructure:"clone_attempts"`
	CloneBackoff    time.Duration `mapstructure:"clone_backoff"`
}

// Defaults returns the built-in configuration values
func Defaults() map[string]any {
	return map[string]any{
		KeyUsername:        "",
		KeyToken:           "",
		KeyBranches:        false,
		KeyOutput:          "./repositories",
		KeyBackend:         string(git.BackendExec),
		KeyLogLevel:        string(logging.LevelInfo),
		KeyLogFormat:       string(logging.FormatConsole),
		KeyMetricsFile:     "",
		KeyReportFile:      "",
		KeyAPIBaseURL:      github.DefaultBaseURL,
		KeyCloneBaseURL:    "https://github.com",
		KeyRepositoryDelay: time.Second,
		KeyBranchDelay:     500 * time.Millisecond,
		KeyListAttempts:    3,
		KeyListBackoff:     time.Second,
		KeyCloneAttempts:   3,
		KeyCloneBackoff:    500 * time.Millisecond,
	}
}

// LoadOptions configures Load
type LoadOptions struct {
	// ConfigFile is an optional YAML file; it must exist when set
	ConfigFile string

	// EnvFile is loaded into the environment when it exists. Variables that
	// are already set keep their value.
	EnvFile string

	// Flags are bound after the environment so explicitly set flags win
	Flags *pflag.FlagSet

	// Username overrides every other source when non-empty
	Username string

	// Lookup reads environment variables for token resolution; os.LookupEnv
	// when nil
	Lookup token.LookupFunc
}

// Load builds a Config from all sources. It does not validate the result.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if _, err := os.Stat(opts.EnvFile); err == nil {
			if err := godotenv.Load(opts.EnvFile); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", opts.EnvFile, err)
			}
		}
	}

	v := viper.New()
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	if opts.Flags != nil {
		var bindErr error
		opts.Flags.VisitAll(func(flag *pflag.Flag) {
			key := strings.ReplaceAll(flag.Name, "-", "_")
			if err := v.BindPFlag(key, flag); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if opts.Username != "" {
		cfg.Username = opts.Username
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	resolved, err := token.Resolve(cfg.Token, lookup)
	switch {
	case err == nil:
		cfg.Token = resolved.Value
		cfg.TokenSource = resolved.Source
	case stderrors.Is(err, token.ErrTokenNotFound):
		cfg.Token = ""
	default:
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration can drive a run
func (c *Config) Validate() error {
	if c.Username == "" {
		return mirror.ErrMissingUsername
	}
	if err := urlutils.ValidateOwner(c.Username); err != nil {
		return err
	}
	if c.Output == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if _, err := git.ParseBackend(c.Backend); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		return err
	}
	if _, err := urlutils.ParseBase(c.CloneBaseURL); err != nil {
		return fmt.Errorf("invalid clone base URL: %w", err)
	}
	if c.RepositoryDelay < 0 || c.BranchDelay < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	if c.ListBackoff < 0 || c.CloneBackoff < 0 {
		return fmt.Errorf("backoff cannot be negative")
	}
	if c.ListAttempts < 1 || c.CloneAttempts < 1 {
		return fmt.Errorf("attempts must be at least 1")
	}
	return nil
}

// Mode returns the mirror mode selected by Branches
func (c *Config) Mode() mirror.Mode {
	if c.Branches {
		return mirror.ModeBranches
	}
	return mirror.ModeRoot
}
