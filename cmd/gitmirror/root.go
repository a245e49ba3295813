package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NicabarNimble/go-gitmirror/internal/config"
	"github.com/NicabarNimble/go-gitmirror/internal/git"
	"github.com/NicabarNimble/go-gitmirror/internal/github"
	"github.com/NicabarNimble/go-gitmirror/internal/logging"
	"github.com/NicabarNimble/go-gitmirror/internal/metrics"
	"github.com/NicabarNimble/go-gitmirror/internal/mirror"
	"github.com/NicabarNimble/go-gitmirror/internal/progress"
	"github.com/NicabarNimble/go-gitmirror/internal/token"
)

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var (
		configFile string
		tokenCheck bool
	)

	cmd := &cobra.Command{
		Use:   "gitmirror [username]",
		Short: "Mirror the repositories of a GitHub user to local disk",
		Long: `Mirror every public, non-fork repository of a GitHub user to local disk
using shallow clones. With --branches every branch is cloned into its own
directory.

The token is read from GITHUB_TOKEN, GH_TOKEN, GITMIRROR_TOKEN or the
GIT_TOKEN_GITHUB token store. Without a token the API rate limit is low.

Example usage:
  gitmirror octocat
  gitmirror octocat --branches --output /srv/mirror
  GITMIRROR_BACKEND=gogit gitmirror octocat --report-file run.yaml
  gitmirror --check-token`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := config.LoadOptions{
				ConfigFile: configFile,
				EnvFile:    config.DefaultEnvFile,
				Flags:      cmd.Flags(),
			}
			if len(args) == 1 {
				opts.Username = args[0]
			}

			cfg, err := config.Load(opts)
			if err != nil {
				return err
			}
			if tokenCheck {
				return checkToken(cmd.Context(), cfg, stdout)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runMirror(cmd.Context(), cfg, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "YAML configuration file")
	flags.BoolVar(&tokenCheck, "check-token", false, "Verify the configured token and show the API quota, then exit")
	flags.Bool("branches", false, "Clone every branch into its own directory")
	flags.String("output", "./repositories", "Output root directory")
	flags.String("backend", string(git.BackendExec), "Clone backend: exec or gogit")
	flags.String("log-level", string(logging.LevelInfo), "Log level: debug, info, warn or error")
	flags.String("log-format", string(logging.FormatConsole), "Log format: console or json")
	flags.String("metrics-file", "", "Write Prometheus text-format metrics to this file")
	flags.String("report-file", "", "Write the run summary as YAML to this file")

	return cmd
}

func runMirror(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(level, format, stderr)
	if err != nil {
		return err
	}
	logger, _ = logging.WithRunID(logger)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting mirror",
		zap.String("user", cfg.Username),
		zap.String("mode", string(cfg.Mode())),
		zap.String("backend", cfg.Backend),
		zap.String("output", cfg.Output),
	)

	recorder := metrics.New(nil)
	client, err := github.NewClient(github.Options{
		BaseURL:     cfg.APIBaseURL,
		Token:       cfg.Token,
		MaxAttempts: cfg.ListAttempts,
		RetryBase:   cfg.ListBackoff,
		Logger:      logger,
		Observer:    recorder,
	})
	if err != nil {
		return err
	}

	if cfg.Token != "" {
		logger.Info("using GitHub token", zap.String("source", cfg.TokenSource))
		if token.LooksForeign(cfg.Token) {
			logger.Warn("token does not look like a GitHub token", zap.String("provider", string(token.DetectProvider(cfg.Token))))
		}
		preflight(ctx, client, logger)
	}

	cloner, err := newCloner(cfg, level, stderr, logger)
	if err != nil {
		return err
	}

	m := mirror.New(mirror.Options{
		Username:        cfg.Username,
		Token:           cfg.Token,
		OutputRoot:      cfg.Output,
		Mode:            cfg.Mode(),
		RepositoryDelay: cfg.RepositoryDelay,
		BranchDelay:     cfg.BranchDelay,
		Repositories:    client,
		Branches:        client,
		Cloner:          cloner,
		Clone: mirror.ClonerOptions{
			CloneBase: cfg.CloneBaseURL,
			Attempts:  cfg.CloneAttempts,
			Backoff:   cfg.CloneBackoff,
		},
		Tracker:  progress.NewConsoleTracker(stdout),
		Recorder: recorder,
		Logger:   logger,
	})

	summary, runErr := m.Run(ctx)
	recorder.RecordRun(summary.StartedAt, summary.FinishedAt)
	if runErr == nil || errors.Is(runErr, context.Canceled) {
		mirror.PrintSummary(stdout, summary)
	}

	outputErr := writeOutputs(cfg, summary, recorder, logger)
	if runErr != nil {
		logger.Error("mirror run failed", zap.Error(runErr))
		return runErr
	}
	return outputErr
}

// preflight logs the remaining API quota. Failures only warn.
func preflight(ctx context.Context, client *github.Client, logger *zap.Logger) {
	limit, err := client.CoreRateLimit(ctx)
	if err != nil {
		logger.Warn("could not query API rate limit", zap.Error(err))
		return
	}
	logger.Info("GitHub API quota",
		zap.Int("remaining", limit.Remaining),
		zap.Int("limit", limit.Limit),
		zap.Time("reset", limit.Reset),
	)
}

func newCloner(cfg *config.Config, level logging.Level, stderr io.Writer, logger *zap.Logger) (git.Cloner, error) {
	backend, err := git.ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	// git transfer progress is only shown when debugging
	var progressOut io.Writer
	if level == logging.LevelDebug {
		progressOut = stderr
	}

	switch backend {
	case git.BackendGoGit:
		return git.NewGoGitCloner(git.GoGitOptions{Progress: progressOut, Logger: logger}), nil
	default:
		cloner := git.NewExecCloner(git.ExecOptions{Progress: progressOut, Logger: logger})
		if !cloner.Available() {
			return nil, fmt.Errorf("git executable not found; install git or use --backend %s", git.BackendGoGit)
		}
		return cloner, nil
	}
}

func writeOutputs(cfg *config.Config, summary mirror.Summary, recorder *metrics.Recorder, logger *zap.Logger) error {
	var errs []error
	if cfg.MetricsFile != "" {
		if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		} else {
			logger.Info("wrote metrics", zap.String("path", cfg.MetricsFile))
		}
	}
	if cfg.ReportFile != "" {
		if err := mirror.WriteReport(cfg.ReportFile, summary); err != nil {
			errs = append(errs, err)
		} else {
			logger.Info("wrote report", zap.String("path", cfg.ReportFile))
		}
	}
	return errors.Join(errs...)
}
