package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/NicabarNimble/go-gitmirror/internal/config"
	"github.com/NicabarNimble/go-gitmirror/internal/github"
	"github.com/NicabarNimble/go-gitmirror/internal/token"
)

// checkToken reports which token a run would use and verifies it against the
// API without cloning anything.
func checkToken(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	if cfg.Token == "" {
		return fmt.Errorf("no GitHub token configured; set GITHUB_TOKEN or GITMIRROR_TOKEN")
	}

	fmt.Fprintf(stdout, "Token source: %s\n", cfg.TokenSource)
	fmt.Fprintf(stdout, "Token:        %s\n", token.Mask(cfg.Token))
	if token.LooksForeign(cfg.Token) {
		return fmt.Errorf("token looks like a %s token, not a GitHub token", token.DetectProvider(cfg.Token))
	}

	client, err := github.NewClient(github.Options{BaseURL: cfg.APIBaseURL, Token: cfg.Token})
	if err != nil {
		return err
	}
	limit, err := client.CoreRateLimit(ctx)
	if err != nil {
		return fmt.Errorf("token rejected by GitHub: %w", err)
	}

	fmt.Fprintf(stdout, "API quota:    %d of %d requests remaining, resets at %s\n",
		limit.Remaining, limit.Limit, limit.Reset.UTC().Format(time.RFC3339))
	return nil
}
