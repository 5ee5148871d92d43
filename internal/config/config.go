package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/reillywatson/pr-review-stats/internal/github"
)

type Config struct {
	Token string `env:"GITHUB_TOKEN,notEmpty"`
	Owner string `env:"GITHUB_OWNER,notEmpty"`
	Repo  string `env:"GITHUB_REPO,notEmpty"`

	// TargetBranch is optional; empty counts PRs merged into any branch.
	TargetBranch        string `env:"TARGET_BRANCH"`
	MaxPullRequests     int    `env:"NUMBER_CLOSED_PULL_REQUESTS_TO_EVALUATE" envDefault:"50"`
	MinimumLinesChanged *int   `env:"MINIMUM_LINES_CHANGED"`

	BaseURL     string `env:"GITHUB_API_URL"`
	CacheDir    string `env:"PR_STATS_CACHE_DIR"`
	NoCache     bool   `env:"PR_STATS_NO_CACHE" envDefault:"false"`
	Concurrency int    `env:"PR_STATS_CONCURRENCY" envDefault:"1"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`
}

// Load reads the configuration from the environment. envFile, if it exists,
// is loaded first; variables already set in the process win. A malformed
// number, such as a non-numeric NUMBER_CLOSED_PULL_REQUESTS_TO_EVALUATE, is
// an error rather than a run that evaluates nothing.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("godotenv.Load %s: %w", envFile, err)
		}
	}

	var config Config
	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("env.Parse: %w", err)
	}
	return config, nil
}

func (c Config) Criteria() github.Criteria {
	branch := github.AnyBranch()
	if c.TargetBranch != "" {
		branch = github.OnlyBranch(c.TargetBranch)
	}
	return github.Criteria{
		Branch:              branch,
		MinimumLinesChanged: c.MinimumLinesChanged,
	}
}

// LogValue keeps the token out of logs.
func (c Config) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("owner", c.Owner),
		slog.String("repo", c.Repo),
		slog.String("target_branch", c.TargetBranch),
		slog.Int("max_pull_requests", c.MaxPullRequests),
		slog.Bool("no_cache", c.NoCache),
		slog.Int("concurrency", c.Concurrency),
	}
	if c.MinimumLinesChanged != nil {
		attrs = append(attrs, slog.Int("minimum_lines_changed", *c.MinimumLinesChanged))
	}
	if c.BaseURL != "" {
		attrs = append(attrs, slog.String("api_url", c.BaseURL))
	}
	return slog.GroupValue(attrs...)
}
