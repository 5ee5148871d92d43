package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reillywatson/pr-review-stats/internal/cache"
	"github.com/reillywatson/pr-review-stats/internal/config"
	"github.com/reillywatson/pr-review-stats/internal/github"
	"github.com/reillywatson/pr-review-stats/internal/logging"
	"github.com/reillywatson/pr-review-stats/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		envFile string
		noCache bool
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "pr-review-stats",
		Short: "Report review and merge times for recently closed pull requests",
		Long: `Walks the most recently created closed pull requests of GITHUB_OWNER/GITHUB_REPO
and reports time to merge, time to first and second review and change size for
those merged into TARGET_BRANCH (or any branch when it is unset).

Required environment variables:
  GITHUB_TOKEN, GITHUB_OWNER, GITHUB_REPO

Optional:
  TARGET_BRANCH, NUMBER_CLOSED_PULL_REQUESTS_TO_EVALUATE (default 50),
  MINIMUM_LINES_CHANGED, GITHUB_API_URL, PR_STATS_CACHE_DIR,
  PR_STATS_NO_CACHE, PR_STATS_CONCURRENCY, DEBUG`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("no-cache") {
				cfg.NoCache = noCache
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debug
			}

			logger := logging.New(cmd.ErrOrStderr(), cfg.Debug)
			return run(cmd.Context(), cfg, cmd.OutOrStdout(), logger)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before reading the environment")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "always fetch pull request details and reviews from the API")
	cmd.Flags().BoolVar(&debug, "debug", false, "log every page fetched and every skipped pull request")

	return cmd
}

func run(ctx context.Context, cfg config.Config, out io.Writer, logger *slog.Logger) error {
	logger.Debug("config", slog.Any("config", cfg))

	apiClient, err := github.NewGitHubClient(ctx, cfg.Token, cfg.BaseURL)
	if err != nil {
		return err
	}

	var client github.GitHubClientInterface = apiClient
	if !cfg.NoCache {
		fileCache, err := cache.New(cfg.CacheDir)
		if err != nil {
			return fmt.Errorf("error creating cache: %w", err)
		}
		cached := github.NewCachedGitHubClient(apiClient, fileCache, cfg.Owner, cfg.Repo, logger)
		defer cached.Close()
		logger.Debug("using response cache", slog.String("dir", fileCache.Dir()))
		client = cached
	}

	criteria := cfg.Criteria()
	printer := report.NewPrinter(out)
	printer.Header(cfg.Owner, cfg.Repo, criteria.Branch)

	acc, err := github.Evaluate(ctx, client, github.EvaluateOptions{
		Owner:       cfg.Owner,
		Repo:        cfg.Repo,
		Limit:       cfg.MaxPullRequests,
		Criteria:    criteria,
		Concurrency: cfg.Concurrency,
		Logger:      logger,
	}, printer.PullRequest)
	if err != nil {
		return fmt.Errorf("error evaluating pull requests: %w", err)
	}

	printer.Summary(acc.Summary())
	return nil
}
