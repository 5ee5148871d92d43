package github

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/go-github/v39/github"

	"github.com/reillywatson/pr-review-stats/internal/cache"
)

const (
	mergedTTL = 24 * time.Hour
	activeTTL = 1 * time.Hour
)

// CachedGitHubClient serves PR details and reviews from a cache. Listing is
// always live since every new PR shifts the pages.
type CachedGitHubClient struct {
	client GitHubClientInterface
	cache  cache.Cache
	kb     *cache.KeyBuilder
	logger *slog.Logger
}

func NewCachedGitHubClient(client GitHubClientInterface, cacheImpl cache.Cache, owner, repo string, logger *slog.Logger) *CachedGitHubClient {
	return &CachedGitHubClient{
		client: client,
		cache:  cacheImpl,
		kb:     cache.NewKeyBuilder("github", owner, repo),
		logger: logger,
	}
}

func (c *CachedGitHubClient) ListClosedPullRequests(ctx context.Context, owner, repo string, page, perPage int) ([]*github.PullRequest, error) {
	return c.client.ListClosedPullRequests(ctx, owner, repo, page, perPage)
}

func (c *CachedGitHubClient) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	key := c.kb.PullRequestKey(number)
	var cached *github.PullRequest
	if err := c.cache.Get(key, &cached); err == nil && cached != nil {
		c.logger.Debug("cache hit", slog.String("key", key))
		return cached, nil
	} else if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	pr, err := c.client.GetPullRequest(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	if isPRCacheable(pr) {
		if err := c.cache.Set(key, pr, mergedTTL); err != nil {
			c.logger.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return pr, nil
}

func (c *CachedGitHubClient) ListReviews(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestReview, error) {
	key := c.kb.ReviewsKey(number)
	var cached []*github.PullRequestReview
	if err := c.cache.Get(key, &cached); err == nil {
		c.logger.Debug("cache hit", slog.String("key", key))
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	reviews, err := c.client.ListReviews(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	// Merged PRs rarely collect new reviews; keep them longer.
	ttl := activeTTL
	var pr *github.PullRequest
	if err := c.cache.Get(c.kb.PullRequestKey(number), &pr); err == nil && isPRCacheable(pr) {
		ttl = mergedTTL
	}
	if err := c.cache.Set(key, reviews, ttl); err != nil {
		c.logger.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
	}

	return reviews, nil
}

// Close releases the cache
func (c *CachedGitHubClient) Close() error {
	return c.cache.Close()
}

// isPRCacheable holds only for merged PRs. A closed but unmerged PR can still
// be reopened and merged.
func isPRCacheable(pr *github.PullRequest) bool {
	if pr == nil {
		return false
	}
	return pr.GetMerged()
}
