package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v39/github"
	"golang.org/x/oauth2"
)

// PageSize is the largest page the pulls endpoints accept.
const PageSize = 100

// GitHubClientInterface is the read-only slice of the GitHub API the report needs
type GitHubClientInterface interface {
	ListClosedPullRequests(ctx context.Context, owner, repo string, page, perPage int) ([]*github.PullRequest, error)
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	ListReviews(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestReview, error)
}

type GitHubClient struct {
	client *github.Client
}

// NewGitHubClient authenticates with a static token. An empty baseURL talks to
// api.github.com; otherwise it must be the REST root, e.g. https://ghe.example.com/api/v3/.
func NewGitHubClient(ctx context.Context, token, baseURL string) (*GitHubClient, error) {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", baseURL, err)
		}
		client.BaseURL = u
	}

	return &GitHubClient{client: client}, nil
}

// ListClosedPullRequests returns one page of closed PRs, newest created first.
// Pages start at 1.
func (c *GitHubClient) ListClosedPullRequests(ctx context.Context, owner, repo string, page, perPage int) ([]*github.PullRequest, error) {
	opts := &github.PullRequestListOptions{
		State:       "closed",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}

	prs, _, err := c.client.PullRequests.List(ctx, owner, repo, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list closed pull requests (page %d): %w", page, err)
	}
	return prs, nil
}

func (c *GitHubClient) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	pr, _, err := c.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pull request #%d: %w", number, err)
	}
	return pr, nil
}

// ListReviews returns every review on the PR in the order the API reports them.
func (c *GitHubClient) ListReviews(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestReview, error) {
	var all []*github.PullRequestReview
	opts := &github.ListOptions{PerPage: PageSize}

	for {
		reviews, resp, err := c.client.PullRequests.ListReviews(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch reviews for pull request #%d: %w", number, err)
		}
		all = append(all, reviews...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}
