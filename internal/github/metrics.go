package github

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v39/github"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// EvaluateOptions controls a single report run.
type EvaluateOptions struct {
	Owner    string
	Repo     string
	Limit    int // stop after this many accepted PRs
	Criteria Criteria
	// Concurrency > 1 enriches each page with that many parallel requests.
	// Results are still folded in listing order.
	Concurrency int
	Logger      *slog.Logger
}

// Accepts reports whether a fully fetched pull request counts toward the report.
func (c Criteria) Accepts(pr *github.PullRequest) bool {
	return c.rejection(pr) == ""
}

func (c Criteria) rejection(pr *github.PullRequest) string {
	if !pr.GetMerged() {
		return "not merged"
	}
	if !c.Branch.Matches(pr.GetBase().GetRef()) {
		return "base branch " + pr.GetBase().GetRef()
	}
	if c.MinimumLinesChanged != nil && pr.GetAdditions()+pr.GetDeletions() < *c.MinimumLinesChanged {
		return fmt.Sprintf("only %d lines changed", pr.GetAdditions()+pr.GetDeletions())
	}
	return ""
}

// NewPullRequestMetric extracts the reported fields from a PR and its reviews.
// Reviews are taken in list order, skipping nil entries; only the first two
// matter.
func NewPullRequestMetric(pr *github.PullRequest, reviews []*github.PullRequestReview) PullRequestMetric {
	reviews = lo.Compact(reviews)
	m := PullRequestMetric{
		PRNumber:     pr.GetNumber(),
		PRTitle:      pr.GetTitle(),
		Author:       pr.GetUser().GetLogin(),
		CreatedAt:    pr.GetCreatedAt(),
		MergedAt:     pr.MergedAt,
		LinesAdded:   pr.GetAdditions(),
		LinesRemoved: pr.GetDeletions(),
	}
	if len(reviews) > 0 {
		m.FirstReview = newReviewEvent(reviews[0])
	}
	if len(reviews) > 1 {
		m.SecondReview = newReviewEvent(reviews[1])
	}
	return m
}

func newReviewEvent(r *github.PullRequestReview) *ReviewEvent {
	return &ReviewEvent{
		Reviewer:    r.GetUser().GetLogin(),
		SubmittedAt: r.SubmittedAt,
	}
}

// Evaluate walks closed PRs newest first, page by page, and folds every
// accepted one into the returned Accumulator. onAccepted, if non-nil, sees each
// accepted PR in order. It stops as soon as opts.Limit PRs have been accepted,
// without finishing the current page, or when a page comes back empty.
func Evaluate(ctx context.Context, client GitHubClientInterface, opts EvaluateOptions, onAccepted func(PullRequestMetric)) (Accumulator, error) {
	e := &evaluator{client: client, opts: opts, onAccepted: onAccepted, logger: opts.Logger}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	var acc Accumulator
	for page := 1; acc.Evaluated < opts.Limit; page++ {
		prs, err := client.ListClosedPullRequests(ctx, opts.Owner, opts.Repo, page, PageSize)
		if err != nil {
			return Accumulator{}, err
		}
		if len(prs) == 0 {
			e.logger.Debug("no more closed pull requests", slog.Int("page", page))
			break
		}
		e.logger.Debug("fetched page", slog.Int("page", page), slog.Any("numbers", lo.Map(prs, func(pr *github.PullRequest, _ int) int {
			return pr.GetNumber()
		})))

		if opts.Concurrency > 1 {
			acc, err = e.foldPageConcurrently(ctx, acc, prs)
		} else {
			acc, err = e.foldPage(ctx, acc, prs)
		}
		if err != nil {
			return Accumulator{}, err
		}
	}

	return acc, nil
}

type evaluator struct {
	client     GitHubClientInterface
	opts       EvaluateOptions
	onAccepted func(PullRequestMetric)
	logger     *slog.Logger
}

// enriched is the outcome of fetching one PR: ok is false for rejected PRs.
type enriched struct {
	metric PullRequestMetric
	ok     bool
}

func (e *evaluator) foldPage(ctx context.Context, acc Accumulator, prs []*github.PullRequest) (Accumulator, error) {
	for _, pr := range prs {
		if acc.Evaluated >= e.opts.Limit {
			break
		}
		res, err := e.enrich(ctx, pr.GetNumber())
		if err != nil {
			return acc, err
		}
		acc = e.accept(acc, res)
	}
	return acc, nil
}

// foldPageConcurrently enriches the whole page in parallel, then folds the
// results in listing order. A failed fetch only aborts the run if the fold
// reaches it before the limit, so the outcome matches foldPage.
func (e *evaluator) foldPageConcurrently(ctx context.Context, acc Accumulator, prs []*github.PullRequest) (Accumulator, error) {
	results := make([]enriched, len(prs))
	errs := make([]error, len(prs))

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, pr := range prs {
		i, pr := i, pr
		g.Go(func() error {
			results[i], errs[i] = e.enrich(ctx, pr.GetNumber())
			return nil
		})
	}
	_ = g.Wait()

	for i, res := range results {
		if acc.Evaluated >= e.opts.Limit {
			break
		}
		if errs[i] != nil {
			return acc, errs[i]
		}
		acc = e.accept(acc, res)
	}
	return acc, nil
}

func (e *evaluator) accept(acc Accumulator, res enriched) Accumulator {
	if !res.ok {
		return acc
	}
	if e.onAccepted != nil {
		e.onAccepted(res.metric)
	}
	return acc.Add(res.metric)
}

// enrich fetches the PR's details and, if it passes the criteria, its reviews.
func (e *evaluator) enrich(ctx context.Context, number int) (enriched, error) {
	pr, err := e.client.GetPullRequest(ctx, e.opts.Owner, e.opts.Repo, number)
	if err != nil {
		return enriched{}, err
	}

	if reason := e.opts.Criteria.rejection(pr); reason != "" {
		e.logger.Debug("skipping pull request", slog.Int("number", number), slog.String("reason", reason))
		return enriched{}, nil
	}

	reviews, err := e.client.ListReviews(ctx, e.opts.Owner, e.opts.Repo, number)
	if err != nil {
		return enriched{}, err
	}

	return enriched{metric: NewPullRequestMetric(pr, reviews), ok: true}, nil
}
