package github

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v39/github"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockGitHubClient implements GitHubClientInterface for testing
type MockGitHubClient struct {
	pages   [][]*github.PullRequest // pages[0] is page 1
	details map[int]*github.PullRequest
	reviews map[int][]*github.PullRequestReview
	err     error

	mu           sync.Mutex
	pagesFetched []int
	detailCalls  []int
	reviewCalls  []int
}

func (m *MockGitHubClient) ListClosedPullRequests(ctx context.Context, owner, repo string, page, perPage int) ([]*github.PullRequest, error) {
	m.mu.Lock()
	m.pagesFetched = append(m.pagesFetched, page)
	m.mu.Unlock()
	if page-1 >= len(m.pages) {
		return nil, nil
	}
	return m.pages[page-1], nil
}

func (m *MockGitHubClient) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	m.mu.Lock()
	m.detailCalls = append(m.detailCalls, number)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	pr, ok := m.details[number]
	if !ok {
		return nil, fmt.Errorf("pull request #%d not found", number)
	}
	return pr, nil
}

func (m *MockGitHubClient) ListReviews(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestReview, error) {
	m.mu.Lock()
	m.reviewCalls = append(m.reviewCalls, number)
	m.mu.Unlock()
	return m.reviews[number], nil
}

// addPage lists the given PRs as the next page and registers their details.
func (m *MockGitHubClient) addPage(prs ...*github.PullRequest) {
	if m.details == nil {
		m.details = map[int]*github.PullRequest{}
	}
	var summaries []*github.PullRequest
	for _, pr := range prs {
		m.details[pr.GetNumber()] = pr
		summaries = append(summaries, &github.PullRequest{Number: pr.Number, CreatedAt: pr.CreatedAt})
	}
	m.pages = append(m.pages, summaries)
}

var created = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func mergedPR(number int, base string, additions, deletions int) *github.PullRequest {
	return &github.PullRequest{
		Number:    github.Int(number),
		Title:     github.String(fmt.Sprintf("PR %d", number)),
		User:      &github.User{Login: github.String("author")},
		State:     github.String("closed"),
		Merged:    github.Bool(true),
		Base:      &github.PullRequestBranch{Ref: github.String(base)},
		CreatedAt: lo.ToPtr(created),
		MergedAt:  lo.ToPtr(created.Add(3 * time.Hour)),
		Additions: github.Int(additions),
		Deletions: github.Int(deletions),
	}
}

func unmergedPR(number int, base string) *github.PullRequest {
	pr := mergedPR(number, base, 1, 1)
	pr.Merged = github.Bool(false)
	pr.MergedAt = nil
	return pr
}

func review(login string, at time.Time) *github.PullRequestReview {
	return &github.PullRequestReview{
		User:        &github.User{Login: github.String(login)},
		State:       github.String("APPROVED"),
		SubmittedAt: lo.ToPtr(at),
	}
}

func mainOnly() EvaluateOptions {
	return EvaluateOptions{
		Owner:    "owner",
		Repo:     "repo",
		Limit:    50,
		Criteria: Criteria{Branch: OnlyBranch("main")},
	}
}

func TestCriteria_Accepts(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		pr       *github.PullRequest
		want     bool
	}{
		{"merged into target", Criteria{Branch: OnlyBranch("main")}, mergedPR(1, "main", 1, 1), true},
		{"merged into other branch", Criteria{Branch: OnlyBranch("main")}, mergedPR(1, "release", 1, 1), false},
		{"not merged", Criteria{Branch: OnlyBranch("main")}, unmergedPR(1, "main"), false},
		{"any branch", Criteria{Branch: AnyBranch()}, mergedPR(1, "release", 1, 1), true},
		{"zero value matches any branch", Criteria{}, mergedPR(1, "release", 1, 1), true},
		{"any branch still needs merge", Criteria{}, unmergedPR(1, "release"), false},
		{"below threshold", Criteria{MinimumLinesChanged: lo.ToPtr(20)}, mergedPR(1, "main", 5, 5), false},
		{"at threshold", Criteria{MinimumLinesChanged: lo.ToPtr(10)}, mergedPR(1, "main", 5, 5), true},
		{"zero threshold", Criteria{MinimumLinesChanged: lo.ToPtr(0)}, mergedPR(1, "main", 0, 0), true},
		{"target branch with empty name", Criteria{Branch: OnlyBranch("")}, mergedPR(1, "main", 1, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.Accepts(tt.pr))
		})
	}
}

func TestNewPullRequestMetric(t *testing.T) {
	pr := mergedPR(7, "main", 10, 5)
	reviews := []*github.PullRequestReview{
		// list order wins even when timestamps disagree
		review("second-in-time", created.Add(2*time.Hour)),
		review("first-in-time", created.Add(time.Hour)),
		review("third", created.Add(4*time.Hour)),
	}

	m := NewPullRequestMetric(pr, reviews)

	assert.Equal(t, 7, m.PRNumber)
	assert.Equal(t, "PR 7", m.PRTitle)
	assert.Equal(t, "author", m.Author)
	assert.Equal(t, 10, m.LinesAdded)
	assert.Equal(t, 5, m.LinesRemoved)
	require.NotNil(t, m.FirstReview)
	require.NotNil(t, m.SecondReview)
	assert.Equal(t, "second-in-time", m.FirstReview.Reviewer)
	assert.Equal(t, "first-in-time", m.SecondReview.Reviewer)
	assert.Equal(t, int64(3*time.Hour/time.Millisecond), m.TimeToMergeMs())
	assert.Equal(t, int64(2*time.Hour/time.Millisecond), m.TimeToFirstReviewMs())
	assert.Equal(t, int64(time.Hour/time.Millisecond), m.TimeToSecondReviewMs())
}

func TestNewPullRequestMetric_MissingData(t *testing.T) {
	pr := mergedPR(7, "main", 1, 1)
	pr.User = nil
	pr.MergedAt = nil

	m := NewPullRequestMetric(pr, []*github.PullRequestReview{review("only", created.Add(time.Hour))})

	assert.Empty(t, m.Author)
	assert.Zero(t, m.TimeToMergeMs())
	require.NotNil(t, m.FirstReview)
	assert.Nil(t, m.SecondReview)
	assert.Zero(t, m.TimeToSecondReviewMs())
}

func TestNewPullRequestMetric_SkipsNilReviews(t *testing.T) {
	reviews := []*github.PullRequestReview{nil, review("alice", created.Add(time.Hour)), nil, review("bob", created.Add(2*time.Hour))}

	m := NewPullRequestMetric(mergedPR(8, "main", 1, 1), reviews)

	require.NotNil(t, m.FirstReview)
	require.NotNil(t, m.SecondReview)
	assert.Equal(t, "alice", m.FirstReview.Reviewer)
	assert.Equal(t, "bob", m.SecondReview.Reviewer)
}

func TestEvaluate_OnlyMergedIntoTargetCounts(t *testing.T) {
	client := &MockGitHubClient{}
	client.addPage(
		mergedPR(1, "main", 10, 5),
		mergedPR(2, "release", 100, 100),
		unmergedPR(3, "main"),
	)
	client.reviews = map[int][]*github.PullRequestReview{
		1: {review("alice", created.Add(30*time.Minute)), review("bob", created.Add(time.Hour))},
		2: {review("carol", created.Add(time.Minute))},
	}

	var seen []PullRequestMetric
	acc, err := Evaluate(context.Background(), client, mainOnly(), func(m PullRequestMetric) {
		seen = append(seen, m)
	})
	require.NoError(t, err)

	assert.Equal(t, 1, acc.Evaluated)
	assert.Equal(t, 10, acc.LinesAdded)
	assert.Equal(t, 5, acc.LinesRemoved)
	assert.Equal(t, int64(3*time.Hour/time.Millisecond), acc.TimeToMergeMs)
	assert.Equal(t, int64(30*time.Minute/time.Millisecond), acc.TimeToFirstReviewMs)
	assert.Equal(t, int64(time.Hour/time.Millisecond), acc.TimeToSecondReviewMs)

	require.Len(t, seen, 1)
	assert.Equal(t, 1, seen[0].PRNumber)
	assert.Equal(t, []int{1}, client.reviewCalls, "reviews are only fetched for accepted PRs")
	assert.Equal(t, []int{1, 2}, client.pagesFetched, "an empty page ends the walk")
}

func TestEvaluate_MinimumLinesChanged(t *testing.T) {
	client := &MockGitHubClient{}
	client.addPage(mergedPR(1, "main", 5, 5))

	opts := mainOnly()
	opts.Criteria.MinimumLinesChanged = lo.ToPtr(20)

	acc, err := Evaluate(context.Background(), client, opts, nil)
	require.NoError(t, err)

	assert.Equal(t, Accumulator{}, acc)
}

func TestEvaluate_NoReviews(t *testing.T) {
	client := &MockGitHubClient{}
	client.addPage(mergedPR(1, "main", 1, 2))

	var seen []PullRequestMetric
	acc, err := Evaluate(context.Background(), client, mainOnly(), func(m PullRequestMetric) {
		seen = append(seen, m)
	})
	require.NoError(t, err)

	assert.Equal(t, 1, acc.Evaluated)
	assert.Zero(t, acc.TimeToFirstReviewMs)
	assert.Zero(t, acc.TimeToSecondReviewMs)
	require.Len(t, seen, 1)
	assert.Nil(t, seen[0].FirstReview)
	assert.Nil(t, seen[0].SecondReview)
}

// pageWithQualifiers builds a 100-PR page where only two PRs are merged into main.
func pageWithQualifiers(client *MockGitHubClient, first int) {
	prs := make([]*github.PullRequest, 0, PageSize)
	for i := 0; i < PageSize; i++ {
		n := first + i
		switch i {
		case 10, 60:
			prs = append(prs, mergedPR(n, "main", 1, 1))
		default:
			prs = append(prs, mergedPR(n, "develop", 1, 1))
		}
	}
	client.addPage(prs...)
}

func TestEvaluate_PaginatesUntilLimit(t *testing.T) {
	client := &MockGitHubClient{}
	for p := 0; p < 4; p++ {
		pageWithQualifiers(client, p*PageSize+1)
	}

	opts := mainOnly()
	opts.Limit = 5

	var accepted []int
	acc, err := Evaluate(context.Background(), client, opts, func(m PullRequestMetric) {
		accepted = append(accepted, m.PRNumber)
	})
	require.NoError(t, err)

	assert.Equal(t, 5, acc.Evaluated)
	assert.Equal(t, []int{11, 61, 111, 161, 211}, accepted)
	assert.Equal(t, []int{1, 2, 3}, client.pagesFetched)
	// the walk stops at the fifth qualifier, mid-way through page 3
	assert.Equal(t, 211, client.detailCalls[len(client.detailCalls)-1])
}

func TestEvaluate_StopsMidPage(t *testing.T) {
	client := &MockGitHubClient{}
	client.addPage(
		mergedPR(1, "main", 1, 1),
		mergedPR(2, "main", 1, 1),
		mergedPR(3, "main", 1, 1),
	)

	opts := mainOnly()
	opts.Limit = 2

	acc, err := Evaluate(context.Background(), client, opts, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, acc.Evaluated)
	assert.Equal(t, []int{1, 2}, client.detailCalls)
	assert.Equal(t, []int{1}, client.pagesFetched)
}

func TestEvaluate_ZeroLimit(t *testing.T) {
	client := &MockGitHubClient{}
	client.addPage(mergedPR(1, "main", 1, 1))

	opts := mainOnly()
	opts.Limit = 0

	acc, err := Evaluate(context.Background(), client, opts, nil)
	require.NoError(t, err)

	assert.Zero(t, acc.Evaluated)
	assert.Empty(t, client.pagesFetched)
}

func TestEvaluate_APIErrorAborts(t *testing.T) {
	boom := errors.New("bad credentials")
	client := &MockGitHubClient{err: boom}
	client.addPage(mergedPR(1, "main", 1, 1))

	_, err := Evaluate(context.Background(), client, mainOnly(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestEvaluate_ConcurrentMatchesSequential(t *testing.T) {
	build := func() *MockGitHubClient {
		client := &MockGitHubClient{}
		for p := 0; p < 3; p++ {
			pageWithQualifiers(client, p*PageSize+1)
		}
		client.reviews = map[int][]*github.PullRequestReview{
			11:  {review("alice", created.Add(time.Hour))},
			161: {review("bob", created.Add(2*time.Hour)), review("carol", created.Add(5*time.Hour))},
		}
		return client
	}

	opts := mainOnly()
	opts.Limit = 5

	var sequential []int
	seqAcc, err := Evaluate(context.Background(), build(), opts, func(m PullRequestMetric) {
		sequential = append(sequential, m.PRNumber)
	})
	require.NoError(t, err)

	opts.Concurrency = 8
	var concurrent []int
	conAcc, err := Evaluate(context.Background(), build(), opts, func(m PullRequestMetric) {
		concurrent = append(concurrent, m.PRNumber)
	})
	require.NoError(t, err)

	assert.Equal(t, seqAcc, conAcc)
	assert.Equal(t, sequential, concurrent)
}

func TestEvaluate_ConcurrentIgnoresFailuresPastLimit(t *testing.T) {
	build := func() *MockGitHubClient {
		client := &MockGitHubClient{}
		client.addPage(mergedPR(1, "main", 1, 1), mergedPR(2, "main", 1, 1))
		delete(client.details, 2)
		return client
	}

	opts := mainOnly()
	opts.Limit = 1

	seqAcc, err := Evaluate(context.Background(), build(), opts, nil)
	require.NoError(t, err)

	opts.Concurrency = 4
	conAcc, err := Evaluate(context.Background(), build(), opts, nil)
	require.NoError(t, err)

	assert.Equal(t, seqAcc, conAcc)
	assert.Equal(t, 1, conAcc.Evaluated)
}

func TestEvaluate_ConcurrentFailsBeforeLimit(t *testing.T) {
	client := &MockGitHubClient{}
	client.addPage(mergedPR(1, "main", 1, 1), mergedPR(2, "main", 1, 1))
	delete(client.details, 1)

	opts := mainOnly()
	opts.Concurrency = 4
	_, err := Evaluate(context.Background(), client, opts, nil)
	assert.EqualError(t, err, "pull request #1 not found")
}

func TestAccumulator_AddDoesNotMutate(t *testing.T) {
	var acc Accumulator
	m := NewPullRequestMetric(mergedPR(1, "main", 4, 2), nil)

	next := acc.Add(m)

	assert.Equal(t, Accumulator{}, acc)
	assert.Equal(t, 1, next.Evaluated)
	assert.Equal(t, 4, next.LinesAdded)
}

func TestAccumulator_Summary(t *testing.T) {
	acc := Accumulator{
		Evaluated:            2,
		TimeToMergeMs:        7200000,
		TimeToFirstReviewMs:  60000,
		TimeToSecondReviewMs: 0,
		LinesAdded:           5,
		LinesRemoved:         2,
	}

	s := acc.Summary()

	assert.True(t, s.HasData)
	assert.Equal(t, 3600000.0, s.AvgTimeToMergeMs)
	assert.Equal(t, 30000.0, s.AvgTimeToFirstReviewMs)
	assert.Equal(t, 0.0, s.AvgTimeToSecondReviewMs)
	assert.Equal(t, int64(3), s.AvgLinesAdded, "2.5 rounds up")
	assert.Equal(t, int64(1), s.AvgLinesRemoved)
}

func TestAccumulator_SummaryEmpty(t *testing.T) {
	s := Accumulator{}.Summary()

	assert.False(t, s.HasData)
	assert.Zero(t, s.Evaluated)
}
