package github

import (
	"math"
	"time"

	"github.com/reillywatson/pr-review-stats/internal/timedelta"
)

// PullRequestMetric is what one accepted pull request contributes to the report.
type PullRequestMetric struct {
	PRNumber  int
	PRTitle   string
	Author    string // empty when GitHub reports no user
	CreatedAt time.Time
	MergedAt  *time.Time

	FirstReview  *ReviewEvent
	SecondReview *ReviewEvent

	LinesAdded   int
	LinesRemoved int
}

// ReviewEvent is a review as it appears in the PR's review list.
type ReviewEvent struct {
	Reviewer    string
	SubmittedAt *time.Time
}

func (m PullRequestMetric) TimeToMergeMs() int64 {
	return timedelta.MsDiff(m.MergedAt, &m.CreatedAt)
}

func (m PullRequestMetric) TimeToFirstReviewMs() int64 {
	return timedelta.MsDiff(&m.CreatedAt, m.FirstReview.submittedAt())
}

func (m PullRequestMetric) TimeToSecondReviewMs() int64 {
	return timedelta.MsDiff(&m.CreatedAt, m.SecondReview.submittedAt())
}

func (r *ReviewEvent) submittedAt() *time.Time {
	if r == nil {
		return nil
	}
	return r.SubmittedAt
}

// BranchFilter restricts accepted PRs to one base branch, or to none at all.
// The zero value matches every branch.
type BranchFilter struct {
	name   string
	active bool
}

// AnyBranch accepts PRs merged into any base branch.
func AnyBranch() BranchFilter {
	return BranchFilter{}
}

// OnlyBranch accepts PRs whose base ref is exactly name.
func OnlyBranch(name string) BranchFilter {
	return BranchFilter{name: name, active: true}
}

func (f BranchFilter) Active() bool { return f.active }

func (f BranchFilter) Name() string { return f.name }

func (f BranchFilter) Matches(baseRef string) bool {
	return !f.active || baseRef == f.name
}

// Criteria decides which closed pull requests count.
type Criteria struct {
	Branch BranchFilter
	// MinimumLinesChanged, when set, rejects PRs whose additions+deletions fall below it.
	MinimumLinesChanged *int
}

// Accumulator folds accepted PRs into running sums. It is a value: Add returns
// the updated copy.
type Accumulator struct {
	Evaluated            int
	TimeToMergeMs        int64
	TimeToFirstReviewMs  int64
	TimeToSecondReviewMs int64
	LinesAdded           int
	LinesRemoved         int
}

func (a Accumulator) Add(m PullRequestMetric) Accumulator {
	a.Evaluated++
	a.TimeToMergeMs += m.TimeToMergeMs()
	a.TimeToFirstReviewMs += m.TimeToFirstReviewMs()
	a.TimeToSecondReviewMs += m.TimeToSecondReviewMs()
	a.LinesAdded += m.LinesAdded
	a.LinesRemoved += m.LinesRemoved
	return a
}

// Summary holds the averages. HasData is false when nothing was evaluated,
// in which case every average is zero and meaningless.
type Summary struct {
	Evaluated               int
	HasData                 bool
	AvgTimeToMergeMs        float64
	AvgTimeToFirstReviewMs  float64
	AvgTimeToSecondReviewMs float64
	AvgLinesAdded           int64
	AvgLinesRemoved         int64
}

func (a Accumulator) Summary() Summary {
	s := Summary{Evaluated: a.Evaluated}
	if a.Evaluated == 0 {
		return s
	}

	n := float64(a.Evaluated)
	s.HasData = true
	s.AvgTimeToMergeMs = float64(a.TimeToMergeMs) / n
	s.AvgTimeToFirstReviewMs = float64(a.TimeToFirstReviewMs) / n
	s.AvgTimeToSecondReviewMs = float64(a.TimeToSecondReviewMs) / n
	s.AvgLinesAdded = roundHalfUp(float64(a.LinesAdded) / n)
	s.AvgLinesRemoved = roundHalfUp(float64(a.LinesRemoved) / n)
	return s
}

func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
