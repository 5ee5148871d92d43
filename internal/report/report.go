// Package report prints the per-PR blocks and the closing summary.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/samber/lo"

	"github.com/reillywatson/pr-review-stats/internal/github"
	"github.com/reillywatson/pr-review-stats/internal/timedelta"
)

type Printer struct {
	w io.Writer
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Header announces the repository and branch being evaluated.
func (p *Printer) Header(owner, repo string, branch github.BranchFilter) {
	target := "all branches"
	if branch.Active() {
		target = "branch " + branch.Name()
	}
	fmt.Fprintf(p.w, "Starting pull request evaluation for %s/%s on %s\n", owner, repo, target)
}

// PullRequest prints one accepted pull request followed by a blank line.
func (p *Printer) PullRequest(m github.PullRequestMetric) {
	fmt.Fprintln(p.w, m.PRTitle)
	fmt.Fprintf(p.w, "Author: %s\n", orNA(m.Author))
	fmt.Fprintf(p.w, "Time to merge: %s\n", timedelta.Readable(m.MergedAt, &m.CreatedAt))
	fmt.Fprintf(p.w, "First review time: %s (%s)\n", reviewDelta(m, m.FirstReview), reviewer(m.FirstReview))
	fmt.Fprintf(p.w, "Second review time: %s (%s)\n", reviewDelta(m, m.SecondReview), reviewer(m.SecondReview))
	fmt.Fprintf(p.w, "Code changes: +%d, -%d\n", m.LinesAdded, m.LinesRemoved)
	fmt.Fprintln(p.w)
}

// Summary prints the averages; with nothing evaluated every average is N/A.
func (p *Printer) Summary(s github.Summary) {
	fmt.Fprintf(p.w, "Total pull requests evaluated: %d\n", s.Evaluated)
	fmt.Fprintf(p.w, "Average time to merge: %s\n", avgDelta(s, s.AvgTimeToMergeMs))
	fmt.Fprintf(p.w, "Average time to first review: %s\n", avgDelta(s, s.AvgTimeToFirstReviewMs))
	fmt.Fprintf(p.w, "Average time to second review: %s\n", avgDelta(s, s.AvgTimeToSecondReviewMs))
	fmt.Fprintf(p.w, "Average lines added: %s\n", avgLines(s, s.AvgLinesAdded))
	fmt.Fprintf(p.w, "Average lines removed: %s\n", avgLines(s, s.AvgLinesRemoved))
}

func reviewDelta(m github.PullRequestMetric, r *github.ReviewEvent) string {
	if r == nil {
		return timedelta.NotAvailable
	}
	return timedelta.Readable(&m.CreatedAt, r.SubmittedAt)
}

func reviewer(r *github.ReviewEvent) string {
	if r == nil {
		return timedelta.NotAvailable
	}
	return orNA(r.Reviewer)
}

func orNA(s string) string {
	return lo.Ternary(s == "", timedelta.NotAvailable, s)
}

func avgDelta(s github.Summary, ms float64) string {
	if !s.HasData {
		return timedelta.NotAvailable
	}
	return timedelta.FormatMs(ms)
}

func avgLines(s github.Summary, n int64) string {
	if !s.HasData {
		return timedelta.NotAvailable
	}
	return strconv.FormatInt(n, 10)
}
