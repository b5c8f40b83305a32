// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/aokisan/gitlab-review-stats/internal/domain"
	"github.com/aokisan/gitlab-review-stats/internal/gateway"
	"github.com/aokisan/gitlab-review-stats/internal/stats"
	"github.com/aokisan/gitlab-review-stats/internal/timeutil"
)

// Builder is the use case for building the review-duration report.
// It orchestrates fetching per project and aggregates the results.
type Builder struct {
	fetcher gateway.Fetcher
	logger  *log.Logger
}

// NewBuilder creates a new Builder instance.
func NewBuilder(fetcher gateway.Fetcher, logger *log.Logger) *Builder {
	return &Builder{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Build fetches merged merge requests for each project in the window and
// produces detail rows, per-project summaries and the overall summary line.
// Projects are processed sequentially in ascending ID order; a fetch failure
// skips that project and the run continues.
func (b *Builder) Build(ctx context.Context, projectIDs []int, window domain.TimeWindow, excludeAuthors []string) (*domain.Report, error) {
	ids := uniqueSorted(projectIDs)
	excluded := exclusionSet(excludeAuthors)

	var rows []domain.DetailRow
	secondsByProject := make(map[int][]float64)
	pathByProject := make(map[int]string)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		project, err := b.fetcher.Project(ctx, strconv.Itoa(id))
		if err != nil {
			b.logger.Printf("[warn] Could not read project %d: %v", id, err)
			continue
		}
		b.logger.Printf("[info] Fetching MRs for %s (id=%d)...", project.PathWithNamespace, id)

		records, err := b.fetcher.MergedMergeRequests(ctx, project, window.Since)
		if err != nil {
			b.logger.Printf("[warn] Could not list MRs for %d: %v", id, err)
			continue
		}

		for _, rec := range records {
			if rec.MergedAt.After(window.Until) {
				continue
			}
			if isExcluded(rec, excluded) {
				continue
			}

			wallSec := rec.MergedAt.Sub(rec.CreatedAt).Seconds()
			bizSec := timeutil.BusinessSeconds(rec.CreatedAt, rec.MergedAt)
			hours, days := timeutil.HoursDays(wallSec)
			bizHours, bizDays := timeutil.HoursDays(bizSec)

			rows = append(rows, domain.DetailRow{
				Record:                rec,
				TimeOpenHours:         hours,
				TimeOpenDays:          days,
				BusinessTimeOpenHours: bizHours,
				BusinessTimeOpenDays:  bizDays,
			})
			secondsByProject[project.ID] = append(secondsByProject[project.ID], wallSec)
			pathByProject[project.ID] = project.PathWithNamespace
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Record.MergedAt.After(rows[j].Record.MergedAt)
	})

	return &domain.Report{
		Rows:     rows,
		Projects: summarizeProjects(secondsByProject, pathByProject),
		Overall:  overallLine(rows),
	}, nil
}

// summarizeProjects finalizes each project's accumulated samples into a
// summary, ordered by project ID.
func summarizeProjects(secondsByProject map[int][]float64, pathByProject map[int]string) []domain.ProjectSummary {
	ids := make([]int, 0, len(secondsByProject))
	for id := range secondsByProject {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	summaries := make([]domain.ProjectSummary, 0, len(ids))
	for _, id := range ids {
		s := stats.Summarize(secondsByProject[id])
		avgH, _ := timeutil.HoursDays(s.Avg)
		p50H, _ := timeutil.HoursDays(s.P50)
		p90H, _ := timeutil.HoursDays(s.P90)
		minH, _ := timeutil.HoursDays(s.Min)
		maxH, _ := timeutil.HoursDays(s.Max)
		summaries = append(summaries, domain.ProjectSummary{
			ProjectID:   id,
			ProjectPath: pathByProject[id],
			Count:       s.Count,
			AvgHours:    avgH,
			P50Hours:    p50H,
			P90Hours:    p90H,
			MinHours:    minH,
			MaxHours:    maxH,
		})
	}
	return summaries
}

// overallLine renders the one-line summary across all included rows.
func overallLine(rows []domain.DetailRow) string {
	if len(rows) == 0 {
		return "No merged MRs found in the window."
	}
	seconds := make([]float64, 0, len(rows))
	for _, r := range rows {
		seconds = append(seconds, r.Record.MergedAt.Sub(r.Record.CreatedAt).Seconds())
	}
	s := stats.Summarize(seconds)
	return fmt.Sprintf("Count: %d | Avg: %s | P50: %s | P90: %s",
		s.Count, formatHoursDays(s.Avg), formatHoursDays(s.P50), formatHoursDays(s.P90))
}

func formatHoursDays(seconds float64) string {
	h, d := timeutil.HoursDays(seconds)
	return fmt.Sprintf("%gh (%gd)", h, d)
}

func uniqueSorted(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// exclusionSet trims the configured author entries and drops blanks.
// Matching is exact and case-sensitive.
func exclusionSet(authors []string) map[string]struct{} {
	set := make(map[string]struct{}, len(authors))
	for _, a := range authors {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		set[a] = struct{}{}
	}
	return set
}

// isExcluded reports whether either author identity field matches the
// exclusion set; one match is sufficient.
func isExcluded(rec domain.MergeRecord, excluded map[string]struct{}) bool {
	if _, ok := excluded[strings.TrimSpace(rec.AuthorName)]; ok {
		return true
	}
	_, ok := excluded[strings.TrimSpace(rec.AuthorUsername)]
	return ok
}
