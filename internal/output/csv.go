// Package output writes the report artifacts as CSV.
package output

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/aokisan/gitlab-review-stats/internal/domain"
)

var detailHeader = []string{
	"project_id",
	"project_path_with_namespace",
	"iid",
	"title",
	"author",
	"created_at",
	"merged_at",
	"time_open_hours",
	"time_open_days",
	"business_time_open_hours",
	"business_time_open_days",
	"target_branch",
	"source_branch",
	"web_url",
}

var summaryHeader = []string{
	"project_id",
	"project_path_with_namespace",
	"count",
	"avg_hours",
	"p50_hours",
	"p90_hours",
	"min_hours",
	"max_hours",
}

// WriteDetail writes one CSV row per included merge request.
func WriteDetail(w io.Writer, rows []domain.DetailRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(detailHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := r.Record
		row := []string{
			strconv.Itoa(rec.ProjectID),
			rec.ProjectPath,
			strconv.Itoa(rec.IID),
			rec.Title,
			rec.Author(),
			rec.CreatedAt.Format(time.RFC3339),
			rec.MergedAt.Format(time.RFC3339),
			formatFloat(r.TimeOpenHours),
			formatFloat(r.TimeOpenDays),
			formatFloat(r.BusinessTimeOpenHours),
			formatFloat(r.BusinessTimeOpenDays),
			rec.TargetBranch,
			rec.SourceBranch,
			rec.WebURL,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummary writes one CSV row per project summary.
func WriteSummary(w io.Writer, summaries []domain.ProjectSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	for _, s := range summaries {
		row := []string{
			strconv.Itoa(s.ProjectID),
			s.ProjectPath,
			strconv.Itoa(s.Count),
			formatFloat(s.AvgHours),
			formatFloat(s.P50Hours),
			formatFloat(s.P90Hours),
			formatFloat(s.MinHours),
			formatFloat(s.MaxHours),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
