package domain

// DetailRow is one line of the detailed report: a merged merge request and
// its review durations, wall-clock and business-hours, in hours and days.
type DetailRow struct {
	Record MergeRecord

	TimeOpenHours         float64 `json:"time_open_hours"`
	TimeOpenDays          float64 `json:"time_open_days"`
	BusinessTimeOpenHours float64 `json:"business_time_open_hours"`
	BusinessTimeOpenDays  float64 `json:"business_time_open_days"`
}

// ProjectSummary aggregates review durations for a single project, in hours.
type ProjectSummary struct {
	ProjectID   int     `json:"project_id"`
	ProjectPath string  `json:"project_path_with_namespace"`
	Count       int     `json:"count"`
	AvgHours    float64 `json:"avg_hours"`
	P50Hours    float64 `json:"p50_hours"`
	P90Hours    float64 `json:"p90_hours"`
	MinHours    float64 `json:"min_hours"`
	MaxHours    float64 `json:"max_hours"`
}

// Report is the complete output of one run: detail rows sorted by merge time
// descending, per-project summaries sorted by project ID ascending, and a
// one-line overall summary.
type Report struct {
	Rows     []DetailRow
	Projects []ProjectSummary
	Overall  string
}
