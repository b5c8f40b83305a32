package output

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aokisan/gitlab-review-stats/internal/domain"
)

func TestWriteDetail(t *testing.T) {
	rows := []domain.DetailRow{
		{
			Record: domain.MergeRecord{
				ProjectID:      42,
				ProjectPath:    "group/app",
				IID:            7,
				Title:          "Fix login, again",
				AuthorName:     "Ann Example",
				AuthorUsername: "ann",
				CreatedAt:      time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC),
				MergedAt:       time.Date(2024, 1, 10, 13, 0, 0, 0, time.UTC),
				TargetBranch:   "main",
				SourceBranch:   "fix-login",
				WebURL:         "https://example.com/group/app/-/merge_requests/7",
			},
			TimeOpenHours:         3,
			TimeOpenDays:          0.12,
			BusinessTimeOpenHours: 3,
			BusinessTimeOpenDays:  0.12,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDetail(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, detailHeader, records[0])
	assert.Equal(t, []string{
		"42", "group/app", "7", "Fix login, again", "ann",
		"2024-01-10T10:00:00Z", "2024-01-10T13:00:00Z",
		"3", "0.12", "3", "0.12",
		"main", "fix-login", "https://example.com/group/app/-/merge_requests/7",
	}, records[1])
}

func TestWriteSummary(t *testing.T) {
	summaries := []domain.ProjectSummary{
		{
			ProjectID:   42,
			ProjectPath: "group/app",
			Count:       3,
			AvgHours:    2,
			P50Hours:    2,
			P90Hours:    2.8,
			MinHours:    1,
			MaxHours:    3,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, summaries))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, summaryHeader, records[0])
	assert.Equal(t, []string{"42", "group/app", "3", "2", "2", "2.8", "1", "3"}, records[1])
}

func TestWriteDetailEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDetail(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1) // header only
}
