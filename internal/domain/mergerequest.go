// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// Project identifies a GitLab project by its numeric ID and namespace path.
type Project struct {
	ID                int    `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
}

// MergeRecord is one merged merge request as fetched from the API.
// It is never mutated after construction.
type MergeRecord struct {
	ProjectID      int       `json:"project_id"`
	ProjectPath    string    `json:"project_path_with_namespace"`
	IID            int       `json:"iid"`
	Title          string    `json:"title"`
	AuthorName     string    `json:"author_name"`
	AuthorUsername string    `json:"author_username"`
	CreatedAt      time.Time `json:"created_at"`
	MergedAt       time.Time `json:"merged_at"`
	TargetBranch   string    `json:"target_branch"`
	SourceBranch   string    `json:"source_branch"`
	WebURL         string    `json:"web_url"`
}

// Author returns the record's author identity for display, preferring the
// username over the display name.
func (r MergeRecord) Author() string {
	if r.AuthorUsername != "" {
		return r.AuthorUsername
	}
	return r.AuthorName
}
