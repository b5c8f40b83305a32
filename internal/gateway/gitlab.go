// Package gateway provides a gateway to the GitLab REST API, handling
// authentication, pagination and rate-limit throttling.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/aokisan/gitlab-review-stats/internal/domain"
	"github.com/aokisan/gitlab-review-stats/internal/timeutil"
)

const (
	// requestTimeout is the hard cap on any single API request.
	requestTimeout = 60 * time.Second

	// requestsPerSecond paces outgoing requests independently of the
	// server-driven throttling, to stay polite on large windows.
	requestsPerSecond = 5

	perPage = 100
)

// Fetcher defines the behavior of a gateway for fetching review data from GitLab.
type Fetcher interface {
	Project(ctx context.Context, idOrPath string) (*domain.Project, error)
	MergedMergeRequests(ctx context.Context, project *domain.Project, updatedAfter time.Time) ([]domain.MergeRecord, error)
}

// GitLabGateway is the concrete implementation of the Fetcher interface.
type GitLabGateway struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger

	// sleep and now are injectable so throttling can be tested without
	// real waiting.
	sleep func(time.Duration)
	now   func() time.Time
}

// NewGitLabGateway creates a gateway for the API under baseURL,
// authenticating every request with the given personal access token.
func NewGitLabGateway(baseURL, token string, logger *log.Logger) *GitLabGateway {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{Source: ts},
		Timeout:   requestTimeout,
	}
	return &GitLabGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:     logger,
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// Project resolves a project by numeric ID or namespace path.
func (g *GitLabGateway) Project(ctx context.Context, idOrPath string) (*domain.Project, error) {
	endpoint := g.baseURL + "/api/v4/projects/" + encodeProjectRef(idOrPath)
	resp, err := g.get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var p domain.Project
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, &ProtocolError{URL: endpoint, Err: err}
	}
	return &p, nil
}

// mergeRequestPayload is the subset of the merge request list response this
// tool consumes. Timestamps stay strings here; parse failures are a
// per-record concern, not a decode failure.
type mergeRequestPayload struct {
	IID    int    `json:"iid"`
	Title  string `json:"title"`
	Author struct {
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"author"`
	CreatedAt    string `json:"created_at"`
	MergedAt     string `json:"merged_at"`
	TargetBranch string `json:"target_branch"`
	SourceBranch string `json:"source_branch"`
	WebURL       string `json:"web_url"`
}

// MergedMergeRequests lists merge requests merged on or after updatedAfter.
// The server-side query narrows by update time, which is looser than merge
// time, so the result is strictly re-filtered on merged_at client-side.
// Records without a merge timestamp are dropped silently.
func (g *GitLabGateway) MergedMergeRequests(ctx context.Context, project *domain.Project, updatedAfter time.Time) ([]domain.MergeRecord, error) {
	endpoint := fmt.Sprintf("%s/api/v4/projects/%d/merge_requests", g.baseURL, project.ID)
	params := url.Values{}
	params.Set("state", "merged")
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("order_by", "updated_at")
	params.Set("sort", "desc")
	params.Set("updated_after", timeutil.FormatISO(updatedAfter))
	params.Set("scope", "all")

	items, err := g.fetchPages(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	cutoff := updatedAfter.UTC()
	records := make([]domain.MergeRecord, 0, len(items))
	for _, raw := range items {
		var mr mergeRequestPayload
		if err := json.Unmarshal(raw, &mr); err != nil {
			return nil, &ProtocolError{URL: endpoint, Err: err}
		}
		if mr.MergedAt == "" {
			continue
		}
		mergedAt, err := time.Parse(time.RFC3339, mr.MergedAt)
		if err != nil {
			continue
		}
		createdAt, err := time.Parse(time.RFC3339, mr.CreatedAt)
		if err != nil {
			continue
		}
		mergedAt = mergedAt.UTC()
		if mergedAt.Before(cutoff) {
			continue
		}
		records = append(records, domain.MergeRecord{
			ProjectID:      project.ID,
			ProjectPath:    project.PathWithNamespace,
			IID:            mr.IID,
			Title:          mr.Title,
			AuthorName:     mr.Author.Name,
			AuthorUsername: mr.Author.Username,
			CreatedAt:      createdAt.UTC(),
			MergedAt:       mergedAt,
			TargetBranch:   mr.TargetBranch,
			SourceBranch:   mr.SourceBranch,
			WebURL:         mr.WebURL,
		})
	}
	return records, nil
}

// pageState tracks where the pagination loop is in a page sequence. Query
// parameters apply only to the very first request; every next-page URL
// already carries its own.
type pageState int

const (
	pageInitial pageState = iota
	pageFollowing
)

// fetchPages issues GET requests starting at rawURL and follows rel="next"
// links until none remains, returning the concatenation of all pages' items.
func (g *GitLabGateway) fetchPages(ctx context.Context, rawURL string, params url.Values) ([]json.RawMessage, error) {
	var items []json.RawMessage
	state := pageInitial
	for {
		var resp *http.Response
		var err error
		switch state {
		case pageInitial:
			resp, err = g.get(ctx, rawURL, params)
		case pageFollowing:
			resp, err = g.get(ctx, rawURL, nil)
		}
		if err != nil {
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &TransportError{URL: rawURL, Err: err}
		}

		var page []json.RawMessage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, &ProtocolError{URL: rawURL, Err: err}
		}
		items = append(items, page...)

		next := nextLink(resp.Header)
		if next == "" {
			return items, nil
		}
		g.logger.Println("  Fetching next page of merge requests...")
		rawURL = next
		state = pageFollowing
	}
}

// get performs a single GET, failing on any status >= 400 and applying the
// rate-limit headers of successful responses before returning.
func (g *GitLabGateway) get(ctx context.Context, rawURL string, params url.Values) (*http.Response, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for request slot: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", rawURL, err)
	}
	if params != nil {
		req.URL.RawQuery = params.Encode()
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, &TransportError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	g.throttle(resp)
	return resp, nil
}

// throttle blocks until the server's quota reset when the response says the
// quota is about to run out. Absent or malformed headers never throttle and
// never fail the request.
func (g *GitLabGateway) throttle(resp *http.Response) {
	remaining, err := strconv.Atoi(resp.Header.Get("RateLimit-Remaining"))
	if err != nil || remaining > 1 {
		return
	}
	reset, err := strconv.ParseInt(resp.Header.Get("RateLimit-Reset"), 10, 64)
	if err != nil || reset == 0 {
		return
	}
	wait := time.Duration(max(0, reset-g.now().Unix())+1) * time.Second
	g.logger.Printf("[rate-limit] Sleeping %s before next request...", wait)
	g.sleep(wait)
}

// nextLink extracts the rel="next" URL from a Link header of the form
// <url>; rel="next", <url>; rel="last".
func nextLink(h http.Header) string {
	link := h.Get("Link")
	if link == "" {
		return ""
	}
	for _, part := range strings.Split(link, ",") {
		part = strings.TrimSpace(part)
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start < 0 || end <= start {
			return ""
		}
		return part[start+1 : end]
	}
	return ""
}

// encodeProjectRef leaves numeric IDs alone and URL-encodes namespace paths.
func encodeProjectRef(idOrPath string) string {
	if _, err := strconv.Atoi(idOrPath); err == nil {
		return idOrPath
	}
	return url.PathEscape(idOrPath)
}
