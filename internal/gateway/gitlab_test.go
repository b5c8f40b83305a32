package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/aokisan/gitlab-review-stats/internal/domain"
)

// testNow is the fixed "current time" for throttling tests.
var testNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

// setupTestGateway creates a GitLabGateway that talks to a mock HTTP server,
// with an unlimited pacing limiter and a recorded sleep function.
func setupTestGateway(t *testing.T, handler http.Handler) (*GitLabGateway, *httptest.Server, *[]time.Duration) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	slept := new([]time.Duration)
	gw := &GitLabGateway{
		baseURL:    server.URL,
		httpClient: server.Client(),
		limiter:    rate.NewLimiter(rate.Inf, 1),
		logger:     log.New(io.Discard, "", 0),
		sleep:      func(d time.Duration) { *slept = append(*slept, d) },
		now:        func() time.Time { return testNow },
	}
	return gw, server, slept
}

func TestFetchPagesFollowsNextLinks(t *testing.T) {
	var requests []string
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.String())
		switch r.URL.Query().Get("page") {
		case "":
			// Only the first request may carry the caller's parameters.
			assert.Equal(t, "bar", r.URL.Query().Get("foo"))
			w.Header().Set("Link", fmt.Sprintf(`<%s/items?page=2>; rel="next", <%s/items?page=3>; rel="last"`, server.URL, server.URL))
			fmt.Fprint(w, `[{"n":1},{"n":2}]`)
		case "2":
			assert.Empty(t, r.URL.Query().Get("foo"))
			w.Header().Set("Link", fmt.Sprintf(`<%s/items?page=3>; rel="next"`, server.URL))
			fmt.Fprint(w, `[{"n":3}]`)
		case "3":
			assert.Empty(t, r.URL.Query().Get("foo"))
			fmt.Fprint(w, `[{"n":4}]`)
		default:
			t.Errorf("unexpected request %s", r.URL)
		}
	}))
	defer server.Close()

	gw := &GitLabGateway{
		baseURL:    server.URL,
		httpClient: server.Client(),
		limiter:    rate.NewLimiter(rate.Inf, 1),
		logger:     log.New(io.Discard, "", 0),
		sleep:      func(time.Duration) {},
		now:        time.Now,
	}

	params := url.Values{}
	params.Set("foo", "bar")
	items, err := gw.fetchPages(context.Background(), server.URL+"/items", params)
	require.NoError(t, err)
	require.Len(t, requests, 3)
	require.Len(t, items, 4)

	var ns []int
	for _, raw := range items {
		var item struct {
			N int `json:"n"`
		}
		require.NoError(t, json.Unmarshal(raw, &item))
		ns = append(ns, item.N)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, ns)
}

func TestFetchPagesErrors(t *testing.T) {
	testCases := []struct {
		name        string
		handlerFunc func(w http.ResponseWriter, r *http.Request)
		check       func(t *testing.T, err error)
	}{
		{
			name: "status 500 is a transport error",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"message": "Internal Server Error"}`)
			},
			check: func(t *testing.T, err error) {
				var te *TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
			},
		},
		{
			name: "status 404 is a transport error",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			check: func(t *testing.T, err error) {
				var te *TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, http.StatusNotFound, te.StatusCode)
			},
		},
		{
			name: "non-array body is a protocol error",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"message": "not a list"}`)
			},
			check: func(t *testing.T, err error) {
				var pe *ProtocolError
				require.ErrorAs(t, err, &pe)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gw, server, _ := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))
			_, err := gw.fetchPages(context.Background(), server.URL+"/items", nil)
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestThrottle(t *testing.T) {
	testCases := []struct {
		name          string
		remaining     string
		reset         string
		expectedSleep []time.Duration
	}{
		{
			name:          "quota nearly exhausted sleeps until reset plus one",
			remaining:     "1",
			reset:         fmt.Sprint(testNow.Unix() + 5),
			expectedSleep: []time.Duration{6 * time.Second},
		},
		{
			name:          "reset already passed still sleeps one second",
			remaining:     "0",
			reset:         fmt.Sprint(testNow.Unix() - 30),
			expectedSleep: []time.Duration{1 * time.Second},
		},
		{
			name:      "plenty of quota left",
			remaining: "500",
			reset:     fmt.Sprint(testNow.Unix() + 5),
		},
		{
			name:      "missing headers fail open",
			remaining: "",
			reset:     "",
		},
		{
			name:      "garbage remaining fails open",
			remaining: "soon",
			reset:     fmt.Sprint(testNow.Unix() + 5),
		},
		{
			name:      "zero reset fails open",
			remaining: "1",
			reset:     "0",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				if tc.remaining != "" {
					w.Header().Set("RateLimit-Remaining", tc.remaining)
				}
				if tc.reset != "" {
					w.Header().Set("RateLimit-Reset", tc.reset)
				}
				fmt.Fprint(w, `[]`)
			}
			gw, server, slept := setupTestGateway(t, http.HandlerFunc(handler))

			_, err := gw.fetchPages(context.Background(), server.URL+"/items", nil)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedSleep, *slept)
		})
	}
}

func TestProject(t *testing.T) {
	t.Run("numeric ID is used verbatim", func(t *testing.T) {
		handler := func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v4/projects/42", r.URL.Path)
			fmt.Fprint(w, `{"id": 42, "path_with_namespace": "group/app", "web_url": "https://gitlab.example.com/group/app"}`)
		}
		gw, _, _ := setupTestGateway(t, http.HandlerFunc(handler))

		project, err := gw.Project(context.Background(), "42")
		require.NoError(t, err)
		assert.Equal(t, &domain.Project{
			ID:                42,
			PathWithNamespace: "group/app",
			WebURL:            "https://gitlab.example.com/group/app",
		}, project)
	})

	t.Run("namespace path is URL-encoded", func(t *testing.T) {
		handler := func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v4/projects/group%2Fsub%2Fapp", r.URL.EscapedPath())
			fmt.Fprint(w, `{"id": 7, "path_with_namespace": "group/sub/app"}`)
		}
		gw, _, _ := setupTestGateway(t, http.HandlerFunc(handler))

		project, err := gw.Project(context.Background(), "group/sub/app")
		require.NoError(t, err)
		assert.Equal(t, 7, project.ID)
	})
}

func TestMergedMergeRequests(t *testing.T) {
	since := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	project := &domain.Project{ID: 42, PathWithNamespace: "group/app"}

	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/projects/42/merge_requests", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "merged", q.Get("state"))
		assert.Equal(t, "100", q.Get("per_page"))
		assert.Equal(t, "updated_at", q.Get("order_by"))
		assert.Equal(t, "desc", q.Get("sort"))
		assert.Equal(t, "all", q.Get("scope"))
		assert.Equal(t, "2024-01-10T00:00:00Z", q.Get("updated_after"))

		fmt.Fprint(w, `[
			{"iid": 1, "title": "merged before the cutoff", "author": {"name": "Ann", "username": "ann"},
			 "created_at": "2024-01-08T10:00:00Z", "merged_at": "2024-01-09T23:59:59Z"},
			{"iid": 2, "title": "merged exactly at the cutoff", "author": {"name": "Bob", "username": "bob"},
			 "created_at": "2024-01-09T10:00:00Z", "merged_at": "2024-01-10T00:00:00Z",
			 "target_branch": "main", "source_branch": "feat", "web_url": "https://example.com/mr/2"},
			{"iid": 3, "title": "updated but never merged", "author": {"name": "Cid", "username": "cid"},
			 "created_at": "2024-01-09T10:00:00Z", "merged_at": null},
			{"iid": 4, "title": "merged later", "author": {"name": "Dee", "username": "dee"},
			 "created_at": "2024-01-10T09:00:00+01:00", "merged_at": "2024-01-11T12:00:00Z"}
		]`)
	}
	gw, _, _ := setupTestGateway(t, http.HandlerFunc(handler))

	records, err := gw.MergedMergeRequests(context.Background(), project, since)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// The strict cutoff is inclusive; IID 1 is excluded despite being in
	// the server response.
	assert.Equal(t, 2, records[0].IID)
	assert.Equal(t, 42, records[0].ProjectID)
	assert.Equal(t, "group/app", records[0].ProjectPath)
	assert.Equal(t, "bob", records[0].AuthorUsername)
	assert.Equal(t, "main", records[0].TargetBranch)
	assert.Equal(t, "feat", records[0].SourceBranch)
	assert.Equal(t, "https://example.com/mr/2", records[0].WebURL)
	assert.True(t, records[0].MergedAt.Equal(since))

	// Timestamps come back normalized to UTC.
	assert.Equal(t, 4, records[1].IID)
	assert.True(t, records[1].CreatedAt.Equal(time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, records[1].CreatedAt.Location())
}
