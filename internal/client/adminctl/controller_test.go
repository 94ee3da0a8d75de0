// ABOUTME: Tests for the admin dashboard controller against a counting stub API
// ABOUTME: Covers navigation, dashboard data, search states, ingestion, and logs

package adminctl

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAPI struct {
	ts *httptest.Server

	mu       sync.Mutex
	requests map[string]int

	statsBody  string
	searchBody string
	searchCode int
	scrapeBody string
	logsBody   string
	lastAuth   string
}

func newStubAPI(t *testing.T) *stubAPI {
	t.Helper()

	s := &stubAPI{
		requests:   make(map[string]int),
		searchCode: http.StatusOK,
		statsBody: `{"nodes":4,"edges":2,"entity_types":["data_product","satellite"],
			"type_counts":{"satellite":3,"data_product":1},
			"relationship_types":["provides"],"connected_components":2,
			"density":0.1667,"last_updated":"2026-08-26T00:00:00Z"}`,
		searchBody: `{"status":"success","results":[]}`,
		scrapeBody: `{"status":"success","message":"Successfully processed 5 content items","content_count":5}`,
		logsBody: `{"status":"success","logs":[
			{"url":"https://portal.example/faq","title":"FAQ","page_type":"faq",
			 "content_count":0,"status":"ok","message":"","created_at":"2026-08-26T00:00:00Z"}]}`,
	}

	mux := http.NewServeMux()
	count := func(path string, code *int, body *string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			s.requests[path]++
			s.lastAuth = r.Header.Get("Authorization")
			c, b := http.StatusOK, *body
			if code != nil {
				c = *code
			}
			s.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(c)
			w.Write([]byte(b))
		}
	}
	mux.HandleFunc("GET /api/knowledge_graph/stats", count("stats", nil, &s.statsBody))
	mux.HandleFunc("POST /api/search", count("search", &s.searchCode, &s.searchBody))
	mux.HandleFunc("POST /api/scrape_portal", count("scrape", nil, &s.scrapeBody))
	mux.HandleFunc("GET /api/logs", count("logs", nil, &s.logsBody))

	s.ts = httptest.NewServer(mux)
	t.Cleanup(s.ts.Close)
	return s
}

func (s *stubAPI) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

func TestNavigateUnknownSection(t *testing.T) {
	api := newStubAPI(t)
	ctrl := New(api.ts.URL, "")

	err := ctrl.Navigate(t.Context(), Section("settings"))
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestNavigateDashboardRefreshesEveryTime(t *testing.T) {
	api := newStubAPI(t)
	ctrl := New(api.ts.URL, "")

	require.NoError(t, ctrl.Navigate(t.Context(), SectionDashboard))
	require.NoError(t, ctrl.Navigate(t.Context(), SectionDashboard))

	assert.Equal(t, SectionDashboard, ctrl.ActiveSection)
	assert.Equal(t, 2, api.count("stats"), "repeat navigation re-fetches")
	assert.Equal(t, 2, api.count("logs"))
}

func TestRefreshDashboardData(t *testing.T) {
	api := newStubAPI(t)
	ctrl := New(api.ts.URL, "")

	require.NoError(t, ctrl.RefreshDashboard(t.Context()))

	assert.Equal(t, 4, ctrl.Dashboard.Stats.Nodes)
	assert.Equal(t, 2, ctrl.Dashboard.Stats.Edges)

	require.Len(t, ctrl.Dashboard.Distribution, 2)
	assert.Equal(t, "satellite", ctrl.Dashboard.Distribution[0].Type)
	assert.Equal(t, 3, ctrl.Dashboard.Distribution[0].Count)
	assert.InDelta(t, 75.0, ctrl.Dashboard.Distribution[0].Percent, 1e-9)
	assert.Equal(t, "data_product", ctrl.Dashboard.Distribution[1].Type)
	assert.InDelta(t, 25.0, ctrl.Dashboard.Distribution[1].Percent, 1e-9)

	require.Len(t, ctrl.Dashboard.Activity, 1)
	assert.Equal(t, "https://portal.example/faq", ctrl.Dashboard.Activity[0].URL)
}

func TestSearchWhitespaceIsNoOp(t *testing.T) {
	api := newStubAPI(t)
	ctrl := New(api.ts.URL, "")

	ctrl.Search(t.Context(), "   ")

	assert.Zero(t, api.count("search"), "no request for whitespace query")
	assert.Empty(t, ctrl.SearchPane.Error)
	assert.False(t, ctrl.SearchPane.Loading)
}

func TestSearchRendersResults(t *testing.T) {
	api := newStubAPI(t)
	api.searchBody = `{"status":"success","results":[
		{"name":"Oceansat-2","type":"satellite","description":"Ocean observation","similarity":0.873},
		{"name":"SST","type":"data_product","description":"Sea surface temperature","similarity":0.55}]}`
	ctrl := New(api.ts.URL, "")

	ctrl.Search(t.Context(), "oceansat")

	require.Len(t, ctrl.SearchPane.Results, 2)
	assert.Equal(t, "Oceansat-2", ctrl.SearchPane.Results[0].Name)
	assert.Equal(t, "87.3%", ctrl.SearchPane.Results[0].Match)
	assert.Equal(t, "55.0%", ctrl.SearchPane.Results[1].Match)
	assert.False(t, ctrl.SearchPane.Loading)
	assert.False(t, ctrl.SearchPane.NoResults)
	assert.Empty(t, ctrl.SearchPane.Error)
}

func TestSearchSendsLimit(t *testing.T) {
	var got struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"success","results":[]}`))
	}))
	defer ts.Close()

	ctrl := New(ts.URL, "")
	ctrl.Search(t.Context(), "oceansat")

	assert.Equal(t, "oceansat", got.Query)
	assert.Equal(t, 10, got.Limit)
}

func TestSearchNoResultsPlaceholder(t *testing.T) {
	api := newStubAPI(t)
	ctrl := New(api.ts.URL, "")

	ctrl.Search(t.Context(), "nothing matches this")

	assert.Empty(t, ctrl.SearchPane.Results)
	assert.True(t, ctrl.SearchPane.NoResults)
}

func TestSearchServerErrorBanner(t *testing.T) {
	api := newStubAPI(t)
	api.searchCode = http.StatusInternalServerError
	api.searchBody = `{"status":"error","message":"timeout"}`
	ctrl := New(api.ts.URL, "")

	ctrl.Search(t.Context(), "oceansat")

	assert.Equal(t, "Error: timeout", ctrl.SearchPane.Error)
	assert.Empty(t, ctrl.SearchPane.Results)
}

func TestSearchErrorFallbackMessage(t *testing.T) {
	api := newStubAPI(t)
	api.searchBody = `{"status":"error"}`
	ctrl := New(api.ts.URL, "")

	ctrl.Search(t.Context(), "oceansat")

	assert.Equal(t, "Error: search failed", ctrl.SearchPane.Error)
}

func TestIngestBlankURLWarnsWithoutRequest(t *testing.T) {
	api := newStubAPI(t)
	ctrl := New(api.ts.URL, "")

	ctrl.Ingest(t.Context(), "  ")

	assert.Zero(t, api.count("scrape"))
	assert.Equal(t, "Please enter a URL to scrape", ctrl.IngestPane.Message)
	assert.False(t, ctrl.IngestPane.InProgress)
}

func TestIngestSuccess(t *testing.T) {
	api := newStubAPI(t)
	ctrl := New(api.ts.URL, "")

	ctrl.Ingest(t.Context(), "https://portal.example")

	assert.Equal(t, 1, api.count("scrape"))
	assert.Equal(t, "Successfully processed 5 content items", ctrl.IngestPane.Message)
	assert.False(t, ctrl.IngestPane.InProgress, "progress flag cleared after request")
}

func TestIngestErrorMessage(t *testing.T) {
	api := newStubAPI(t)
	api.scrapeBody = `{"status":"error","message":"crawl failed: connection refused"}`
	ctrl := New(api.ts.URL, "")

	ctrl.Ingest(t.Context(), "https://portal.example")

	assert.Equal(t, "Error: crawl failed: connection refused", ctrl.IngestPane.Message)
	assert.False(t, ctrl.IngestPane.InProgress)
}

func TestRefreshLogs(t *testing.T) {
	api := newStubAPI(t)
	ctrl := New(api.ts.URL, "")

	require.NoError(t, ctrl.Navigate(t.Context(), SectionSystemLogs))

	assert.Equal(t, SectionSystemLogs, ctrl.ActiveSection)
	require.Len(t, ctrl.LogsPane.Entries, 1)
	assert.Equal(t, "FAQ", ctrl.LogsPane.Entries[0].Title)
	assert.Equal(t, "faq", ctrl.LogsPane.Entries[0].PageType)
}

func TestBearerTokenAttached(t *testing.T) {
	api := newStubAPI(t)
	ctrl := New(api.ts.URL, "secret-token")

	ctrl.Search(t.Context(), "oceansat")

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, "Bearer secret-token", api.lastAuth)
}
