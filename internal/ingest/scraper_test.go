// ABOUTME: Tests for the BFS scraper
// ABOUTME: Uses httptest servers with small fixture sites

package ingest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<html><head>
			<title>Satellite Data Portal</title>
			<meta name="description" content="Earth observation data archive">
			<meta name="keywords" content="satellite, ocean">
		</head><body>
			<main><h1>Welcome to the Portal</h1>
			<p>Download oceansat data here.</p>
			<a href="/faq">FAQ</a>
			<a href="/data/products">Products</a>
			<a href="/report.pdf">Report</a>
			<a href="/faq#section">Anchor</a>
			<a href="https://elsewhere.example/page">External</a>
			</main>
		</body></html>`)
	})
	mux.HandleFunc("/faq", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Frequently Asked Questions</title></head>
			<body><main><p>Answers about downloads.</p>
			<a href="/data/products">Products</a></main></body></html>`)
	})
	mux.HandleFunc("/data/products", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Data Products</title></head>
			<body><main><p>Sea surface temperature dataset downloads.</p></main></body></html>`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testScraper() *Scraper {
	return NewScraper(Options{MaxPages: 10, DepthLimit: 2, Delay: time.Millisecond})
}

func TestCrawlStaysOnDomain(t *testing.T) {
	srv := fixtureSite(t)

	pages, err := testScraper().Crawl(t.Context(), srv.URL+"/")
	require.NoError(t, err)
	require.Len(t, pages, 3)

	for _, p := range pages {
		u, err := url.Parse(p.URL)
		require.NoError(t, err)
		assert.Equal(t, u.Host, mustHost(t, srv.URL))
		assert.NotContains(t, p.URL, ".pdf")
		assert.NotContains(t, p.URL, "#")
	}
}

func mustHost(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Host
}

func TestCrawlRespectsMaxPages(t *testing.T) {
	srv := fixtureSite(t)

	s := NewScraper(Options{MaxPages: 1, DepthLimit: 2, Delay: time.Millisecond})
	pages, err := s.Crawl(t.Context(), srv.URL+"/")
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestCrawlRespectsDepthLimit(t *testing.T) {
	srv := fixtureSite(t)

	s := NewScraper(Options{MaxPages: 10, DepthLimit: 1, Delay: time.Millisecond})
	pages, err := s.Crawl(t.Context(), srv.URL+"/")
	require.NoError(t, err)

	// / at depth 0, /faq and /data/products at depth 1. The /data/products
	// link inside /faq would be depth 2 but is already visited anyway.
	assert.Len(t, pages, 3)
}

func TestCrawlInvalidBaseURL(t *testing.T) {
	_, err := testScraper().Crawl(t.Context(), "not a url")
	assert.Error(t, err)
}

func TestScrapePageExtraction(t *testing.T) {
	srv := fixtureSite(t)

	page, err := testScraper().ScrapePage(t.Context(), srv.URL+"/")
	require.NoError(t, err)

	assert.Equal(t, "Satellite Data Portal", page.Title)
	assert.Equal(t, "Earth observation data archive", page.Description)
	assert.Contains(t, page.Content, "Download oceansat data here.")
	assert.NotContains(t, page.Content, "<main>")
	assert.Contains(t, page.Keywords, "satellite")
	assert.Contains(t, page.Keywords, "oceansat")
	assert.Equal(t, "homepage", page.PageType)
}

func TestScrapePageErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	_, err := testScraper().ScrapePage(t.Context(), srv.URL+"/missing")
	assert.Error(t, err)
}

func TestClassifyPageType(t *testing.T) {
	tests := []struct {
		url, title, content, want string
	}{
		{"https://portal.example/faq", "", "", "faq"},
		{"https://portal.example/page", "User Guide", "", "documentation"},
		{"https://portal.example/datasets", "", "", "data_product"},
		{"https://portal.example/page", "Page", "download the dataset", "data_product"},
		{"https://portal.example/news/2026", "", "", "news"},
		{"https://portal.example/", "", "", "homepage"},
		{"https://portal.example/contact", "", "", "contact"},
		{"https://portal.example/misc", "Misc", "plain text", "general"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyPageType(tt.url, tt.title, tt.content), tt.url)
	}
}

func TestCrawlDelayFromRobots(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "User-agent: *\nCrawl-delay: 3\n")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)

	delay := testScraper().crawlDelay(t.Context(), base)
	assert.Equal(t, 3*time.Second, delay)
}

func TestCrawlDelayMissingRobots(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), testScraper().crawlDelay(t.Context(), base))
}
