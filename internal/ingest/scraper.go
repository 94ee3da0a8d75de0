// ABOUTME: Polite BFS web scraper for portal content using goquery
// ABOUTME: Same-domain crawl with depth/page limits and robots.txt crawl-delay

package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// linksPerPage caps how many links one page can contribute to the queue.
	linksPerPage = 20
	// keywordsPerPage caps keywords extracted from one page.
	keywordsPerPage = 20
)

var skipExtensions = []string{".pdf", ".jpg", ".png", ".gif", ".zip"}

var contentSelectors = []string{
	"main", "article", ".content", "#content",
	".main-content", "#main-content", ".post-content",
}

var domainTerms = []string{
	"satellite", "data", "download", "ocean", "land", "atmospheric",
	"oceansat", "resourcesat", "insat", "modis", "landsat",
	"ndvi", "sst", "chlorophyll", "precipitation", "temperature",
}

// Page is the raw result of scraping a single URL.
type Page struct {
	URL         string
	Title       string
	Description string
	Content     string
	Keywords    []string
	PageType    string

	links []string
}

// Options configure a Scraper. Zero values fall back to sensible limits.
type Options struct {
	MaxPages   int
	DepthLimit int
	Delay      time.Duration
	UserAgent  string
}

// Scraper crawls a portal breadth-first, staying on the starting domain.
type Scraper struct {
	client     *http.Client
	logger     *slog.Logger
	maxPages   int
	depthLimit int
	delay      time.Duration
	userAgent  string
}

// NewScraper creates a scraper with the given options.
func NewScraper(opts Options) *Scraper {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 50
	}
	if opts.DepthLimit <= 0 {
		opts.DepthLimit = 2
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "portalbot/1.0"
	}

	return &Scraper{
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default().With("component", "scraper"),
		maxPages:   opts.MaxPages,
		depthLimit: opts.DepthLimit,
		delay:      opts.Delay,
		userAgent:  opts.UserAgent,
	}
}

// Crawl scrapes pages breadth-first starting from baseURL. It honors a
// robots.txt Crawl-delay larger than the configured delay and stops on
// context cancellation, returning what it collected so far.
func (s *Scraper) Crawl(ctx context.Context, baseURL string) ([]Page, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	delay := s.delay
	if robotsDelay := s.crawlDelay(ctx, base); robotsDelay > delay {
		delay = robotsDelay
	}

	type queued struct {
		url   string
		depth int
	}

	var pages []Page
	visited := make(map[string]bool)
	queue := []queued{{url: baseURL, depth: 0}}

	for len(queue) > 0 && len(pages) < s.maxPages {
		item := queue[0]
		queue = queue[1:]

		if visited[item.url] || item.depth > s.depthLimit {
			continue
		}
		visited[item.url] = true

		s.logger.Info("scraping page", "url", item.url, "depth", item.depth)

		page, err := s.ScrapePage(ctx, item.url)
		if err != nil {
			if ctx.Err() != nil {
				return pages, ctx.Err()
			}
			s.logger.Warn("page scrape failed", "url", item.url, "error", err)
			continue
		}

		pages = append(pages, *page)

		if item.depth < s.depthLimit {
			for _, link := range page.links {
				if !visited[link] {
					queue = append(queue, queued{url: link, depth: item.depth + 1})
				}
			}
		}

		if len(queue) > 0 && len(pages) < s.maxPages {
			select {
			case <-ctx.Done():
				return pages, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	s.logger.Info("crawl completed", "base_url", baseURL, "pages", len(pages))
	return pages, nil
}

// ScrapePage fetches and extracts content from a single URL.
func (s *Scraper) ScrapePage(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	title := extractTitle(doc)
	content := extractMainContent(doc)

	return &Page{
		URL:         pageURL,
		Title:       title,
		Description: extractDescription(doc),
		Content:     content,
		Keywords:    extractKeywords(doc),
		PageType:    ClassifyPageType(pageURL, title, content),
		links:       extractLinks(doc, pageURL),
	}, nil
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return "Untitled"
}

func extractDescription(doc *goquery.Document) string {
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && strings.TrimSpace(desc) != "" {
		return strings.TrimSpace(desc)
	}
	if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok && strings.TrimSpace(desc) != "" {
		return strings.TrimSpace(desc)
	}
	if p := strings.TrimSpace(doc.Find("p").First().Text()); p != "" {
		if len(p) > 200 {
			return p[:200] + "..."
		}
		return p
	}
	return ""
}

func extractKeywords(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var keywords []string
	add := func(kw string) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			return
		}
		seen[kw] = true
		keywords = append(keywords, kw)
	}

	if meta, ok := doc.Find(`meta[name="keywords"]`).Attr("content"); ok {
		for _, kw := range strings.Split(meta, ",") {
			add(kw)
		}
	}

	doc.Find("h1, h2, h3").Each(func(_ int, sel *goquery.Selection) {
		for _, word := range strings.Fields(strings.ToLower(sel.Text())) {
			word = strings.Trim(word, ".,!?:;()\"'")
			if len(word) >= 3 && isAlpha(word) {
				add(word)
			}
		}
	})

	pageText := strings.ToLower(doc.Text())
	for _, term := range domainTerms {
		if strings.Contains(pageText, term) {
			add(term)
		}
	}

	if len(keywords) > keywordsPerPage {
		keywords = keywords[:keywordsPerPage]
	}
	return keywords
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func extractMainContent(doc *goquery.Document) string {
	clone := goquery.CloneDocument(doc)
	clone.Find("script, style, nav, header, footer").Remove()

	for _, selector := range contentSelectors {
		if sel := clone.Find(selector).First(); sel.Length() > 0 {
			return collapseWhitespace(sel.Text())
		}
	}

	if body := clone.Find("body").First(); body.Length() > 0 {
		return collapseWhitespace(body.Text())
	}
	return collapseWhitespace(clone.Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// extractLinks returns same-domain links, skipping binary file extensions
// and fragment URLs.
func extractLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		full := base.ResolveReference(ref)

		if full.Host != base.Host || full.Fragment != "" {
			return true
		}
		lower := strings.ToLower(full.String())
		for _, ext := range skipExtensions {
			if strings.HasSuffix(lower, ext) {
				return true
			}
		}

		link := full.String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
		return len(links) < linksPerPage
	})

	return links
}

// ClassifyPageType buckets a page by URL, title, and content signals.
func ClassifyPageType(pageURL, title, content string) string {
	urlLower := strings.ToLower(pageURL)
	titleLower := strings.ToLower(title)
	contentLower := strings.ToLower(content)

	if containsAny(urlLower, "faq", "help", "support") ||
		containsAny(titleLower, "faq", "frequently asked", "help") {
		return "faq"
	}
	if containsAny(urlLower, "doc", "guide", "manual", "tutorial") ||
		containsAny(titleLower, "guide", "manual", "documentation") {
		return "documentation"
	}
	if containsAny(urlLower, "data", "product", "dataset", "download") ||
		containsAny(contentLower, "download", "dataset", "data product") {
		return "data_product"
	}
	if containsAny(urlLower, "news", "announcement", "press") {
		return "news"
	}
	if parsed, err := url.Parse(pageURL); err == nil && (parsed.Path == "" || parsed.Path == "/") {
		return "homepage"
	}
	if containsAny(urlLower, "contact", "about") {
		return "contact"
	}
	return "general"
}

func containsAny(s string, terms ...string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

// crawlDelay reads robots.txt and returns its Crawl-delay, or zero when
// absent or unreadable.
func (s *Scraper) crawlDelay(ctx context.Context, base *url.URL) time.Duration {
	robotsURL := base.Scheme + "://" + base.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return 0
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("robots.txt not fetched", "url", robotsURL, "error", err)
		return 0
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return 0
	}

	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(strings.ToLower(line))
		if after, ok := strings.CutPrefix(line, "crawl-delay:"); ok {
			if seconds, err := strconv.Atoi(strings.TrimSpace(after)); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}
	return 0
}
