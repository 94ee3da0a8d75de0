// ABOUTME: Admin dashboard controller over the portal HTTP API
// ABOUTME: Typed section navigation with per-section refresh and view state

package adminctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/skyarc/portalbot/internal/kg"
)

// Section identifies one admin dashboard pane.
type Section string

// Dashboard sections.
const (
	SectionDashboard      Section = "dashboard"
	SectionKnowledgeGraph Section = "knowledge_graph"
	SectionDataIngestion  Section = "data_ingestion"
	SectionSystemLogs     Section = "system_logs"
)

// ErrUnknownSection is returned by Navigate for a section with no handler.
var ErrUnknownSection = errors.New("unknown section")

const searchLimit = 10

// SearchRow is one rendered search result.
type SearchRow struct {
	Name        string
	Type        string
	Description string
	// Match is the similarity as a percentage with one decimal, e.g. "87.3%".
	Match string
}

// TypeShare is one entity type's slice of the distribution.
type TypeShare struct {
	Type    string
	Count   int
	Percent float64
}

// LogRow is one ingestion log line.
type LogRow struct {
	URL          string
	Title        string
	PageType     string
	ContentCount int
	Status       string
	Message      string
	CreatedAt    string
}

// DashboardView is the dashboard pane's state.
type DashboardView struct {
	Stats        kg.Stats
	Distribution []TypeShare
	Activity     []LogRow
}

// SearchView is the knowledge graph search pane's state.
type SearchView struct {
	Loading   bool
	Error     string
	Results   []SearchRow
	NoResults bool
}

// IngestView is the data ingestion pane's state.
type IngestView struct {
	InProgress bool
	Message    string
}

// LogsView is the system logs pane's state.
type LogsView struct {
	Entries []LogRow
}

// Controller drives the admin dashboard against the portal API.
type Controller struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger

	refreshers map[Section]func(ctx context.Context) error

	ActiveSection Section
	Dashboard     DashboardView
	SearchPane    SearchView
	IngestPane    IngestView
	LogsPane      LogsView
}

// New creates a controller for the API at baseURL. A non-empty token is
// sent as a bearer token on mutating requests.
func New(baseURL, token string) *Controller {
	c := &Controller{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default().With("component", "adminctl"),
	}
	c.refreshers = map[Section]func(ctx context.Context) error{
		SectionDashboard:      c.RefreshDashboard,
		SectionKnowledgeGraph: func(context.Context) error { return nil },
		SectionDataIngestion:  func(context.Context) error { return nil },
		SectionSystemLogs:     c.RefreshLogs,
	}
	return c
}

// Navigate activates a section and runs its refresh handler. Repeat
// navigation to the same section refreshes again.
func (c *Controller) Navigate(ctx context.Context, section Section) error {
	refresh, ok := c.refreshers[section]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSection, section)
	}
	c.ActiveSection = section
	return refresh(ctx)
}

// statsPayload and friends mirror the server's JSON envelopes.

type searchPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Results []struct {
		Name        string  `json:"name"`
		Type        string  `json:"type"`
		Description string  `json:"description"`
		Similarity  float64 `json:"similarity"`
	} `json:"results"`
}

type scrapePayload struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	ContentCount int    `json:"content_count"`
}

type logsPayload struct {
	Status string `json:"status"`
	Logs   []struct {
		URL          string `json:"url"`
		Title        string `json:"title"`
		PageType     string `json:"page_type"`
		ContentCount int    `json:"content_count"`
		Status       string `json:"status"`
		Message      string `json:"message"`
		CreatedAt    string `json:"created_at"`
	} `json:"logs"`
}

// RefreshDashboard loads graph statistics, the entity type distribution,
// and recent ingestion activity.
func (c *Controller) RefreshDashboard(ctx context.Context) error {
	var stats kg.Stats
	if err := c.get(ctx, "/api/knowledge_graph/stats", &stats); err != nil {
		return fmt.Errorf("loading stats: %w", err)
	}

	var logs logsPayload
	if err := c.get(ctx, "/api/logs?limit=10", &logs); err != nil {
		return fmt.Errorf("loading activity: %w", err)
	}

	c.Dashboard = DashboardView{
		Stats:        stats,
		Distribution: distribution(stats.TypeCounts, stats.Nodes),
		Activity:     logRows(logs),
	}
	return nil
}

// distribution turns per-type counts into sorted percentage shares.
func distribution(counts map[string]int, total int) []TypeShare {
	if total == 0 {
		return nil
	}
	shares := make([]TypeShare, 0, len(counts))
	for entityType, count := range counts {
		shares = append(shares, TypeShare{
			Type:    entityType,
			Count:   count,
			Percent: 100 * float64(count) / float64(total),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Type < shares[j].Type
	})
	return shares
}

// Search runs a knowledge graph search and replaces the results pane.
// Whitespace-only queries are ignored without a request.
func (c *Controller) Search(ctx context.Context, query string) {
	if strings.TrimSpace(query) == "" {
		return
	}

	c.SearchPane = SearchView{Loading: true}

	var payload searchPayload
	err := c.post(ctx, "/api/search", map[string]any{
		"query": query,
		"limit": searchLimit,
	}, &payload)

	switch {
	case err != nil:
		c.SearchPane = SearchView{Error: "Error: " + errMessage(err, "search failed")}
	case payload.Status != "success":
		msg := payload.Message
		if msg == "" {
			msg = "search failed"
		}
		c.SearchPane = SearchView{Error: "Error: " + msg}
	default:
		rows := make([]SearchRow, 0, len(payload.Results))
		for _, r := range payload.Results {
			rows = append(rows, SearchRow{
				Name:        r.Name,
				Type:        r.Type,
				Description: r.Description,
				Match:       fmt.Sprintf("%.1f%%", r.Similarity*100),
			})
		}
		c.SearchPane = SearchView{Results: rows, NoResults: len(rows) == 0}
	}
}

// Ingest triggers a portal crawl. A blank URL is a warning, not a request.
func (c *Controller) Ingest(ctx context.Context, url string) {
	if strings.TrimSpace(url) == "" {
		c.IngestPane.Message = "Please enter a URL to scrape"
		return
	}

	c.IngestPane = IngestView{InProgress: true}
	defer func() { c.IngestPane.InProgress = false }()

	var payload scrapePayload
	err := c.post(ctx, "/api/scrape_portal", map[string]string{"url": url}, &payload)

	switch {
	case err != nil:
		c.IngestPane.Message = "Error: " + errMessage(err, "ingestion failed")
	case payload.Status != "success":
		msg := payload.Message
		if msg == "" {
			msg = "ingestion failed"
		}
		c.IngestPane.Message = "Error: " + msg
	default:
		c.IngestPane.Message = payload.Message
	}
}

// RefreshLogs loads the system logs pane.
func (c *Controller) RefreshLogs(ctx context.Context) error {
	var payload logsPayload
	if err := c.get(ctx, "/api/logs", &payload); err != nil {
		return fmt.Errorf("loading logs: %w", err)
	}
	c.LogsPane = LogsView{Entries: logRows(payload)}
	return nil
}

func logRows(payload logsPayload) []LogRow {
	rows := make([]LogRow, 0, len(payload.Logs))
	for _, l := range payload.Logs {
		rows = append(rows, LogRow(l))
	}
	return rows
}

// apiError carries the server's error envelope message.
type apiError struct {
	message string
}

func (e *apiError) Error() string { return e.message }

func errMessage(err error, fallback string) string {
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.message != "" {
		return apiErr.message
	}
	return fallback
}

func (c *Controller) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Controller) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Controller) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var envelope struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Message != "" {
			return &apiError{message: envelope.Message}
		}
		return &apiError{message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
