// ABOUTME: Query resolver combining NLP analysis, spatial handling, and graph search
// ABOUTME: Dispatches on intent and composes markdown answers with sources and suggestions

package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skyarc/portalbot/internal/geo"
	"github.com/skyarc/portalbot/internal/index"
	"github.com/skyarc/portalbot/internal/nlp"
	"github.com/skyarc/portalbot/internal/store"
)

const searchLimit = 5

// Searcher answers similarity queries over the entity index.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]index.Result, error)
}

// Graph looks up entity neighborhoods for related-information sections.
type Graph interface {
	Neighborhood(ctx context.Context, id, predicate string, distance int) ([]*store.Entity, error)
}

// Source is one supporting reference attached to an answer.
type Source struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Relevance   float64 `json:"relevance"`
}

// Response is the assistant's reply to one user query.
type Response struct {
	Answer      string      `json:"answer"`
	Confidence  float64     `json:"confidence"`
	Sources     []Source    `json:"sources"`
	Suggestions []string    `json:"suggestions"`
	Geospatial  *geo.Result `json:"geospatial_data,omitempty"`
}

// Resolver turns user queries into responses.
type Resolver struct {
	searcher Searcher
	graph    Graph
	sessions *sessionStore
	logger   *slog.Logger
}

// New creates a resolver over the given index and graph.
func New(searcher Searcher, graph Graph) *Resolver {
	return &Resolver{
		searcher: searcher,
		graph:    graph,
		sessions: newSessionStore(),
		logger:   slog.Default().With("component", "resolver"),
	}
}

// Process answers one query within a session. A processing failure yields
// the fallback response with confidence 0 rather than an error.
func (r *Resolver) Process(ctx context.Context, query, sessionID string) *Response {
	analysis := nlp.Analyze(query)

	var spatial *geo.Result
	if analysis.IsGeospatial {
		res := geo.Process(analysis.CleanedQuery)
		spatial = &res
	}

	hits, err := r.searcher.Search(ctx, query, searchLimit)
	if err != nil {
		r.logger.Error("index search failed", "session_id", sessionID, "error", err)
		resp := fallbackResponse()
		r.sessions.record(sessionID, query, resp)
		return resp
	}

	var resp *Response
	switch analysis.TopIntent {
	case nlp.IntentDataRequest:
		resp = r.handleDataRequest(analysis, hits, spatial)
	case nlp.IntentGeospatialQuery:
		resp = r.handleGeospatialQuery(analysis, hits, spatial)
	case nlp.IntentTechnicalSupport:
		resp = r.handleTechnicalSupport(analysis)
	case nlp.IntentNavigationHelp:
		resp = r.handleNavigationHelp(analysis)
	default:
		resp = r.handleInformationQuery(ctx, analysis, hits, spatial)
	}

	r.sessions.record(sessionID, query, resp)
	return resp
}

// Context returns the recorded turns for a session, oldest first.
func (r *Resolver) Context(sessionID string) []Turn {
	return r.sessions.turns(sessionID)
}

func (r *Resolver) handleDataRequest(a nlp.Analysis, hits []index.Result, spatial *geo.Result) *Response {
	var b strings.Builder
	b.WriteString("I can help you access satellite data from the portal. ")

	var suggestions []string

	satellites := entitiesByLabel(a.Entities, "SATELLITE")
	products := entitiesByLabel(a.Entities, "PRODUCT")

	if len(satellites) > 0 {
		fmt.Fprintf(&b, "I found that you're interested in **%s** data. ", strings.Join(satellites, ", "))
		suggestions = append(suggestions,
			fmt.Sprintf("Browse %s data products", satellites[0]),
			fmt.Sprintf("Check %s data availability", satellites[0]),
			"View data download guidelines")
	}
	if len(products) > 0 {
		fmt.Fprintf(&b, "For **%s** products, ", strings.Join(products, ", "))
		suggestions = append(suggestions,
			fmt.Sprintf("Download %s data", products[0]),
			fmt.Sprintf("Learn about %s specifications", products[0]),
			"View product documentation")
	}
	if spatial != nil && spatial.HasSpatialData {
		b.WriteString("I can see you've specified a location. ")
		if len(spatial.Coordinates) > 0 {
			c := spatial.Coordinates[0]
			fmt.Fprintf(&b, "For coordinates %.2f, %.2f, ", c.Lat, c.Lon)
		}
		suggestions = append(suggestions,
			"View data coverage for your area",
			"Check spatial resolution options",
			"Download regional data subset")
	}

	sources := sourcesFromHits(hits, 3)
	if len(hits) > 0 {
		b.WriteString("Here are some relevant data sources I found:\n\n")
		for _, s := range sources {
			fmt.Fprintf(&b, "- **%s**: %s\n", s.Title, truncate(s.Description, 100))
		}
	}

	b.WriteString("\nTo access data:\n\n")
	b.WriteString("1. Register on the portal\n")
	b.WriteString("2. Browse the data catalog\n")
	b.WriteString("3. Select your area of interest\n")
	b.WriteString("4. Choose data products and download\n")

	confidence := a.Confidence + 0.2
	if confidence > 1 {
		confidence = 1
	}

	return &Response{
		Answer:      b.String(),
		Confidence:  confidence,
		Sources:     sources,
		Suggestions: capSuggestions(suggestions),
		Geospatial:  spatial,
	}
}

func (r *Resolver) handleGeospatialQuery(a nlp.Analysis, hits []index.Result, spatial *geo.Result) *Response {
	var b strings.Builder
	b.WriteString("I can help you with spatial data queries. ")

	var suggestions []string

	if spatial != nil && spatial.HasSpatialData {
		b.WriteString(geo.Summary(*spatial))
		b.WriteString("\n\n")

		if len(spatial.Coordinates) > 0 {
			fmt.Fprintf(&b, "Found %d coordinate location(s). ", len(spatial.Coordinates))
			for i, c := range spatial.Coordinates {
				if i == 2 {
					break
				}
				fmt.Fprintf(&b, "Location: %.4f°, %.4f° ", c.Lat, c.Lon)
			}
		}
		if len(spatial.Locations) > 0 {
			names := make([]string, 0, 3)
			for _, loc := range spatial.Locations {
				names = append(names, loc.Name)
				if len(names) == 3 {
					break
				}
			}
			fmt.Fprintf(&b, "Identified locations: %s. ", strings.Join(names, ", "))
		}
		suggestions = append(suggestions, spatial.Suggestions...)
	} else {
		b.WriteString("I didn't detect specific coordinates or location names in your query. ")
		b.WriteString("Please provide coordinates (e.g., 28.6, 77.2) or location names (e.g., Delhi, Mumbai) ")
		b.WriteString("for more specific spatial information.")
		suggestions = append(suggestions,
			"Specify coordinates or location name",
			"Browse data by region",
			"Use the interactive map")
	}

	return &Response{
		Answer:      b.String(),
		Confidence:  a.Confidence,
		Sources:     sourcesFromHits(hits, 2),
		Suggestions: capSuggestions(suggestions),
		Geospatial:  spatial,
	}
}

func (r *Resolver) handleTechnicalSupport(a nlp.Analysis) *Response {
	var b strings.Builder
	b.WriteString("I'm here to help with technical issues. ")

	var suggestions []string
	keywords := keywordSet(a.Keywords)

	if keywords["error"] || keywords["problem"] {
		b.WriteString("For error troubleshooting:\n\n")
		b.WriteString("1. Check your internet connection\n")
		b.WriteString("2. Clear browser cache and cookies\n")
		b.WriteString("3. Try using a different browser\n")
		b.WriteString("4. Ensure you're logged in to your portal account\n\n")
		suggestions = append(suggestions,
			"Contact technical support",
			"Check system requirements",
			"View troubleshooting guide",
			"Submit error report")
	}
	if keywords["download"] {
		b.WriteString("For download issues:\n\n")
		b.WriteString("- Ensure you have sufficient storage space\n")
		b.WriteString("- Check file size limits\n")
		b.WriteString("- Verify data access permissions\n")
		b.WriteString("- Use a download manager for large files\n\n")
		suggestions = append(suggestions,
			"Check download guidelines",
			"Verify account permissions",
			"Use alternative download method")
	}
	if keywords["login"] || keywords["access"] {
		b.WriteString("For access issues:\n\n")
		b.WriteString("- Verify your username and password\n")
		b.WriteString("- Check if your account is active\n")
		b.WriteString("- Reset password if needed\n")
		b.WriteString("- Contact admin for account issues\n\n")
		suggestions = append(suggestions,
			"Reset password",
			"Register new account",
			"Contact support team")
	}

	b.WriteString("If the issue persists, please contact our support team with specific error details.")

	return &Response{
		Answer:      b.String(),
		Confidence:  0.8,
		Suggestions: capSuggestions(suggestions),
	}
}

var navigationMap = []struct {
	section     string
	description string
}{
	{"data catalog", "Browse the data catalog section to find available datasets"},
	{"download", "Use the download section to access data files"},
	{"user registration", "Register in the user section to access premium features"},
	{"documentation", "Check the documentation section for detailed guides"},
	{"faq", "Visit the FAQ section for common questions and answers"},
	{"contact", "Use the contact section to reach the support team"},
}

func (r *Resolver) handleNavigationHelp(a nlp.Analysis) *Response {
	var b strings.Builder
	b.WriteString("I can help you navigate the portal. ")

	var found []struct{ section, description string }
	for _, nav := range navigationMap {
		for _, kw := range a.Keywords {
			if strings.Contains(nav.section, kw) {
				found = append(found, struct{ section, description string }{nav.section, nav.description})
				break
			}
		}
	}

	if len(found) > 0 {
		b.WriteString("Here's how to find what you're looking for:\n\n")
		for _, f := range found {
			fmt.Fprintf(&b, "- **%s**: %s\n", titleCase(f.section), f.description)
		}
	} else {
		b.WriteString("Here are the main sections of the portal:\n\n")
		b.WriteString("- **Data Catalog**: Browse available satellite datasets\n")
		b.WriteString("- **Download Center**: Access and download data\n")
		b.WriteString("- **User Dashboard**: Manage your account and downloads\n")
		b.WriteString("- **Documentation**: Guides and technical specifications\n")
		b.WriteString("- **Support**: FAQ and contact information\n")
	}

	return &Response{
		Answer:     b.String(),
		Confidence: 0.9,
		Suggestions: capSuggestions([]string{
			"Browse data catalog",
			"View user guide",
			"Check FAQ section",
			"Access download center",
			"Visit documentation",
		}),
	}
}

func (r *Resolver) handleInformationQuery(ctx context.Context, a nlp.Analysis, hits []index.Result, spatial *geo.Result) *Response {
	var b strings.Builder
	var sources []Source
	var suggestions []string

	if len(hits) > 0 && hits[0].Similarity > 0.3 {
		best := hits[0]
		fmt.Fprintf(&b, "Based on your query about '%s', here's what I found:\n\n", a.OriginalQuery)
		fmt.Fprintf(&b, "**%s**: %s\n", best.Name, best.Description)

		sources = append(sources, Source{
			Title:       best.Name,
			Description: best.Description,
			Type:        best.Type,
			Relevance:   best.Similarity,
		})

		related, err := r.graph.Neighborhood(ctx, best.ID, "", 1)
		if err != nil {
			r.logger.Warn("neighborhood lookup failed", "entity", best.ID, "error", err)
		} else if len(related) > 0 {
			b.WriteString("\nRelated information:\n\n")
			for i, e := range related {
				if i == 3 {
					break
				}
				fmt.Fprintf(&b, "- **%s**: %s\n", e.Name, truncate(e.Description, 100))
			}
		}
	} else {
		b.WriteString(generalPortalInfo)
	}

	if spatial != nil && spatial.HasSpatialData {
		fmt.Fprintf(&b, "\n\nSpatial context: %s", geo.Summary(*spatial))
	}

	for i, e := range a.Entities {
		if i == 2 {
			break
		}
		suggestions = append(suggestions, fmt.Sprintf("Learn more about %s", e.Text))
	}
	for i, kw := range a.Keywords {
		if i == 3 {
			break
		}
		suggestions = append(suggestions, fmt.Sprintf("Search for %s data", kw))
	}
	suggestions = append(suggestions,
		"Browse data catalog",
		"View satellite missions",
		"Check data products",
		"Access documentation")

	return &Response{
		Answer:      b.String(),
		Confidence:  a.Confidence,
		Sources:     sources,
		Suggestions: capSuggestions(suggestions),
		Geospatial:  spatial,
	}
}

const generalPortalInfo = `The portal is a satellite data repository providing meteorological and oceanographic observations.

Key features:

- Comprehensive satellite data archive from Indian and international missions
- Ocean color, meteorological, and land observation data
- Real-time and historical datasets
- Data discovery and download interface
- Support for various data formats and processing levels

Available satellites include Oceansat, ResourceSat, INSAT, Cartosat, and international missions like Landsat and Sentinel.

Most datasets are freely accessible after user registration.`

func fallbackResponse() *Response {
	return &Response{
		Answer:     "I encountered an error processing your query. Please try rephrasing your question or contact support if the issue persists.",
		Confidence: 0,
		Suggestions: []string{
			"Try rephrasing your question",
			"Check spelling and grammar",
			"Contact technical support",
			"Browse FAQ section",
		},
	}
}

func entitiesByLabel(entities []nlp.Entity, label string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range entities {
		if e.Label != label || seen[e.Text] {
			continue
		}
		seen[e.Text] = true
		out = append(out, e.Text)
	}
	return out
}

func sourcesFromHits(hits []index.Result, max int) []Source {
	var sources []Source
	for i, h := range hits {
		if i == max {
			break
		}
		sources = append(sources, Source{
			Title:       h.Name,
			Description: h.Description,
			Type:        h.Type,
			Relevance:   h.Similarity,
		})
	}
	return sources
}

func keywordSet(keywords []string) map[string]bool {
	set := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		set[kw] = true
	}
	return set
}

func capSuggestions(suggestions []string) []string {
	if len(suggestions) > 5 {
		return suggestions[:5]
	}
	return suggestions
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
