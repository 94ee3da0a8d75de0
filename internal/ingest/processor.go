// ABOUTME: Cleans scraped pages and extracts domain entities and keywords
// ABOUTME: Prepares content for knowledge graph integration

package ingest

import (
	"regexp"
	"strings"
)

const maxKeywords = 30

// Entity is a domain term found in page content.
type Entity struct {
	Text  string
	Label string
}

// ProcessedPage is a scraped page after cleaning and enrichment.
type ProcessedPage struct {
	Page
	Entities []Entity
}

var entityPatterns = []struct {
	label string
	re    *regexp.Regexp
}{
	{"SATELLITE", regexp.MustCompile(`\b(oceansat[-\s]?[123]?)\b`)},
	{"SATELLITE", regexp.MustCompile(`\b(resourcesat[-\s]?[12]?)\b`)},
	{"SATELLITE", regexp.MustCompile(`\b(insat[-\s]?3[a-z]?)\b`)},
	{"SATELLITE", regexp.MustCompile(`\b(cartosat[-\s]?[123]?)\b`)},
	{"SATELLITE", regexp.MustCompile(`\b(landsat[-\s]?[4-9]?)\b`)},
	{"SATELLITE", regexp.MustCompile(`\b(sentinel[-\s]?[12]?)\b`)},
	{"SATELLITE", regexp.MustCompile(`\b(modis)\b`)},
	{"PRODUCT", regexp.MustCompile(`\b(ocean\s+color)\b`)},
	{"PRODUCT", regexp.MustCompile(`\b(sea\s+surface\s+temperature|sst)\b`)},
	{"PRODUCT", regexp.MustCompile(`\b(land\s+surface\s+temperature|lst)\b`)},
	{"PRODUCT", regexp.MustCompile(`\b(ndvi)\b`)},
	{"PRODUCT", regexp.MustCompile(`\b(chlorophyll)\b`)},
	{"PRODUCT", regexp.MustCompile(`\b(precipitation)\b`)},
	{"PRODUCT", regexp.MustCompile(`\b(wind\s+speed)\b`)},
}

var (
	processorSpecialsRe = regexp.MustCompile(`[^\w\s.,!?\-()]`)
	wordRe              = regexp.MustCompile(`\b[a-z][a-z\-]{3,}\b`)
)

// Processor turns raw scraped pages into enriched, cleaned pages.
type Processor struct{}

// NewProcessor creates a content processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Process cleans and enriches a batch of scraped pages. Pages with no
// usable content survive; only their content field ends up empty.
func (p *Processor) Process(pages []Page) []ProcessedPage {
	processed := make([]ProcessedPage, 0, len(pages))
	for _, page := range pages {
		page.Content = CleanContent(page.Content)
		processed = append(processed, ProcessedPage{
			Page:     withEnhancedKeywords(page),
			Entities: ExtractDomainEntities(page.Title + " " + page.Content),
		})
	}
	return processed
}

// CleanContent collapses whitespace, strips unusual characters, and drops
// degenerate tokens.
func CleanContent(content string) string {
	if content == "" {
		return ""
	}

	content = processorSpecialsRe.ReplaceAllString(content, " ")

	var words []string
	for _, word := range strings.Fields(content) {
		if len(word) >= 2 && len(word) <= 50 {
			words = append(words, word)
		}
	}
	return strings.Join(words, " ")
}

// ExtractDomainEntities finds satellite and data-product terms in text.
func ExtractDomainEntities(text string) []Entity {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var entities []Entity

	for _, ep := range entityPatterns {
		for _, m := range ep.re.FindAllString(lower, -1) {
			key := ep.label + ":" + m
			if seen[key] {
				continue
			}
			seen[key] = true
			entities = append(entities, Entity{Text: m, Label: ep.label})
		}
	}
	return entities
}

// withEnhancedKeywords appends frequent content words to the page's
// keyword list, capped at 30.
func withEnhancedKeywords(page Page) Page {
	seen := make(map[string]bool, len(page.Keywords))
	keywords := make([]string, 0, maxKeywords)
	for _, kw := range page.Keywords {
		if !seen[kw] {
			seen[kw] = true
			keywords = append(keywords, kw)
		}
	}

	for _, word := range wordRe.FindAllString(strings.ToLower(page.Content), -1) {
		if len(keywords) >= maxKeywords {
			break
		}
		if !seen[word] {
			seen[word] = true
			keywords = append(keywords, word)
		}
	}

	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	page.Keywords = keywords
	return page
}
