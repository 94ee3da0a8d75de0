// ABOUTME: Query understanding: intent classification, entity and keyword extraction
// ABOUTME: Pure functions with no model or network dependencies

package nlp

import (
	"regexp"
	"sort"
	"strings"
)

// Intent labels produced by Classify.
const (
	IntentDataRequest      = "data_request"
	IntentInformationQuery = "information_query"
	IntentGeospatialQuery  = "geospatial_query"
	IntentTechnicalSupport = "technical_support"
	IntentNavigationHelp   = "navigation_help"
)

// Entity is a domain term recognized in the query.
type Entity struct {
	Text       string
	Label      string
	Start      int
	End        int
	Confidence float64
}

// Analysis is the full result of processing one query.
type Analysis struct {
	OriginalQuery string
	CleanedQuery  string
	Entities      []Entity
	Intents       map[string]float64
	TopIntent     string
	Keywords      []string
	IsGeospatial  bool
	Confidence    float64
}

var intentPatterns = map[string][]*regexp.Regexp{
	IntentDataRequest: compileAll(
		`download.*data`, `get.*dataset`, `access.*data`, `retrieve.*data`,
		`where.*can.*find`, `how.*to.*download`, `data.*available`,
	),
	IntentInformationQuery: compileAll(
		`what.*is`, `explain`, `describe`, `tell.*me.*about`,
		`information.*about`, `details.*about`, `how.*does.*work`,
	),
	IntentGeospatialQuery: compileAll(
		`location.*of`, `coordinates.*of`, `map.*of`, `coverage.*area`,
		`satellite.*image`, `boundary.*of`, `region.*of`,
	),
	IntentTechnicalSupport: compileAll(
		`error.*occurred`, `problem.*with`, `not.*working`, `help.*with`,
		`troubleshoot`, `fix.*issue`, `support`,
	),
	IntentNavigationHelp: compileAll(
		`how.*to.*navigate`, `find.*page`, `where.*is.*menu`,
		`go.*to`, `access.*section`, `locate.*feature`,
	),
}

// Domain entity patterns grouped by label.
var domainPatterns = []struct {
	label string
	re    *regexp.Regexp
}{
	{"SATELLITE", regexp.MustCompile(`(?i)(landsat|sentinel|modis|aster|cartosat|resourcesat|oceansat|insat|megha-tropiques)`)},
	{"SATELLITE", regexp.MustCompile(`(?i)(l1|l2|l3|l4)\s*(data|product)`)},
	{"SATELLITE", regexp.MustCompile(`(?i)(visible|infrared|thermal|microwave)\s*(band|channel)`)},
	{"PRODUCT", regexp.MustCompile(`(?i)(ndvi|ndwi|lst|sst|chlorophyll|aerosol)`)},
	{"PRODUCT", regexp.MustCompile(`(?i)(dem|dtm|dsm)`)},
	{"PRODUCT", regexp.MustCompile(`(?i)(precipitation|temperature|humidity)\s*(data|product)`)},
	{"GEO", regexp.MustCompile(`(?i)(india|indian\s*ocean|arabian\s*sea|bay\s*of\s*bengal)`)},
	{"GEO", regexp.MustCompile(`(?i)(state|district|city|region)\s*of\s*\w+`)},
	{"GEO", regexp.MustCompile(`(?i)\d+\.?\d*\s*(north|south|east|west|n|s|e|w|lat|lon|latitude|longitude)`)},
}

var geospatialKeywords = []string{
	"location", "coordinates", "latitude", "longitude", "region", "area",
	"boundary", "map", "satellite", "imagery", "coverage", "extent",
	"polygon", "point", "geometry", "spatial", "geographic",
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "can": true, "do": true, "does": true, "for": true,
	"from": true, "get": true, "has": true, "have": true, "how": true,
	"i": true, "in": true, "is": true, "it": true, "me": true, "my": true,
	"of": true, "on": true, "or": true, "our": true, "tell": true, "that": true,
	"the": true, "this": true, "to": true, "want": true, "was": true,
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"why": true, "will": true, "with": true, "you": true, "your": true,
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	specialsRe   = regexp.MustCompile(`[^\w\s\-.?!,]`)
	tokenRe      = regexp.MustCompile(`[a-z0-9][a-z0-9\-]*`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(p)
	}
	return res
}

// Normalize lowercases a query, collapses whitespace, and strips special
// characters apart from basic punctuation.
func Normalize(query string) string {
	query = strings.ToLower(strings.TrimSpace(query))
	query = specialsRe.ReplaceAllString(query, " ")
	query = whitespaceRe.ReplaceAllString(query, " ")
	return strings.TrimSpace(query)
}

// Classify scores each intent as the fraction of its patterns that match.
// When nothing scores above 0.3 the query falls back to information_query
// at 0.5.
func Classify(query string) map[string]float64 {
	scores := make(map[string]float64, len(intentPatterns))
	hasSignal := false

	for intent, patterns := range intentPatterns {
		matched := 0
		for _, re := range patterns {
			if re.MatchString(query) {
				matched++
			}
		}
		score := float64(matched) / float64(len(patterns))
		scores[intent] = score
		if score > 0.3 {
			hasSignal = true
		}
	}

	if !hasSignal {
		scores[IntentInformationQuery] = 0.5
	}

	return scores
}

// ExtractEntities finds domain terms (satellites, products, geography) in
// the query.
func ExtractEntities(query string) []Entity {
	var entities []Entity
	for _, dp := range domainPatterns {
		for _, loc := range dp.re.FindAllStringIndex(query, -1) {
			entities = append(entities, Entity{
				Text:       query[loc[0]:loc[1]],
				Label:      dp.label,
				Start:      loc[0],
				End:        loc[1],
				Confidence: 0.8,
			})
		}
	}
	return entities
}

// ExtractKeywords returns stopword-filtered tokens longer than two
// characters, deduplicated in order of first appearance.
func ExtractKeywords(query string) []string {
	seen := make(map[string]bool)
	var keywords []string
	for _, token := range tokenRe.FindAllString(strings.ToLower(query), -1) {
		if len(token) <= 2 || stopwords[token] || seen[token] {
			continue
		}
		seen[token] = true
		keywords = append(keywords, token)
	}
	return keywords
}

// IsGeospatial reports whether the query contains geospatial vocabulary.
func IsGeospatial(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range geospatialKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Confidence combines entity, intent, and keyword signals:
// 0.4·entity + 0.4·intent + 0.2·min(len(keywords)/5, 1), clamped to 1.
func Confidence(entities []Entity, intents map[string]float64, keywords []string) float64 {
	entityConfidence := 0.3
	if len(entities) > 0 {
		sum := 0.0
		for _, e := range entities {
			sum += e.Confidence
		}
		entityConfidence = sum / float64(len(entities))
	}

	intentConfidence := 0.3
	if len(intents) > 0 {
		intentConfidence = 0.0
		for _, score := range intents {
			if score > intentConfidence {
				intentConfidence = score
			}
		}
	}

	keywordConfidence := float64(len(keywords)) / 5.0
	if keywordConfidence > 1 {
		keywordConfidence = 1
	}

	confidence := entityConfidence*0.4 + intentConfidence*0.4 + keywordConfidence*0.2
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// Analyze runs the full pipeline over one query.
func Analyze(query string) Analysis {
	cleaned := Normalize(query)
	entities := ExtractEntities(cleaned)
	intents := Classify(cleaned)
	keywords := ExtractKeywords(cleaned)

	return Analysis{
		OriginalQuery: query,
		CleanedQuery:  cleaned,
		Entities:      entities,
		Intents:       intents,
		TopIntent:     topIntent(intents),
		Keywords:      keywords,
		IsGeospatial:  IsGeospatial(cleaned),
		Confidence:    Confidence(entities, intents, keywords),
	}
}

// topIntent picks the highest-scoring intent, breaking ties alphabetically
// so results are deterministic.
func topIntent(intents map[string]float64) string {
	names := make([]string, 0, len(intents))
	for name := range intents {
		names = append(names, name)
	}
	sort.Strings(names)

	best := IntentInformationQuery
	bestScore := -1.0
	for _, name := range names {
		if intents[name] > bestScore {
			best = name
			bestScore = intents[name]
		}
	}
	return best
}
