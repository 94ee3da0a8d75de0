// ABOUTME: Tests for query understanding
// ABOUTME: Covers normalization, intents, entities, keywords, and confidence

package nlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "how to download oceansat data?",
		Normalize("  How   to DOWNLOAD Oceansat data?  "))
	assert.Equal(t, "rainfall map", Normalize("rainfall @#$ map"))
	assert.Equal(t, "", Normalize("   "))
}

func TestClassifyIntents(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		intent string
	}{
		{"data request", "how to download oceansat data", IntentDataRequest},
		{"information", "what is chlorophyll concentration", IntentInformationQuery},
		{"geospatial", "show me the coverage area for insat", IntentGeospatialQuery},
		{"support", "the download is not working", IntentTechnicalSupport},
		{"navigation", "where is menu for data products", IntentNavigationHelp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := Classify(Normalize(tt.query))
			assert.Greater(t, scores[tt.intent], 0.0)
		})
	}
}

func TestTopIntentPrefersStrongSignal(t *testing.T) {
	// Three data_request patterns match, lifting the score past the
	// fallback threshold so information_query is not injected.
	scores := Classify("how to download data, where can i find data available")
	assert.Equal(t, IntentDataRequest, topIntent(scores))
	assert.Zero(t, scores[IntentInformationQuery])
}

func TestClassifyFallsBackToInformationQuery(t *testing.T) {
	scores := Classify("xyzzy frobnicate")
	assert.Equal(t, 0.5, scores[IntentInformationQuery])
	assert.Equal(t, IntentInformationQuery, topIntent(scores))
}

func TestExtractEntities(t *testing.T) {
	entities := ExtractEntities("download oceansat sst data for bay of bengal")

	labels := make(map[string]string)
	for _, e := range entities {
		labels[e.Text] = e.Label
		assert.Equal(t, 0.8, e.Confidence)
	}

	assert.Equal(t, "SATELLITE", labels["oceansat"])
	assert.Equal(t, "PRODUCT", labels["sst"])
	assert.Equal(t, "GEO", labels["bay of bengal"])
}

func TestExtractEntitiesNone(t *testing.T) {
	assert.Empty(t, ExtractEntities("hello there"))
}

func TestExtractKeywords(t *testing.T) {
	keywords := ExtractKeywords("how to download the oceansat ocean data data")

	assert.Equal(t, []string{"download", "oceansat", "ocean", "data"}, keywords)
}

func TestIsGeospatial(t *testing.T) {
	assert.True(t, IsGeospatial("show satellite imagery of gujarat"))
	assert.True(t, IsGeospatial("what are the coordinates"))
	assert.False(t, IsGeospatial("how do i reset my password"))
}

func TestConfidenceWeights(t *testing.T) {
	entities := []Entity{{Confidence: 0.8}}
	intents := map[string]float64{IntentDataRequest: 1.0}
	keywords := []string{"a", "b", "c", "d", "e"}

	// 0.4*0.8 + 0.4*1.0 + 0.2*1.0
	assert.InDelta(t, 0.92, Confidence(entities, intents, keywords), 1e-9)
}

func TestConfidenceDefaultsAndClamp(t *testing.T) {
	// No signal at all: 0.4*0.3 + 0.4*0.3 + 0.2*0
	assert.InDelta(t, 0.24, Confidence(nil, nil, nil), 1e-9)

	// Keyword share saturates at 1.
	many := make([]string, 20)
	c := Confidence(nil, map[string]float64{IntentDataRequest: 1.0}, many)
	assert.InDelta(t, 0.4*0.3+0.4+0.2, c, 1e-9)
	assert.LessOrEqual(t, c, 1.0)
}

func TestAnalyzePipeline(t *testing.T) {
	a := Analyze("How to download Oceansat data?")

	assert.Equal(t, "How to download Oceansat data?", a.OriginalQuery)
	assert.Equal(t, "how to download oceansat data?", a.CleanedQuery)
	// Two of seven data_request patterns match, which stays under the
	// fallback threshold, so the query is handled as an information query.
	assert.Equal(t, IntentInformationQuery, a.TopIntent)
	assert.Greater(t, a.Intents[IntentDataRequest], 0.0)
	assert.Contains(t, a.Keywords, "oceansat")
	assert.NotEmpty(t, a.Entities)
	assert.Greater(t, a.Confidence, 0.5)
	assert.False(t, a.IsGeospatial)
}
