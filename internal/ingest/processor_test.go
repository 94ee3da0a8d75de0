// ABOUTME: Tests for the content processor
// ABOUTME: Covers cleaning, domain entities, and keyword enhancement

package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanContent(t *testing.T) {
	assert.Equal(t, "ocean color data, updated daily",
		CleanContent("  ocean   color ©® data,   updated daily "))
	assert.Equal(t, "", CleanContent(""))

	// Single characters and absurdly long tokens are dropped.
	long := strings.Repeat("x", 60)
	assert.Equal(t, "ab cd", CleanContent("a ab cd "+long))
}

func TestExtractDomainEntities(t *testing.T) {
	entities := ExtractDomainEntities("Oceansat-2 provides sea surface temperature and chlorophyll data")

	byLabel := make(map[string][]string)
	for _, e := range entities {
		byLabel[e.Label] = append(byLabel[e.Label], e.Text)
	}

	assert.Contains(t, byLabel["SATELLITE"], "oceansat-2")
	assert.Contains(t, byLabel["PRODUCT"], "sea surface temperature")
	assert.Contains(t, byLabel["PRODUCT"], "chlorophyll")
}

func TestExtractDomainEntitiesDeduplicates(t *testing.T) {
	entities := ExtractDomainEntities("ndvi ndvi ndvi")
	assert.Len(t, entities, 1)
}

func TestProcessEnhancesKeywords(t *testing.T) {
	p := NewProcessor()

	pages := p.Process([]Page{{
		URL:      "https://portal.example/data",
		Title:    "Oceansat Data",
		Content:  "archive holds calibrated radiance products from several missions",
		Keywords: []string{"satellite"},
	}})

	require.Len(t, pages, 1)
	kws := pages[0].Keywords
	assert.Equal(t, "satellite", kws[0])
	assert.Contains(t, kws, "archive")
	assert.Contains(t, kws, "calibrated")
	assert.LessOrEqual(t, len(kws), maxKeywords)
}

func TestProcessCapsKeywords(t *testing.T) {
	words := make([]string, 40)
	for i := range words {
		words[i] = strings.Repeat(string(rune('a'+i%26)), 5)
	}

	p := NewProcessor()
	pages := p.Process([]Page{{Content: strings.Join(words, " ")}})

	require.Len(t, pages, 1)
	assert.LessOrEqual(t, len(pages[0].Keywords), maxKeywords)
}

func TestProcessExtractsEntitiesFromTitleAndContent(t *testing.T) {
	p := NewProcessor()

	pages := p.Process([]Page{{
		Title:   "INSAT-3D Imagery",
		Content: "precipitation estimates from insat-3d",
	}})

	require.Len(t, pages, 1)
	labels := make(map[string]bool)
	for _, e := range pages[0].Entities {
		labels[e.Label] = true
	}
	assert.True(t, labels["SATELLITE"])
	assert.True(t, labels["PRODUCT"])
}
