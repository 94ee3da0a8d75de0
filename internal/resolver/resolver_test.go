// ABOUTME: Tests for the query resolver
// ABOUTME: Covers intent dispatch, fallback behavior, and session context

package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyarc/portalbot/internal/index"
	"github.com/skyarc/portalbot/internal/store"
)

type fakeSearcher struct {
	hits []index.Result
	err  error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ int) ([]index.Result, error) {
	return f.hits, f.err
}

type fakeGraph struct {
	related []*store.Entity
	err     error
}

func (f *fakeGraph) Neighborhood(_ context.Context, _, _ string, _ int) ([]*store.Entity, error) {
	return f.related, f.err
}

func newTestResolver(hits []index.Result) *Resolver {
	return New(&fakeSearcher{hits: hits}, &fakeGraph{})
}

func TestProcessDataRequest(t *testing.T) {
	r := newTestResolver([]index.Result{
		{ID: "e1", Name: "Oceansat", Type: "satellite", Description: "ocean satellite", Similarity: 0.9},
	})

	// Enough data_request patterns match to win the intent dispatch.
	resp := r.Process(t.Context(), "how to download oceansat data, where can i find data available", "s1")

	assert.Contains(t, resp.Answer, "To access data:")
	assert.Contains(t, resp.Answer, "oceansat")
	assert.NotEmpty(t, resp.Sources)
	assert.LessOrEqual(t, len(resp.Suggestions), 5)
	assert.Greater(t, resp.Confidence, 0.5)
}

func TestProcessGeospatialQuery(t *testing.T) {
	r := newTestResolver(nil)

	resp := r.Process(t.Context(), "location of delhi, coordinates of delhi, map of delhi", "s1")

	require.NotNil(t, resp.Geospatial)
	assert.True(t, resp.Geospatial.HasSpatialData)
	assert.Contains(t, resp.Answer, "spatial data queries")
	assert.Contains(t, resp.Answer, "delhi")
	assert.LessOrEqual(t, len(resp.Suggestions), 5)
}

func TestProcessGeospatialQueryWithoutSpatialData(t *testing.T) {
	r := newTestResolver(nil)

	// Geospatial intent but no coordinates or known place names.
	resp := r.Process(t.Context(), "map of things, location of stuff, coordinates of it", "s1")

	assert.Contains(t, resp.Answer, "didn't detect specific coordinates")
	assert.Contains(t, resp.Suggestions, "Browse data by region")
}

func TestProcessTechnicalSupport(t *testing.T) {
	r := newTestResolver(nil)

	resp := r.Process(t.Context(), "an error occurred, problem with download, need support", "s1")

	assert.Contains(t, resp.Answer, "error troubleshooting")
	assert.Contains(t, resp.Answer, "download issues")
	assert.Equal(t, 0.8, resp.Confidence)
	assert.LessOrEqual(t, len(resp.Suggestions), 5)
}

func TestProcessNavigationHelp(t *testing.T) {
	r := newTestResolver(nil)

	resp := r.Process(t.Context(), "how to navigate to find the faq page, where is menu", "s1")

	assert.Contains(t, resp.Answer, "navigate the portal")
	assert.Contains(t, resp.Answer, "FAQ section")
	assert.Equal(t, 0.9, resp.Confidence)
}

func TestProcessInformationQueryWithMatch(t *testing.T) {
	searcher := &fakeSearcher{hits: []index.Result{
		{ID: "oceansat", Name: "Oceansat", Type: "satellite", Description: "Indian ocean observation satellite", Similarity: 0.85},
	}}
	graph := &fakeGraph{related: []*store.Entity{
		{ID: "data", Name: "Satellite Data", Description: "earth observation archive"},
	}}
	r := New(searcher, graph)

	resp := r.Process(t.Context(), "what is oceansat", "s1")

	assert.Contains(t, resp.Answer, "Oceansat")
	assert.Contains(t, resp.Answer, "Related information")
	assert.Contains(t, resp.Answer, "Satellite Data")
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, 0.85, resp.Sources[0].Relevance)
}

func TestProcessInformationQueryGeneralFallback(t *testing.T) {
	r := newTestResolver(nil)

	resp := r.Process(t.Context(), "hello there", "s1")

	assert.Contains(t, resp.Answer, "satellite data repository")
	assert.Empty(t, resp.Sources)
	assert.Contains(t, resp.Suggestions, "Browse data catalog")
}

func TestProcessSearchFailureFallsBack(t *testing.T) {
	r := New(&fakeSearcher{err: errors.New("index offline")}, &fakeGraph{})

	resp := r.Process(t.Context(), "what is oceansat", "s1")

	assert.Equal(t, 0.0, resp.Confidence)
	assert.Contains(t, resp.Answer, "error processing your query")
	assert.Contains(t, resp.Suggestions, "Try rephrasing your question")

	// Even failed turns are recorded in the session.
	assert.Len(t, r.Context("s1"), 1)
}

func TestSessionContextRing(t *testing.T) {
	r := newTestResolver(nil)
	ctx := t.Context()

	for i := 0; i < 12; i++ {
		r.Process(ctx, fmt.Sprintf("query %d", i), "s1")
	}

	turns := r.Context("s1")
	require.Len(t, turns, 10)
	assert.Equal(t, "query 2", turns[0].Query)
	assert.Equal(t, "query 11", turns[9].Query)

	assert.Nil(t, r.Context("unknown"))
}

func TestSessionSweep(t *testing.T) {
	s := newSessionStore()
	current := time.Now()
	s.now = func() time.Time { return current }

	s.record("old", "q", &Response{})
	current = current.Add(2 * time.Hour)
	s.record("fresh", "q", &Response{})

	assert.Nil(t, s.turns("old"))
	assert.Len(t, s.turns("fresh"), 1)
}
