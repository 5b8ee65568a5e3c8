// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package toolcache

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citeagent/internal/bibtex"
	"github.com/pdiddy/citeagent/pkg/types"
)

// countingIndex returns canned results per query and counts calls per
// (query, limit) pair.
type countingIndex struct {
	results map[string][]types.PaperRecord
	calls   map[string]int
	minSeen []int
}

func newCountingIndex(results map[string][]types.PaperRecord) *countingIndex {
	return &countingIndex{results: results, calls: make(map[string]int)}
}

func (c *countingIndex) Search(_ context.Context, query string, limit, minCitations int) []types.PaperRecord {
	c.calls[fmt.Sprintf("%s/%d", query, limit)]++
	c.minSeen = append(c.minSeen, minCitations)
	papers := c.results[query]
	if len(papers) > limit {
		papers = papers[:limit]
	}
	return papers
}

var (
	vaswani = types.PaperRecord{ID: "v", Title: "Attention Is All You Need", Authors: []string{"Ashish Vaswani"}, Year: 2017, ArchiveID: "1706.03762", CitationCount: 90000}
	devlin  = types.PaperRecord{ID: "d", Title: "BERT", Authors: []string{"Jacob Devlin"}, Year: 2019, CitationCount: 80000}
)

func TestLookupOrSearch_AtMostOneQueryPerPair(t *testing.T) {
	idx := newCountingIndex(map[string][]types.PaperRecord{
		"transformers": {vaswani, devlin},
	})
	c := New(idx, 10, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.LookupOrSearch(ctx, "transformers", 5)
		c.LookupOrSearch(ctx, "transformers", 1)
	}

	assert.Equal(t, 1, idx.calls["transformers/5"])
	assert.Equal(t, 1, idx.calls["transformers/1"])
	assert.Equal(t, 2, c.Searches())
	assert.Equal(t, []int{10, 10}, idx.minSeen)
}

func TestLookupOrSearch_EmptyResultCached(t *testing.T) {
	idx := newCountingIndex(nil)
	c := New(idx, 10, nil)

	assert.Empty(t, c.LookupOrSearch(context.Background(), "nothing", 5))
	assert.Empty(t, c.LookupOrSearch(context.Background(), "nothing", 5))
	assert.Equal(t, 1, idx.calls["nothing/5"])
}

func TestLookupOrRender(t *testing.T) {
	idx := newCountingIndex(map[string][]types.PaperRecord{
		"attention": {vaswani},
		"bert":      {devlin},
	})
	c := New(idx, 0, nil)
	ctx := context.Background()
	c.LookupOrSearch(ctx, "attention", 5)
	c.LookupOrSearch(ctx, "bert", 5)

	entry, found := c.LookupOrRender("devlin2019bert")
	require.True(t, found)
	assert.Equal(t, bibtex.RenderEntry(devlin), entry)

	entry, found = c.LookupOrRender("vaswani2017attention")
	require.True(t, found)
	assert.Equal(t, bibtex.RenderEntry(vaswani), entry)

	// Cached entries are returned again without rescanning.
	again, found := c.LookupOrRender("devlin2019bert")
	assert.True(t, found)
	assert.Equal(t, bibtex.RenderEntry(devlin), again)

	assert.Equal(t, []string{"devlin2019bert", "vaswani2017attention"}, c.RenderedKeys())
}

func TestLookupOrRender_UnknownKeyPlaceholder(t *testing.T) {
	c := New(newCountingIndex(nil), 0, nil)

	entry, found := c.LookupOrRender("ghost2020paper")
	assert.False(t, found)
	assert.Equal(t, bibtex.NotFoundEntry("ghost2020paper"), entry)
	assert.Empty(t, c.RenderedKeys(), "placeholders are not cached")
}

func TestLookupOrRender_PlaceholderResolvedByLaterSearch(t *testing.T) {
	idx := newCountingIndex(map[string][]types.PaperRecord{"bert": {devlin}})
	c := New(idx, 0, nil)

	_, found := c.LookupOrRender("devlin2019bert")
	require.False(t, found)

	c.LookupOrSearch(context.Background(), "bert", 3)
	_, found = c.LookupOrRender("devlin2019bert")
	assert.True(t, found)
}

func TestLookupOrRender_CollisionFirstSearchWins(t *testing.T) {
	first := types.PaperRecord{ID: "1", Title: "Graph Networks", Authors: []string{"Ann Lee"}, Year: 2020, DOI: "10.1/first"}
	second := types.PaperRecord{ID: "2", Title: "Graph Kernels", Authors: []string{"Bo Lee"}, Year: 2020, DOI: "10.1/second"}
	require.Equal(t, bibtex.DeriveKey(first), bibtex.DeriveKey(second))

	idx := newCountingIndex(map[string][]types.PaperRecord{
		"networks": {first},
		"kernels":  {second},
	})
	c := New(idx, 0, nil)
	c.LookupOrSearch(context.Background(), "networks", 5)
	c.LookupOrSearch(context.Background(), "kernels", 5)

	entry, found := c.LookupOrRender("lee2020graph")
	require.True(t, found)
	assert.Contains(t, entry, "10.1/first")
}

func TestClear(t *testing.T) {
	idx := newCountingIndex(map[string][]types.PaperRecord{"bert": {devlin}})
	c := New(idx, 0, nil)
	c.LookupOrSearch(context.Background(), "bert", 5)
	c.LookupOrRender("devlin2019bert")

	c.Clear()
	assert.Zero(t, c.Searches())
	assert.Empty(t, c.RenderedKeys())

	c.LookupOrSearch(context.Background(), "bert", 5)
	assert.Equal(t, 2, idx.calls["bert/5"], "cleared cache queries again")
}
