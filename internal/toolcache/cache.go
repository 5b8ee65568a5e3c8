// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package toolcache memoizes the two citation tools for one orchestration
// session: paper searches keyed by (query, limit) and rendered BibTeX
// entries keyed by citation key.
package toolcache

import (
	"context"
	"log/slog"

	"github.com/pdiddy/citeagent/internal/bibtex"
	"github.com/pdiddy/citeagent/pkg/types"
)

// Searcher is the paper index capability the cache delegates to.
type Searcher interface {
	Search(ctx context.Context, query string, limit, minCitations int) []types.PaperRecord
}

type searchKey struct {
	query string
	limit int
}

// Cache holds the search and entry tables of one session. A Cache is not
// safe for concurrent use; each session owns its own.
type Cache struct {
	index        Searcher
	minCitations int
	logger       *slog.Logger

	searches    map[searchKey][]types.PaperRecord
	searchOrder []searchKey

	entries     map[string]string
	renderOrder []string
}

// New returns an empty cache that searches index with the given citation
// threshold. A negative minCitations defers to the index default.
func New(index Searcher, minCitations int, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		index:        index,
		minCitations: minCitations,
		logger:       logger.With("component", "toolcache"),
	}
	c.Clear()
	return c
}

// LookupOrSearch returns the cached result for (query, limit), querying
// the index only on the first request for that pair. Empty results are
// cached too, so a failing query is not repeated within the session.
func (c *Cache) LookupOrSearch(ctx context.Context, query string, limit int) []types.PaperRecord {
	k := searchKey{query: query, limit: limit}
	if papers, ok := c.searches[k]; ok {
		c.logger.Debug("search cache hit", "query", query, "limit", limit)
		return papers
	}

	papers := c.index.Search(ctx, query, limit, c.minCitations)
	c.searches[k] = papers
	c.searchOrder = append(c.searchOrder, k)
	return papers
}

// LookupOrRender returns the entry for key. On a miss it scans every
// cached search, oldest first and in result order, for a paper whose
// derived key matches, then renders and caches the first match. When no
// searched paper matches it returns a placeholder entry and found=false;
// placeholders are not cached, so a later search can still resolve key.
func (c *Cache) LookupOrRender(key string) (entry string, found bool) {
	if entry, ok := c.entries[key]; ok {
		return entry, true
	}

	for _, k := range c.searchOrder {
		for _, p := range c.searches[k] {
			if bibtex.DeriveKey(p) != key {
				continue
			}
			entry = bibtex.RenderEntry(p)
			c.entries[key] = entry
			c.renderOrder = append(c.renderOrder, key)
			return entry, true
		}
	}

	c.logger.Warn("no searched paper matches key, returning placeholder", "key", key)
	return bibtex.NotFoundEntry(key), false
}

// Searches returns the number of distinct (query, limit) pairs cached.
func (c *Cache) Searches() int { return len(c.searches) }

// RenderedKeys returns the keys whose entries were rendered this session,
// in render order.
func (c *Cache) RenderedKeys() []string {
	return append([]string(nil), c.renderOrder...)
}

// Clear drops both tables.
func (c *Cache) Clear() {
	c.searches = make(map[searchKey][]types.PaperRecord)
	c.searchOrder = nil
	c.entries = make(map[string]string)
	c.renderOrder = nil
}
