// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/pdiddy/citeagent/internal/bibtex"
	"github.com/pdiddy/citeagent/pkg/types"
)

const (
	maxResultAuthors  = 3
	maxAbstractLength = 200
)

// searchHit is the per-paper shape returned to the model by the search tool.
type searchHit struct {
	Key       string   `json:"key"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Year      *int     `json:"year"`
	Citations int      `json:"citations"`
	Abstract  string   `json:"abstract"`
}

// formatSearchResult renders papers for the model. Each hit carries the
// citation key the model must pass to get_entry.
func formatSearchResult(query string, papers []types.PaperRecord) string {
	if len(papers) == 0 {
		return fmt.Sprintf("No papers found for query: %s", query)
	}

	hits := make([]searchHit, len(papers))
	for i, p := range papers {
		authors := p.Authors
		if len(authors) > maxResultAuthors {
			authors = authors[:maxResultAuthors]
		}
		if authors == nil {
			authors = []string{}
		}
		h := searchHit{
			Key:       bibtex.DeriveKey(p),
			Title:     p.Title,
			Authors:   authors,
			Citations: p.CitationCount,
			Abstract:  clip(p.Abstract, maxAbstractLength),
		}
		if p.HasYear() {
			year := p.Year
			h.Year = &year
		}
		hits[i] = h
	}

	out, err := json.MarshalIndent(hits, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error: encoding search results: %v", err)
	}
	return string(out)
}

// clip shortens s to max runes, marking the cut with "...".
func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}
