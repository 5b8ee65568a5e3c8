// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package paperindex

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/citeagent/pkg/types"
)

// FormatTable writes records as a human-readable table to w.
func FormatTable(records []types.PaperRecord, w io.Writer) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %-9s  %s\n",
		"Rank", "Title", "Authors", "Year", "Citations", "ID")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for i, r := range records {
		year := ""
		if r.HasYear() {
			year = fmt.Sprintf("%d", r.Year)
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %-9d  %s\n",
			i+1, truncate(r.Title, 60), formatAuthors(r.Authors), year, r.CitationCount, identifier(r))
	}

	fmt.Fprintf(w, "\n%d results\n", len(records))
}

// FormatJSON writes records as indented JSON to w.
func FormatJSON(records []types.PaperRecord, w io.Writer) error {
	if records == nil {
		records = []types.PaperRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// identifier prefers the arXiv id, then the DOI, then the index id.
func identifier(r types.PaperRecord) string {
	switch {
	case r.ArchiveID != "":
		return "arXiv:" + r.ArchiveID
	case r.DOI != "":
		return r.DOI
	default:
		return r.ID
	}
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 14) + " et al."
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
