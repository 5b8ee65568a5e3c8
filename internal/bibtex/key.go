// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bibtex derives citation keys from paper records, renders and
// parses BibTeX entries, and scans LaTeX for cite commands.
package bibtex

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pdiddy/citeagent/pkg/types"
)

// FallbackYear is used in keys and placeholders when a paper has no year.
const FallbackYear = 2024

const (
	unknownAuthorKey = "unknown"
	fallbackKeyword  = "paper"
)

// stopWords are skipped when choosing the title keyword.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "on": true, "of": true,
	"for": true, "and": true, "in": true, "to": true, "with": true,
}

// DeriveKey returns the citation key for p: the first author's last name,
// the year, and the first title word that is not a stop word, each
// lowercased and stripped to letters and digits, joined without separators
// (e.g. "vaswani2017attention").
//
// DeriveKey depends only on p. Two different papers can share a key; the
// caller decides what a collision means.
func DeriveKey(p types.PaperRecord) string {
	year := FallbackYear
	if p.HasYear() {
		year = p.Year
	}
	return authorComponent(p.Authors) + strconv.Itoa(year) + titleComponent(p.Title)
}

func authorComponent(authors []string) string {
	if len(authors) == 0 {
		return unknownAuthorKey
	}
	tokens := strings.Fields(authors[0])
	if len(tokens) == 0 {
		return unknownAuthorKey
	}
	last := alnum(strings.ToLower(tokens[len(tokens)-1]))
	if last == "" {
		return unknownAuthorKey
	}
	return last
}

// titleComponent picks the first title word whose lowercase form is not a
// stop word, then strips it. A chosen word that strips to nothing leaves the
// component empty ("The: A Survey" yields "the").
func titleComponent(title string) string {
	for _, w := range strings.Fields(title) {
		word := strings.ToLower(w)
		if stopWords[word] {
			continue
		}
		return alnum(word)
	}
	return fallbackKeyword
}

// alnum drops every rune that is not a letter or digit.
func alnum(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
