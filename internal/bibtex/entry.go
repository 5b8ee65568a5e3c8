// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibtex

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/citeagent/pkg/types"
)

const (
	typeArticle = "article"
	typeMisc    = "misc"

	// archivePrefix tags the journal field of preprint entries.
	archivePrefix = "arXiv preprint arXiv:"

	placeholderTitle = "Paper not found"
)

// RenderEntry renders p as a BibTeX entry keyed by DeriveKey(p).
//
// A paper with an arXiv id or a DOI is an @article, anything else is @misc.
// Fields are emitted in a fixed order: title, author, year, doi, and a
// journal field naming the arXiv preprint. Absent optional fields are
// omitted. The entry has no trailing newline.
func RenderEntry(p types.PaperRecord) string {
	typ := typeMisc
	if p.ArchiveID != "" || p.DOI != "" {
		typ = typeArticle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "@%s{%s,\n", typ, DeriveKey(p))
	writeField(&b, "title", p.Title)
	writeField(&b, "author", strings.Join(p.Authors, " and "))
	if p.HasYear() {
		writeField(&b, "year", strconv.Itoa(p.Year))
	}
	if p.DOI != "" {
		writeField(&b, "doi", p.DOI)
	}
	if p.ArchiveID != "" {
		writeField(&b, "journal", archivePrefix+p.ArchiveID)
	}
	b.WriteString("}")
	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, "  %s={%s},\n", name, escapeBraces(value))
}

// escapeBraces keeps a field value brace balanced. Matched braces are left
// alone since they carry meaning in BibTeX (e.g. "{BERT}"). An unmatched
// brace becomes its LaTeX text command, because BibTeX counts every brace,
// escaped or not.
func escapeBraces(s string) string {
	unmatched := make(map[int]bool)
	var open []int
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			open = append(open, i)
		case '}':
			if len(open) == 0 {
				unmatched[i] = true
				continue
			}
			open = open[:len(open)-1]
		}
	}
	for _, i := range open {
		unmatched[i] = true
	}
	if len(unmatched) == 0 {
		return s
	}

	out := make([]byte, 0, len(s)+16)
	for i := 0; i < len(s); i++ {
		if !unmatched[i] {
			out = append(out, s[i])
			continue
		}
		// A LaTeX-escaped brace is replaced together with its backslash.
		if i > 0 && s[i-1] == '\\' {
			out = out[:len(out)-1]
		}
		if s[i] == '{' {
			out = append(out, `\textbraceleft{}`...)
		} else {
			out = append(out, `\textbraceright{}`...)
		}
	}
	return string(out)
}

// NotFoundEntry returns the placeholder entry used when no searched paper
// derives key.
func NotFoundEntry(key string) string {
	return fmt.Sprintf("@misc{%s,\n  title={%s},\n  year={%d}\n}", key, placeholderTitle, FallbackYear)
}

// IsPlaceholder reports whether entry is a NotFoundEntry.
func IsPlaceholder(entry string) bool {
	e, err := Parse(entry)
	if err != nil {
		return false
	}
	title, _ := e.Get("title")
	return e.Type == typeMisc && title == placeholderTitle
}
