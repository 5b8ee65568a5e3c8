// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibtex

import (
	"regexp"
	"strings"
)

// citeRe matches \cite, \citep, \citet and starred forms with optional
// bracketed arguments, e.g. \citep[p.~3]{a,b}.
var citeRe = regexp.MustCompile(`\\cite[pt]?\*?(?:\[[^\]]*\])*\{([^}]*)\}`)

// entryKeyRe matches the head of an entry, e.g. "@article{vaswani2017attention,".
var entryKeyRe = regexp.MustCompile(`@([A-Za-z]+)\s*[{(]\s*([^,\s{}()]+)\s*,`)

// entryHeadRe matches an '@type' at the start of a line.
var entryHeadRe = regexp.MustCompile(`(?m)^[ \t]*@([A-Za-z]+)`)

// CitedKeys returns the keys referenced by cite commands in text, in
// first-seen order without duplicates.
func CitedKeys(text string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, m := range citeRe.FindAllStringSubmatch(text, -1) {
		for _, k := range strings.Split(m[1], ",") {
			k = strings.TrimSpace(k)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// DefinedKeys returns the keys of the entries defined in a .bib document,
// in order. It tolerates content the entry parser rejects, such as
// @comment blocks or half-edited entries.
func DefinedKeys(bib string) []string {
	var keys []string
	for _, m := range entryKeyRe.FindAllStringSubmatch(bib, -1) {
		switch strings.ToLower(m[1]) {
		case "comment", "string", "preamble":
			continue
		}
		keys = append(keys, m[2])
	}
	return keys
}

// Split cuts a .bib document into its entries' source text, in order.
// An entry starts at an '@' that begins a line. Comment, string and
// preamble blocks are dropped.
func Split(bib string) []string {
	var entries []string
	heads := entryHeadRe.FindAllStringSubmatchIndex(bib, -1)
	for i, m := range heads {
		end := len(bib)
		if i+1 < len(heads) {
			end = heads[i+1][0]
		}
		switch strings.ToLower(bib[m[2]:m[3]]) {
		case "comment", "string", "preamble":
			continue
		}
		if e := strings.TrimSpace(bib[m[0]:end]); e != "" {
			entries = append(entries, e)
		}
	}
	return entries
}
