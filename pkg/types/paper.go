// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the citeagent pipeline:
// paper records returned by the index, transcript turns exchanged with a
// model backend, archived run records, and configuration.
package types

// PaperRecord is one paper as normalized by the paper index client. Records
// are values; nothing mutates a record after the index client builds it.
type PaperRecord struct {
	// ID is the index-specific paper identifier (e.g. a Semantic Scholar paperId).
	ID string `json:"id" yaml:"id"`

	// Title is the paper title, or "Unknown Title" when the index omitted it.
	Title string `json:"title" yaml:"title"`

	// Authors lists author display names in index order.
	Authors []string `json:"authors" yaml:"authors"`

	// Year is the publication year; zero when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// CitationCount is the number of citing papers reported by the index.
	CitationCount int `json:"citation_count" yaml:"citation_count"`

	// DOI is the digital object identifier, empty when absent.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// ArchiveID is the arXiv identifier, empty when absent.
	ArchiveID string `json:"archive_id,omitempty" yaml:"archive_id,omitempty"`

	// Abstract is the paper abstract, empty when absent.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Source names the index backend that produced the record.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// HasYear reports whether the index supplied a publication year.
func (p PaperRecord) HasYear() bool { return p.Year > 0 }
