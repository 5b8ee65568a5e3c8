// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package syncproto

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/pdiddy/citeagent/internal/bibtex"
	"github.com/pdiddy/citeagent/internal/editor"
)

// BibReport describes the outcome of AppendBibliography.
type BibReport struct {
	// Buffer is the bibliography buffer written, or "" if none was found.
	Buffer string

	// Added are the keys appended, in order.
	Added []string

	// Skipped are placeholder entries and keys already in the buffer.
	Skipped []string
}

// AppendBibliography appends entries to the bibliography buffer, one write
// per entry. Each write re-reads the buffer first so entries added since
// the previous write are kept. Placeholder entries and keys the buffer
// already defines are skipped. The main buffer is reselected afterwards.
func (p *Protocol) AppendBibliography(ctx context.Context, entries []string) (BibReport, error) {
	var report BibReport

	pending := make([]string, 0, len(entries))
	queued := make(map[string]bool)
	for _, entry := range entries {
		key := entryKey(entry)
		switch {
		case bibtex.IsPlaceholder(entry):
			p.logger.Warn("skipping placeholder entry", "key", key)
			report.Skipped = append(report.Skipped, key)
		case key != "" && queued[key]:
			report.Skipped = append(report.Skipped, key)
		default:
			queued[key] = true
			pending = append(pending, entry)
		}
	}
	if len(pending) == 0 {
		return report, nil
	}

	buffer, ok := p.SelectBuffer(ctx, p.cfg.BibFile, p.cfg.AlternateBibFiles...)
	if !ok {
		return report, fmt.Errorf("%w: %s", ErrBufferNotFound, p.cfg.BibFile)
	}
	report.Buffer = buffer
	defer p.returnToMain(ctx)

	for i, entry := range pending {
		key := entryKey(entry)

		current, ok := p.surface.GetContent(ctx)
		if !ok {
			return report, fmt.Errorf("reading %s before entry %d: %w", buffer, i+1, editor.ErrNotAvailable)
		}
		if defines(current, key) {
			p.logger.Info("entry already in bibliography", "key", key, "buffer", buffer)
			report.Skipped = append(report.Skipped, key)
			continue
		}

		if err := p.Write(ctx, "", appendEntry(current, entry)); err != nil {
			return report, fmt.Errorf("appending %s to %s: %w", key, buffer, err)
		}
		report.Added = append(report.Added, key)
	}

	p.logger.Info("bibliography updated", "buffer", buffer, "added", len(report.Added), "skipped", len(report.Skipped))
	return report, nil
}

func (p *Protocol) returnToMain(ctx context.Context) {
	if p.cfg.MainFile == "" {
		return
	}
	if _, ok := p.SelectBuffer(ctx, p.cfg.MainFile); !ok {
		p.logger.Warn("could not return to main buffer", "buffer", p.cfg.MainFile)
	}
}

// appendEntry places entry after current, separated by a blank line.
func appendEntry(current, entry string) string {
	trimmed := strings.TrimRightFunc(current, unicode.IsSpace)
	if trimmed == "" {
		return entry + "\n"
	}
	return trimmed + "\n\n" + entry + "\n"
}

func entryKey(entry string) string {
	if keys := bibtex.DefinedKeys(entry); len(keys) > 0 {
		return keys[0]
	}
	return ""
}

func defines(bib, key string) bool {
	if key == "" {
		return false
	}
	for _, k := range bibtex.DefinedKeys(bib) {
		if k == key {
			return true
		}
	}
	return false
}
