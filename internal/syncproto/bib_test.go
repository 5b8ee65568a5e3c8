// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package syncproto

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citeagent/internal/bibtex"
	"github.com/pdiddy/citeagent/pkg/types"
)

var (
	attention = types.PaperRecord{Title: "Attention Is All You Need", Authors: []string{"Ashish Vaswani"}, Year: 2017, ArchiveID: "1706.03762"}
	bert      = types.PaperRecord{Title: "BERT: Pre-training of Deep Bidirectional Transformers", Authors: []string{"Jacob Devlin"}, Year: 2019, DOI: "10.18653/v1/N19-1423"}
)

const existingBib = "@article{old2020thing,\n  title={Old Thing},\n  year={2020},\n}\n\n\n"

func TestAppendBibliography(t *testing.T) {
	page := newFakePage(map[string]string{
		"main.tex":       "\\cite{x}",
		"references.bib": existingBib,
	}, "main.tex")
	p := New(page, testConfig(), slog.Default())

	eAttention := bibtex.RenderEntry(attention)
	eBert := bibtex.RenderEntry(bert)
	eOld := "@misc{old2020thing,\n  title={Old Thing},\n}"
	entries := []string{eAttention, bibtex.NotFoundEntry("ghost2024none"), eBert, eAttention, eOld}

	report, err := p.AppendBibliography(context.Background(), entries)
	require.NoError(t, err)

	keyAttention, keyBert := bibtex.DeriveKey(attention), bibtex.DeriveKey(bert)
	assert.Equal(t, "references.bib", report.Buffer)
	assert.Equal(t, []string{keyAttention, keyBert}, report.Added)
	assert.Equal(t, []string{"ghost2024none", keyAttention, "old2020thing"}, report.Skipped)

	want := "@article{old2020thing,\n  title={Old Thing},\n  year={2020},\n}" +
		"\n\n" + eAttention + "\n" +
		"\n" + eBert + "\n"
	assert.Equal(t, want, page.buffers["references.bib"])
	assert.Equal(t, "main.tex", page.active, "main buffer is reselected")
	assert.Equal(t, 2, page.count("materialize"), "one write per added entry")
}

func TestAppendBibliography_RereadsBeforeEachEntry(t *testing.T) {
	page := newFakePage(map[string]string{"main.tex": "", "mybib.bib": ""}, "main.tex")
	p := New(page, testConfig(), slog.Default())

	_, err := p.AppendBibliography(context.Background(), []string{bibtex.RenderEntry(attention), bibtex.RenderEntry(bert)})
	require.NoError(t, err)

	gets := 0
	for _, op := range page.ops {
		switch op {
		case "get":
			gets++
		case "init":
			assert.Positive(t, gets, "content is read before each write")
			gets = 0
		}
	}
	assert.Equal(t, bibtex.RenderEntry(attention)+"\n\n"+bibtex.RenderEntry(bert)+"\n", page.buffers["mybib.bib"])
}

func TestAppendBibliography_NothingToAdd(t *testing.T) {
	page := newFakePage(map[string]string{"main.tex": ""}, "main.tex")
	p := New(page, testConfig(), slog.Default())

	report, err := p.AppendBibliography(context.Background(), []string{bibtex.NotFoundEntry("a2024b")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a2024b"}, report.Skipped)
	assert.Empty(t, page.ops, "no editor commands are issued")
}

func TestAppendBibliography_NoBibBuffer(t *testing.T) {
	page := newFakePage(map[string]string{"main.tex": ""}, "main.tex")
	p := New(page, testConfig(), slog.Default())

	report, err := p.AppendBibliography(context.Background(), []string{bibtex.RenderEntry(bert)})
	require.ErrorIs(t, err, ErrBufferNotFound)
	assert.Empty(t, report.Added)
	assert.Empty(t, report.Buffer)
}

func TestAppendBibliography_WriteFailureStops(t *testing.T) {
	page := newFakePage(map[string]string{"main.tex": "", "mybib.bib": existingBib}, "main.tex")
	page.materializeReply = "error: dispatch failed"
	p := New(page, testConfig(), slog.Default())

	report, err := p.AppendBibliography(context.Background(), []string{bibtex.RenderEntry(attention), bibtex.RenderEntry(bert)})
	require.ErrorIs(t, err, ErrMaterialize)
	assert.Empty(t, report.Added)
	assert.Equal(t, existingBib, page.buffers["mybib.bib"])
	assert.Equal(t, "main.tex", page.active)
}

func TestAppendEntry(t *testing.T) {
	assert.Equal(t, "@misc{a,\n}\n", appendEntry("", "@misc{a,\n}"))
	assert.Equal(t, "@misc{a,\n}\n", appendEntry(" \n\t", "@misc{a,\n}"))
	assert.Equal(t, "x\n\n@misc{a,\n}\n", appendEntry("x\n\n\n", "@misc{a,\n}"))
}
