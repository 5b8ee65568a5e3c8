// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package paperindex

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citeagent/internal/httputil"
)

func TestReconstructAbstract(t *testing.T) {
	tests := []struct {
		name  string
		index map[string][]int
		want  string
	}{
		{"nil map", nil, ""},
		{"single word", map[string][]int{"hello": {0}}, "hello"},
		{
			"repeated word",
			map[string][]int{"the": {0, 4}, "cat": {1}, "sat": {2}, "on": {3}, "mat": {5}},
			"the cat sat on the mat",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reconstructAbstract(tt.index))
		})
	}
}

const sampleOpenAlexJSON = `{
  "meta": {"count": 3, "per_page": 10, "page": 1},
  "results": [
    {
      "id": "https://openalex.org/W2741809807",
      "title": "Attention Is All You Need",
      "doi": "https://doi.org/10.5555/3295222.3295349",
      "publication_year": 2017,
      "cited_by_count": 95000,
      "authorships": [
        {"author": {"id": "A1", "display_name": "Ashish Vaswani"}},
        {"author": {"id": "A2", "display_name": "Noam Shazeer"}}
      ],
      "abstract_inverted_index": {"We": [0], "propose": [1], "attention": [2]}
    },
    {
      "id": "https://openalex.org/W2963403868",
      "title": "BERT",
      "doi": "https://doi.org/10.48550/arXiv.1810.04805",
      "publication_year": 2018,
      "cited_by_count": 80000,
      "authorships": [{"author": {"display_name": "Jacob Devlin"}}]
    },
    {
      "id": "https://openalex.org/W1",
      "title": "",
      "doi": null,
      "cited_by_count": 4,
      "locations": [{"landing_page_url": "https://arxiv.org/abs/2001.00001"}]
    }
  ]
}`

func TestOpenAlexFetch(t *testing.T) {
	var capturedReq *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedReq = r
		fmt.Fprint(w, sampleOpenAlexJSON)
	}))
	defer ts.Close()

	old := openAlexAPIBase
	openAlexAPIBase = ts.URL
	defer func() { openAlexAPIBase = old }()

	b := &OpenAlexBackend{Client: ts.Client(), Email: "me@example.org", Retry: httputil.Policy{BaseDelay: time.Millisecond}}
	records, err := b.Fetch(context.Background(), "attention", 10)
	require.NoError(t, err)

	q := capturedReq.URL.Query()
	assert.Equal(t, "attention", q.Get("search"))
	assert.Equal(t, "10", q.Get("per_page"))
	assert.Equal(t, "me@example.org", q.Get("mailto"))

	require.Len(t, records, 3)

	assert.Equal(t, "W2741809807", records[0].ID)
	assert.Equal(t, "10.5555/3295222.3295349", records[0].DOI)
	assert.Empty(t, records[0].ArchiveID)
	assert.Equal(t, 95000, records[0].CitationCount)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, records[0].Authors)
	assert.Equal(t, "We propose attention", records[0].Abstract)

	assert.Equal(t, "1810.04805", records[1].ArchiveID, "arXiv DOI becomes the archive id")
	assert.Empty(t, records[1].DOI)

	assert.Equal(t, "Unknown Title", records[2].Title)
	assert.Equal(t, "2001.00001", records[2].ArchiveID)
	assert.Zero(t, records[2].Year)
}

func TestOpenAlexFetchMissingResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"meta":{"count":0}}`)
	}))
	defer ts.Close()

	b := &OpenAlexBackend{Client: ts.Client(), BaseURL: ts.URL}
	records, err := b.Fetch(context.Background(), "nothing", 4)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestOpenAlexFetchCapsPerPage(t *testing.T) {
	var perPage string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		perPage = r.URL.Query().Get("per_page")
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer ts.Close()

	b := &OpenAlexBackend{Client: ts.Client(), BaseURL: ts.URL}
	_, err := b.Fetch(context.Background(), "q", 500)
	require.NoError(t, err)
	assert.Equal(t, "200", perPage)
}

func TestOpenAlexFetchMalformedFieldsDefault(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results":[
			{"id":"https://openalex.org/W9","title":"Graph Networks","publication_year":"2018","cited_by_count":"40",
			 "authorships":[{"author":{"display_name":3}}, 7],"abstract_inverted_index":"none","doi":false},
			"junk"
		]}`)
	}))
	defer ts.Close()

	b := &OpenAlexBackend{Client: ts.Client(), BaseURL: ts.URL}
	records, err := b.Fetch(context.Background(), "graph", 4)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "W9", r.ID)
	assert.Equal(t, "Graph Networks", r.Title)
	assert.Zero(t, r.Year)
	assert.Zero(t, r.CitationCount)
	assert.Equal(t, []string{"Unknown", "Unknown"}, r.Authors)
	assert.Empty(t, r.Abstract)
	assert.Empty(t, r.DOI)
}
