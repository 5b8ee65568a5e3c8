// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package paperindex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/citeagent/internal/httputil"
	"github.com/pdiddy/citeagent/pkg/types"
)

// openAlexAPIBase is the OpenAlex Works endpoint. Declared as a var so
// tests can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works"

// arxivDOIPrefix marks DOIs that DataCite mints for arXiv preprints.
const arxivDOIPrefix = "10.48550/arxiv."

// OpenAlexBackend queries the OpenAlex Works search endpoint.
type OpenAlexBackend struct {
	Client *http.Client
	// Email is sent as mailto parameter for polite pool access.
	Email     string
	UserAgent string

	// BaseURL overrides openAlexAPIBase when set.
	BaseURL string

	Retry httputil.Policy
}

// Name returns the backend identifier.
func (b *OpenAlexBackend) Name() string { return "openalex" }

// Fetch queries /works?search= for n candidates.
func (b *OpenAlexBackend) Fetch(ctx context.Context, query string, n int) ([]types.PaperRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty OpenAlex query")
	}
	if n > 200 {
		n = 200
	}

	params := url.Values{
		"search":   {query},
		"per_page": {strconv.Itoa(n)},
		"page":     {"1"},
	}
	if b.Email != "" {
		params.Set("mailto", b.Email)
	}

	base := openAlexAPIBase
	if b.BaseURL != "" {
		base = b.BaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, b.Retry)
	if err != nil {
		return nil, fmt.Errorf("%w: OpenAlex API request: %w", ErrTransport, err)
	}
	body, err := readBody(resp, "OpenAlex")
	if err != nil {
		return nil, err
	}

	var oar openAlexResponse
	if err := json.Unmarshal(body, &oar); err != nil {
		return nil, fmt.Errorf("%w: parsing OpenAlex response: %w", ErrTransport, err)
	}
	if oar.Results == nil {
		return nil, nil
	}

	records := make([]types.PaperRecord, 0, len(*oar.Results))
	for _, raw := range *oar.Results {
		work, err := decodeObject(raw)
		if err != nil {
			continue
		}
		records = append(records, openAlexRecord(work))
	}
	return records, nil
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

type openAlexResponse struct {
	Results *[]json.RawMessage `json:"results"`
}

// openAlexRecord converts an OpenAlex work into a PaperRecord. Absent,
// null, or mistyped fields take their defaults.
func openAlexRecord(w jsonObject) types.PaperRecord {
	r := types.PaperRecord{
		ID:            strings.TrimPrefix(w.String("id"), "https://openalex.org/"),
		Title:         w.String("title"),
		Year:          w.Int("publication_year"),
		CitationCount: w.Int("cited_by_count"),
		Source:        "openalex",
	}
	if r.Title == "" {
		r.Title = unknownTitle
	}
	var inverted map[string][]int
	if raw, ok := w["abstract_inverted_index"]; ok && json.Unmarshal(raw, &inverted) == nil {
		r.Abstract = reconstructAbstract(inverted)
	}
	for _, raw := range w.Array("authorships") {
		name := ""
		if a, err := decodeObject(raw); err == nil {
			name = a.Object("author").String("display_name")
		}
		if name == "" {
			name = unknownAuthor
		}
		r.Authors = append(r.Authors, name)
	}

	doi := strings.TrimPrefix(w.String("doi"), "https://doi.org/")
	if strings.HasPrefix(strings.ToLower(doi), arxivDOIPrefix) {
		r.ArchiveID = doi[len(arxivDOIPrefix):]
	} else {
		r.DOI = doi
	}
	if r.ArchiveID == "" {
		r.ArchiveID = arxivFromLocations(w.Array("locations"))
	}
	return r
}

// arxivFromLocations returns the arXiv id from an arxiv.org landing page.
func arxivFromLocations(locs []json.RawMessage) string {
	for _, raw := range locs {
		loc, err := decodeObject(raw)
		if err != nil {
			continue
		}
		u, err := url.Parse(loc.String("landing_page_url"))
		if err != nil || !strings.HasSuffix(u.Host, "arxiv.org") {
			continue
		}
		if id, ok := strings.CutPrefix(u.Path, "/abs/"); ok && id != "" {
			return id
		}
	}
	return ""
}
