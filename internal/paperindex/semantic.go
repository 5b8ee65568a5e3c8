// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package paperindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/citeagent/internal/httputil"
	"github.com/pdiddy/citeagent/pkg/types"
)

// semanticAPIBase is the Semantic Scholar Graph API root. Declared as a var
// so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1"

const semanticFields = "title,authors,year,citationCount,paperId,externalIds,abstract"

// SemanticScholarBackend queries the Semantic Scholar paper search endpoint.
type SemanticScholarBackend struct {
	Client    *http.Client
	APIKey    string
	UserAgent string

	// BaseURL overrides semanticAPIBase when set.
	BaseURL string

	Retry httputil.Policy
}

// Name returns the backend identifier.
func (b *SemanticScholarBackend) Name() string { return "semantic_scholar" }

func (b *SemanticScholarBackend) base() string {
	if b.BaseURL != "" {
		return strings.TrimSuffix(b.BaseURL, "/")
	}
	return semanticAPIBase
}

// Fetch queries /paper/search for n candidates.
func (b *SemanticScholarBackend) Fetch(ctx context.Context, query string, n int) ([]types.PaperRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}

	params := url.Values{
		"query":  {query},
		"limit":  {strconv.Itoa(n)},
		"fields": {semanticFields},
	}
	body, err := b.get(ctx, b.base()+"/paper/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var sr semanticResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("%w: parsing Semantic Scholar response: %w", ErrTransport, err)
	}
	if sr.Data == nil {
		return nil, nil
	}

	records := make([]types.PaperRecord, 0, len(*sr.Data))
	for i, raw := range *sr.Data {
		paper, err := decodeObject(raw)
		if err != nil {
			b.logger().Warn("skipping malformed record", "position", i, "error", err)
			continue
		}
		records = append(records, semanticRecord(paper))
	}
	return records, nil
}

// GetPaper looks up a single paper by Semantic Scholar identifier.
func (b *SemanticScholarBackend) GetPaper(ctx context.Context, id string) (types.PaperRecord, error) {
	if strings.TrimSpace(id) == "" {
		return types.PaperRecord{}, fmt.Errorf("empty paper id")
	}
	params := url.Values{"fields": {semanticFields}}
	body, err := b.get(ctx, b.base()+"/paper/"+url.PathEscape(id)+"?"+params.Encode())
	if err != nil {
		return types.PaperRecord{}, err
	}

	paper, err := decodeObject(body)
	if err != nil {
		return types.PaperRecord{}, fmt.Errorf("%w: parsing Semantic Scholar paper: %w", ErrTransport, err)
	}
	return semanticRecord(paper), nil
}

func (b *SemanticScholarBackend) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}
	if b.APIKey != "" {
		req.Header.Set("x-api-key", b.APIKey)
	}

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, b.Retry)
	if err != nil {
		return nil, fmt.Errorf("%w: Semantic Scholar API request: %w", ErrTransport, err)
	}
	return readBody(resp, "Semantic Scholar")
}

func (b *SemanticScholarBackend) logger() *slog.Logger {
	if b.Retry.Logger != nil {
		return b.Retry.Logger
	}
	return slog.Default()
}

// semanticResponse is the /paper/search envelope. Data is a pointer so a
// response without the field can be told apart from an empty list, and
// records stay raw so each one is decoded on its own.
type semanticResponse struct {
	Total  int                `json:"total"`
	Offset int                `json:"offset"`
	Data   *[]json.RawMessage `json:"data"`
}

// semanticRecord converts an API paper into a PaperRecord. Absent, null, or
// mistyped fields take their defaults.
func semanticRecord(p jsonObject) types.PaperRecord {
	ids := p.Object("externalIds")
	r := types.PaperRecord{
		ID:            p.String("paperId"),
		Title:         p.String("title"),
		Abstract:      p.String("abstract"),
		Year:          p.Int("year"),
		CitationCount: p.Int("citationCount"),
		DOI:           ids.String("DOI"),
		ArchiveID:     ids.String("ArXiv"),
		Source:        "semantic_scholar",
	}
	if r.Title == "" {
		r.Title = unknownTitle
	}
	for _, raw := range p.Array("authors") {
		name := unknownAuthor
		if a, err := decodeObject(raw); err == nil && strings.TrimSpace(a.String("name")) != "" {
			name = a.String("name")
		}
		r.Authors = append(r.Authors, name)
	}
	return r
}
