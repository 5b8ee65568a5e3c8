// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package paperindex queries academic paper indexes and normalizes their
// results into PaperRecords. A Client wraps one Backend and applies the
// citation-count filter; it never fails a search, it returns an empty list
// and logs why.
package paperindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/pdiddy/citeagent/internal/httputil"
	"github.com/pdiddy/citeagent/pkg/types"
)

// Failure classes reported by backends. Client.Search logs them and
// returns an empty result.
var (
	ErrRateLimited = errors.New("rate limited")
	ErrTransport   = errors.New("index unavailable")
)

const (
	unknownTitle  = "Unknown Title"
	unknownAuthor = "Unknown"
)

// Backend fetches raw candidates from a single paper index.
type Backend interface {
	// Name returns the backend identifier.
	Name() string

	// Fetch returns up to n candidates in index order, without filtering.
	// A successful response that carries no result list yields (nil, nil).
	Fetch(ctx context.Context, query string, n int) ([]types.PaperRecord, error)
}

// Client is the paper index client used by the tool cache and the CLI.
type Client struct {
	backend Backend
	cfg     types.IndexConfig
	logger  *slog.Logger
}

// NewClient wraps backend with the filter defaults from cfg.
func NewClient(backend Backend, cfg types.IndexConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		backend: backend,
		cfg:     cfg,
		logger:  logger.With("component", "paperindex", "backend", backend.Name()),
	}
}

// Search returns at most limit records whose citation count is at least
// minCitations, in the order the index returned them. It asks the backend
// for limit*2 candidates to leave room for filtering.
//
// A non-positive limit uses the configured default limit; a negative
// minCitations uses the configured minimum. Failures never surface as
// errors: rate-limit exhaustion, transport exhaustion, and empty responses
// all yield an empty list and are distinguished in the log.
func (c *Client) Search(ctx context.Context, query string, limit, minCitations int) []types.PaperRecord {
	if limit <= 0 {
		limit = c.cfg.DefaultLimit
		if limit <= 0 {
			limit = 5
		}
	}
	if minCitations < 0 {
		minCitations = c.cfg.MinCitations
	}

	candidates, err := c.backend.Fetch(ctx, query, limit*2)
	if err != nil {
		switch {
		case errors.Is(err, ErrRateLimited):
			c.logger.Warn("rate limit exceeded, returning no results", "query", query, "error", err)
		case errors.Is(err, ErrTransport):
			c.logger.Warn("index unreachable, returning no results", "query", query, "error", err)
		default:
			c.logger.Warn("search failed, returning no results", "query", query, "error", err)
		}
		return nil
	}
	if len(candidates) == 0 {
		c.logger.Info("no results found", "query", query)
		return nil
	}

	papers := Filter(candidates, limit, minCitations)
	c.logger.Debug("search complete", "query", query,
		"candidates", len(candidates), "kept", len(papers))
	return papers
}

// Filter keeps the first limit candidates with at least minCitations
// citations, preserving their order.
func Filter(candidates []types.PaperRecord, limit, minCitations int) []types.PaperRecord {
	var kept []types.PaperRecord
	for _, p := range candidates {
		if len(kept) >= limit {
			break
		}
		if p.CitationCount < minCitations {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// NewBackend builds the backend named by cfg.Backend.
func NewBackend(cfg types.IndexConfig, logger *slog.Logger) (Backend, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	policy := httputil.Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.RetryDelay,
		Logger:      logger,
	}

	switch cfg.Backend {
	case "", "semantic_scholar":
		return &SemanticScholarBackend{
			Client:    client,
			APIKey:    cfg.APIKey,
			UserAgent: cfg.UserAgent,
			BaseURL:   cfg.BaseURL,
			Retry:     policy,
		}, nil
	case "openalex":
		b := &OpenAlexBackend{
			Client:    client,
			Email:     cfg.Email,
			UserAgent: cfg.UserAgent,
			Retry:     policy,
		}
		// The shared base_url default points at Semantic Scholar.
		if cfg.BaseURL != "" && cfg.BaseURL != types.DefaultConfig().Index.BaseURL {
			b.BaseURL = cfg.BaseURL
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

// readBody classifies the response status and returns the body of a 2xx
// response. The body is always closed.
func readBody(resp *http.Response, api string) ([]byte, error) {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s API returned HTTP %d", ErrRateLimited, api, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s API returned HTTP %d", ErrTransport, api, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s response: %w", ErrTransport, api, err)
	}
	return body, nil
}
