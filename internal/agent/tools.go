// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pdiddy/citeagent/pkg/types"
)

// Tool names declared to the model.
const (
	ToolSearch   = "search"
	ToolGetEntry = "get_entry"
)

// toolAliases maps names models emit in practice to the declared tools.
var toolAliases = map[string]string{
	ToolSearch:     ToolSearch,
	"search_paper": ToolSearch,
	ToolGetEntry:   ToolGetEntry,
	"get_bibtex":   ToolGetEntry,
}

// Specs returns the fixed tool declarations offered to the model.
func Specs() []types.ToolSpec {
	return []types.ToolSpec{
		{
			Name:        ToolSearch,
			Description: "Search the academic paper index. Returns candidate papers as JSON with their citation keys.",
			Params: []types.ToolParam{
				{Name: "query", Type: types.ParamString, Required: true,
					Description: "Short search query of at most 3 words, e.g. 'WavLM' or 't-SNE visualization'."},
				{Name: "limit", Type: types.ParamInteger,
					Description: "Maximum number of papers to return (default 5)."},
			},
		},
		{
			Name:        ToolGetEntry,
			Description: "Fetch the BibTeX entry for one citation key returned by search. Call once per key.",
			Params: []types.ToolParam{
				{Name: "key", Type: types.ParamString, Required: true,
					Description: "Citation key from a search result, e.g. 'vaswani2017attention'."},
			},
		},
	}
}

// Call is a normalized tool call: a SearchCall or a GetEntryCall.
type Call interface {
	isCall()
}

// SearchCall asks the index for up to Limit papers matching Query.
type SearchCall struct {
	Query string
	Limit int
}

// GetEntryCall asks for the entry of one citation key.
type GetEntryCall struct {
	Key string
}

func (SearchCall) isCall()   {}
func (GetEntryCall) isCall() {}

var (
	errNoQuery = errors.New("No query provided")
	errNoKey   = errors.New("No key provided")
)

// Normalize converts a raw model tool call into canonical calls. A
// get_entry call carrying a batch of keys (a list, or a JSON-encoded list
// string) expands into one GetEntryCall per key, in order. The returned
// error text is meant for the model.
func Normalize(tc types.ToolCall, defaultLimit int) ([]Call, error) {
	switch toolAliases[tc.Name] {
	case ToolSearch:
		query, _ := tc.Args["query"].(string)
		query = strings.TrimSpace(query)
		if query == "" {
			return nil, errNoQuery
		}
		limit, ok := toInt(tc.Args["limit"])
		if !ok || limit <= 0 {
			limit = defaultLimit
		}
		return []Call{SearchCall{Query: query, Limit: limit}}, nil

	case ToolGetEntry:
		keys := entryKeys(tc.Args)
		if len(keys) == 0 {
			return nil, errNoKey
		}
		calls := make([]Call, len(keys))
		for i, k := range keys {
			calls[i] = GetEntryCall{Key: k}
		}
		return calls, nil

	default:
		return nil, fmt.Errorf("Unknown function: %s", tc.Name)
	}
}

// entryKeys collects keys from the argument names models use for them.
func entryKeys(args map[string]any) []string {
	for _, name := range []string{"key", "paper_key", "keys", "paper_keys"} {
		if v, ok := args[name]; ok {
			if keys := keyList(v); len(keys) > 0 {
				return keys
			}
		}
	}
	return nil
}

func keyList(v any) []string {
	var keys []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			keys = append(keys, s)
		}
	}

	switch v := v.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") {
			var list []string
			if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
				for _, s := range list {
					add(s)
				}
				return keys
			}
		}
		add(trimmed)
	case []string:
		for _, s := range v {
			add(s)
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	return keys
}

// toInt accepts the numeric shapes providers decode JSON numbers into.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(math.Round(float64(n))), true
	case float64:
		return int(math.Round(n)), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(math.Round(f)), true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}
