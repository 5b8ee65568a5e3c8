// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citeagent/pkg/types"
)

// capture records request paths and decoded bodies for a canned reply.
type capture struct {
	mu     sync.Mutex
	paths  []string
	bodies []map[string]any
}

func (c *capture) last(t *testing.T) map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.bodies, "no request captured")
	return c.bodies[len(c.bodies)-1]
}

func newReplayServer(t *testing.T, reply string) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		c.mu.Lock()
		c.paths = append(c.paths, r.URL.Path)
		c.bodies = append(c.bodies, body)
		c.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

// sampleTranscript is a seed turn, one assistant turn with two calls and
// their two tool results.
func sampleTranscript() []types.Turn {
	return []types.Turn{
		{Role: types.RoleUser, Text: "Add citations: BERT is strong."},
		{Role: types.RoleAssistant, Calls: []types.ToolCall{
			{ID: "c1", Name: "search", Args: map[string]any{"query": "BERT"}},
			{ID: "c2", Name: "search", Args: map[string]any{"query": "transformer"}},
		}},
		{Role: types.RoleTool, CallID: "c1", ToolName: "search", Text: "[]"},
		{Role: types.RoleTool, CallID: "c2", ToolName: "search", Text: "Error: No query provided"},
	}
}

func sampleTools() []types.ToolSpec {
	return []types.ToolSpec{{
		Name:        "search",
		Description: "Search papers.",
		Params: []types.ToolParam{
			{Name: "query", Type: types.ParamString, Required: true, Description: "query"},
			{Name: "limit", Type: types.ParamInteger, Description: "limit"},
		},
	}}
}
