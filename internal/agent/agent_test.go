// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citeagent/internal/bibtex"
	"github.com/pdiddy/citeagent/pkg/types"
)

// scriptedModel replays canned turns and records the transcripts it saw.
type scriptedModel struct {
	turns       []types.Turn
	errAt       int // 1-based call that fails; 0 never
	transcripts [][]types.Turn
}

func (m *scriptedModel) SendTurn(_ context.Context, transcript []types.Turn, tools []types.ToolSpec) (types.Turn, error) {
	m.transcripts = append(m.transcripts, append([]types.Turn(nil), transcript...))
	n := len(m.transcripts)
	if n == m.errAt {
		return types.Turn{}, errors.New("connection reset")
	}
	if n > len(m.turns) {
		return m.turns[len(m.turns)-1], nil
	}
	return m.turns[n-1], nil
}

// stubIndex serves fixed papers per query and counts searches.
type stubIndex struct {
	papers   map[string][]types.PaperRecord
	searches int
}

func (s *stubIndex) Search(_ context.Context, query string, limit, _ int) []types.PaperRecord {
	s.searches++
	p := s.papers[query]
	if len(p) > limit {
		p = p[:limit]
	}
	return p
}

var (
	paperA1 = types.PaperRecord{Title: "Alpha Networks", Authors: []string{"Ann One"}, Year: 2020, DOI: "10.1/a1"}
	paperA2 = types.PaperRecord{Title: "Beta Kernels", Authors: []string{"Bob Two"}, Year: 2021, ArchiveID: "2101.00001"}
)

const (
	keyA1 = "one2020alpha"
	keyA2 = "two2021beta"
)

func newIndex() *stubIndex {
	return &stubIndex{papers: map[string][]types.PaperRecord{
		"alpha": {paperA1},
		"beta":  {paperA2},
	}}
}

func call(id, name string, args map[string]any) types.ToolCall {
	return types.ToolCall{ID: id, Name: name, Args: args}
}

func toolTurn(calls ...types.ToolCall) types.Turn {
	return types.Turn{Role: types.RoleAssistant, Calls: calls}
}

func textTurn(text string) types.Turn {
	return types.Turn{Role: types.RoleAssistant, Text: text, FinishReason: "STOP"}
}

func TestProcess_HappyPath(t *testing.T) {
	model := &scriptedModel{turns: []types.Turn{
		toolTurn(call("c1", "search", map[string]any{"query": "alpha", "limit": float64(3)})),
		toolTurn(call("c2", "get_entry", map[string]any{"key": keyA1})),
		textTurn(`Alpha networks~\cite{one2020alpha} work.`),
	}}
	o := New(model, newIndex(), Options{}, nil)

	res := o.Process(context.Background(), "Alpha networks work.", "")

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, `Alpha networks~\cite{one2020alpha} work.`, res.Text)
	assert.Equal(t, []string{bibtex.RenderEntry(paperA1)}, res.Entries)
	assert.Equal(t, 3, res.Iterations)
	assert.Empty(t, res.MissingKeys)
	assert.NoError(t, res.Err)
	assert.NotEmpty(t, res.SessionID)

	// The seed turn carries the instruction and the text.
	seed := model.transcripts[0][0]
	assert.Equal(t, types.RoleUser, seed.Role)
	assert.Contains(t, seed.Text, "Alpha networks work.")
	assert.Contains(t, seed.Text, ToolGetEntry)

	// The search result was returned to the model with its key.
	second := model.transcripts[1]
	require.Len(t, second, 3)
	assert.Equal(t, types.RoleTool, second[2].Role)
	assert.Equal(t, "c1", second[2].CallID)
	assert.Contains(t, second[2].Text, `"key": "one2020alpha"`)
}

func TestProcess_ToolResultsKeepCallOrder(t *testing.T) {
	model := &scriptedModel{turns: []types.Turn{
		toolTurn(
			call("s1", "search", map[string]any{"query": "beta"}),
			call("s2", "search_paper", map[string]any{"query": "alpha"}),
			call("s3", "nonsense", nil),
		),
		textTurn("done"),
	}}
	o := New(model, newIndex(), Options{}, nil)
	o.Process(context.Background(), "text", "")

	tr := model.transcripts[1]
	require.Len(t, tr, 5)
	assert.Equal(t, []string{"s1", "s2", "s3"}, []string{tr[2].CallID, tr[3].CallID, tr[4].CallID})
	assert.Contains(t, tr[2].Text, keyA2)
	assert.Contains(t, tr[3].Text, keyA1)
	assert.Equal(t, "Error: Unknown function: nonsense", tr[4].Text)
}

func TestProcess_BatchGetEntry(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"list under key", map[string]any{"key": []any{keyA1, keyA2}}},
		{"list under keys", map[string]any{"keys": []any{keyA1, keyA2}}},
		{"JSON string", map[string]any{"keys": `["one2020alpha", "two2021beta"]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &scriptedModel{turns: []types.Turn{
				toolTurn(
					call("s1", "search", map[string]any{"query": "alpha"}),
					call("s2", "search", map[string]any{"query": "beta"}),
				),
				toolTurn(call("g1", "get_entry", tt.args)),
				textTurn(`x~\cite{one2020alpha,two2021beta}`),
			}}
			res := New(model, newIndex(), Options{}, nil).Process(context.Background(), "x", "")

			want := []string{bibtex.RenderEntry(paperA1), bibtex.RenderEntry(paperA2)}
			assert.Equal(t, want, res.Entries)

			tr := model.transcripts[2]
			last := tr[len(tr)-1]
			assert.Equal(t, "g1", last.CallID)
			assert.Equal(t, want[0]+"\n\n"+want[1], last.Text, "one tool result holding both entries")
		})
	}
}

func TestProcess_MalformedCallDegrades(t *testing.T) {
	model := &scriptedModel{turns: []types.Turn{
		toolTurn(
			call("s1", "search", map[string]any{"query": "alpha"}),
			call("g1", "get_entry", map[string]any{"key": keyA1}),
		),
		{Role: types.RoleAssistant, Finish: types.FinishMalformedCall, FinishReason: "MALFORMED_FUNCTION_CALL",
			Text: "partial garbage"},
	}}
	res := New(model, newIndex(), Options{}, nil).Process(context.Background(), "original text", "")

	assert.Equal(t, StateDegradedDone, res.State)
	assert.Equal(t, "original text", res.Text)
	assert.Equal(t, []string{bibtex.RenderEntry(paperA1)}, res.Entries)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, "MALFORMED_FUNCTION_CALL", res.FinishReason)
	assert.NoError(t, res.Err)
}

func TestProcess_TerminalClasses(t *testing.T) {
	for _, fc := range []types.FinishClass{types.FinishSafety, types.FinishRecitation, types.FinishMalformedCall} {
		t.Run(string(fc), func(t *testing.T) {
			model := &scriptedModel{turns: []types.Turn{{Finish: fc}}}
			res := New(model, newIndex(), Options{}, nil).Process(context.Background(), "orig", "")
			assert.Equal(t, StateDegradedDone, res.State)
			assert.Equal(t, "orig", res.Text)
			assert.Empty(t, res.Entries)
		})
	}
}

func TestProcess_ModelChannelErrorKeepsEntries(t *testing.T) {
	model := &scriptedModel{
		turns: []types.Turn{
			toolTurn(call("s1", "search", map[string]any{"query": "beta"})),
			toolTurn(call("g1", "get_entry", map[string]any{"paper_key": keyA2})),
		},
		errAt: 3,
	}
	res := New(model, newIndex(), Options{}, nil).Process(context.Background(), "orig", "")

	assert.Equal(t, StateDegradedDone, res.State)
	assert.Equal(t, "orig", res.Text)
	assert.Equal(t, []string{bibtex.RenderEntry(paperA2)}, res.Entries)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "connection reset")
}

func TestProcess_IterationBound(t *testing.T) {
	// The model never stops calling tools.
	model := &scriptedModel{turns: []types.Turn{
		toolTurn(call("s", "search", map[string]any{"query": "alpha"})),
	}}
	idx := newIndex()
	res := New(model, idx, Options{MaxIterations: 4}, nil).Process(context.Background(), "orig", "")

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 4, res.Iterations)
	assert.Len(t, model.transcripts, 4)
	assert.Equal(t, "orig", res.Text)
	assert.Equal(t, 1, idx.searches, "repeated identical searches hit the cache")
}

func TestProcess_DefaultIterationBound(t *testing.T) {
	model := &scriptedModel{turns: []types.Turn{
		toolTurn(call("s", "search", map[string]any{"query": "alpha"})),
	}}
	res := New(model, newIndex(), Options{}, nil).Process(context.Background(), "orig", "")
	assert.Equal(t, 10, res.Iterations)
}

func TestProcess_UnknownKeyPlaceholderAndDuplicates(t *testing.T) {
	model := &scriptedModel{turns: []types.Turn{
		toolTurn(call("s1", "search", map[string]any{"query": "alpha"})),
		toolTurn(
			call("g1", "get_entry", map[string]any{"key": keyA1}),
			call("g2", "get_entry", map[string]any{"key": keyA1}),
			call("g3", "get_bibtex", map[string]any{"paper_key": "ghost1999none"}),
			call("g4", "get_entry", map[string]any{}),
		),
		textTurn(`t~\cite{one2020alpha,made2023up}`),
	}}
	res := New(model, newIndex(), Options{}, nil).Process(context.Background(), "t", "")

	require.Len(t, res.Entries, 3)
	assert.Equal(t, res.Entries[0], res.Entries[1], "duplicates are preserved")
	assert.True(t, bibtex.IsPlaceholder(res.Entries[2]))
	assert.Equal(t, []string{"made2023up"}, res.MissingKeys)

	tr := model.transcripts[2]
	assert.Equal(t, "Error: No key provided", tr[len(tr)-1].Text)
}

func TestProcess_NoOrphanEntries(t *testing.T) {
	model := &scriptedModel{turns: []types.Turn{
		toolTurn(
			call("s1", "search", map[string]any{"query": "alpha"}),
			call("s2", "search", map[string]any{"query": "beta"}),
		),
		toolTurn(call("g1", "get_entry", map[string]any{"keys": []any{keyA2, "zzz2000none"}})),
		textTurn("done"),
	}}
	res := New(model, newIndex(), Options{}, nil).Process(context.Background(), "t", "")

	requested := map[string]bool{keyA2: true, "zzz2000none": true}
	for _, entry := range res.Entries {
		e, err := bibtex.Parse(entry)
		require.NoError(t, err)
		assert.True(t, requested[e.Key], "entry %s was never requested", e.Key)
	}
}

func TestProcess_EmptyFinalTextKeepsOriginal(t *testing.T) {
	model := &scriptedModel{turns: []types.Turn{textTurn("   ")}}
	res := New(model, newIndex(), Options{}, nil).Process(context.Background(), "orig", "")
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, "orig", res.Text)
}

func TestProcess_DocumentContextInPrompt(t *testing.T) {
	model := &scriptedModel{turns: []types.Turn{textTurn("x")}}
	New(model, newIndex(), Options{}, nil).Process(context.Background(), "x", "A survey of speech models")
	assert.True(t, strings.Contains(model.transcripts[0][0].Text, "Document context: A survey of speech models"))
}

func TestProcess_IterationBoundKeepsLastText(t *testing.T) {
	turn := toolTurn(call("s", "search", map[string]any{"query": "alpha"}))
	turn.Text = `draft with \cite{one2020alpha}`
	model := &scriptedModel{turns: []types.Turn{turn}}
	res := New(model, newIndex(), Options{MaxIterations: 2}, nil).Process(context.Background(), "orig", "")

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, turn.Text, res.Text)
	assert.Equal(t, []string{keyA1}, res.MissingKeys)
}
