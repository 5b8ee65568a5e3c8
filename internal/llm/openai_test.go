// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citeagent/pkg/types"
)

func newTestOpenAI(t *testing.T, reply string) (*OpenAI, *capture) {
	t.Helper()
	srv, c := newReplayServer(t, reply)
	o := NewOpenAI(types.ModelConfig{
		Provider: types.ProviderOpenAI, Model: "gpt-test", APIKey: "k", BaseURL: srv.URL,
		Temperature: 0.3, MaxTokens: 512,
	}, srv.Client(), slog.Default())
	return o, c
}

const openAIToolReply = `{"id":"cmpl-1","object":"chat.completion","created":1,"model":"gpt-test",
 "choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":null,
  "tool_calls":[
   {"id":"call_1","type":"function","function":{"name":"search","arguments":"{\"query\":\"BERT\",\"limit\":3}"}},
   {"id":"call_2","type":"function","function":{"name":"get_entry","arguments":"{\"key\":[\"a1\",\"a2\"]}"}}
  ]}}]}`

func TestOpenAI_ToolCalls(t *testing.T) {
	o, c := newTestOpenAI(t, openAIToolReply)

	turn, err := o.SendTurn(context.Background(), sampleTranscript(), sampleTools())
	require.NoError(t, err)

	assert.Equal(t, types.FinishNormal, turn.Finish)
	assert.Equal(t, "tool_calls", turn.FinishReason)
	require.Len(t, turn.Calls, 2)
	assert.Equal(t, "call_1", turn.Calls[0].ID)
	assert.Equal(t, "search", turn.Calls[0].Name)
	assert.Equal(t, map[string]any{"query": "BERT", "limit": float64(3)}, turn.Calls[0].Args)
	assert.Equal(t, []any{"a1", "a2"}, turn.Calls[1].Args["key"])

	body := c.last(t)
	assert.Equal(t, "/chat/completions", c.paths[0])
	assert.Equal(t, "gpt-test", body["model"])
	assert.Equal(t, float64(512), body["max_tokens"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 4, "user, assistant, and one message per tool result")
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
	assistant := msgs[1].(map[string]any)
	assert.Equal(t, "assistant", assistant["role"])
	assert.Len(t, assistant["tool_calls"], 2)
	tool := msgs[3].(map[string]any)
	assert.Equal(t, "tool", tool["role"])
	assert.Equal(t, "c2", tool["tool_call_id"])

	tools := body["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "search", fn["name"])
	assert.Equal(t, "object", fn["parameters"].(map[string]any)["type"])
}

func TestOpenAI_FinalText(t *testing.T) {
	o, _ := newTestOpenAI(t, `{"id":"x","object":"chat.completion","created":1,"model":"gpt-test",
		"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"BERT~\\cite{devlin2019bert} is strong."}}]}`)

	turn, err := o.SendTurn(context.Background(), sampleTranscript(), sampleTools())
	require.NoError(t, err)
	assert.Empty(t, turn.Calls)
	assert.Equal(t, `BERT~\cite{devlin2019bert} is strong.`, turn.Text)
	assert.False(t, turn.Finish.Terminal())
}

func TestOpenAI_FinishClasses(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  types.FinishClass
	}{
		{
			"content filter",
			`{"id":"x","object":"chat.completion","created":1,"model":"m",
			 "choices":[{"index":0,"finish_reason":"content_filter","message":{"role":"assistant","content":""}}]}`,
			types.FinishSafety,
		},
		{
			"unparsable arguments",
			`{"id":"x","object":"chat.completion","created":1,"model":"m",
			 "choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":null,
			  "tool_calls":[{"id":"c","type":"function","function":{"name":"search","arguments":"{\"query\":"}}]}}]}`,
			types.FinishMalformedCall,
		},
		{
			"no choices",
			`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`,
			types.FinishSafety,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _ := newTestOpenAI(t, tt.reply)
			turn, err := o.SendTurn(context.Background(), sampleTranscript(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, turn.Finish)
			assert.Empty(t, turn.Calls)
		})
	}
}

func TestOpenAIMessages_ReplaysRawAssistant(t *testing.T) {
	o, c := newTestOpenAI(t, openAIToolReply)
	first, err := o.SendTurn(context.Background(), sampleTranscript()[:1], sampleTools())
	require.NoError(t, err)

	transcript := append(sampleTranscript()[:1], first,
		types.Turn{Role: types.RoleTool, CallID: "call_1", ToolName: "search", Text: "[]"},
		types.Turn{Role: types.RoleTool, CallID: "call_2", ToolName: "get_entry", Text: "@misc{a1}"},
	)
	_, err = o.SendTurn(context.Background(), transcript, sampleTools())
	require.NoError(t, err)

	msgs := c.last(t)["messages"].([]any)
	require.Len(t, msgs, 4)
	calls := msgs[1].(map[string]any)["tool_calls"].([]any)
	assert.Equal(t, "call_1", calls[0].(map[string]any)["id"])
}
