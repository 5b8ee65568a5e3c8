// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citeagent/pkg/types"
)

func TestNew(t *testing.T) {
	tests := []struct {
		provider string
		want     any
	}{
		{types.ProviderGemini, &Gemini{}},
		{"", &Gemini{}},
		{types.ProviderOpenAI, &OpenAI{}},
		{types.ProviderUpstage, &OpenAI{}},
		{"Anthropic", &Anthropic{}},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			backend, err := New(context.Background(), types.ModelConfig{Provider: tt.provider, APIKey: "test-key"}, nil, nil)
			require.NoError(t, err)
			assert.IsType(t, tt.want, backend)
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), types.ModelConfig{Provider: "mistral"}, nil, nil)
	require.ErrorIs(t, err, ErrUnknownProvider)
	assert.Contains(t, err.Error(), `"mistral"`)
}

func TestNew_UpstageDefaults(t *testing.T) {
	srv, c := newReplayServer(t, `{"id":"x","object":"chat.completion","created":1,"model":"solar-pro2",
		"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"ok"}}]}`)

	backend, err := New(context.Background(), types.ModelConfig{
		Provider: types.ProviderUpstage, APIKey: "k", BaseURL: srv.URL,
	}, srv.Client(), nil)
	require.NoError(t, err)

	_, err = backend.SendTurn(context.Background(), []types.Turn{{Role: types.RoleUser, Text: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultUpstageModel, c.last(t)["model"])
	assert.Equal(t, float64(defaultMaxTokens), c.last(t)["max_tokens"])
}

func TestJSONSchema(t *testing.T) {
	schema := jsonSchema(sampleTools()[0])
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"query"}, schema["required"])

	props := schema["properties"].(map[string]any)
	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
	assert.Equal(t, "string", props["query"].(map[string]any)["type"])
}

func TestRequiredParams_Empty(t *testing.T) {
	assert.Equal(t, []string{}, requiredParams(types.ToolSpec{Name: "noop"}))
}

func TestDefaultModel(t *testing.T) {
	tests := map[string]string{
		"":                      DefaultGeminiModel,
		types.ProviderGemini:    DefaultGeminiModel,
		types.ProviderOpenAI:    DefaultOpenAIModel,
		"UPSTAGE":               DefaultUpstageModel,
		types.ProviderAnthropic: DefaultAnthropicModel,
		"mistral":               "",
	}
	for provider, want := range tests {
		assert.Equal(t, want, DefaultModel(provider), "provider %q", provider)
	}
}
