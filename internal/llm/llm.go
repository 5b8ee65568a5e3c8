// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm adapts tool-calling model providers to the agent's
// ModelBackend interface. Each adapter converts the provider-independent
// transcript into its provider's message format and classifies the
// provider's finish reasons.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pdiddy/citeagent/internal/agent"
	"github.com/pdiddy/citeagent/pkg/types"
)

// ErrUnknownProvider is returned by New for an unrecognized provider name.
var ErrUnknownProvider = errors.New("unknown model provider")

// Default models per provider.
const (
	DefaultGeminiModel    = "gemini-2.0-flash"
	DefaultUpstageModel   = "solar-pro2"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-sonnet-4-5"

	UpstageBaseURL = "https://api.upstage.ai/v1"
)

const defaultMaxTokens = 8192

// New returns the backend selected by cfg.Provider. The HTTP client is
// shared by adapters that accept one; nil uses the SDK default.
func New(ctx context.Context, cfg types.ModelConfig, httpClient *http.Client, logger *slog.Logger) (agent.ModelBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Provider)
	}

	switch strings.ToLower(cfg.Provider) {
	case types.ProviderGemini, "":
		return NewGemini(ctx, cfg, httpClient, logger)
	case types.ProviderOpenAI:
		return NewOpenAI(cfg, httpClient, logger), nil
	case types.ProviderUpstage:
		if cfg.BaseURL == "" {
			cfg.BaseURL = UpstageBaseURL
		}
		return NewOpenAI(cfg, httpClient, logger), nil
	case types.ProviderAnthropic:
		return NewAnthropic(cfg, httpClient, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// DefaultModel returns the model used for provider when none is
// configured, or "" for an unknown provider.
func DefaultModel(provider string) string {
	switch strings.ToLower(provider) {
	case types.ProviderGemini, "":
		return DefaultGeminiModel
	case types.ProviderOpenAI:
		return DefaultOpenAIModel
	case types.ProviderUpstage:
		return DefaultUpstageModel
	case types.ProviderAnthropic:
		return DefaultAnthropicModel
	default:
		return ""
	}
}

// jsonSchema renders a tool's parameters as a JSON schema object.
func jsonSchema(spec types.ToolSpec) map[string]any {
	props := make(map[string]any, len(spec.Params))
	for _, p := range spec.Params {
		props[p.Name] = map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   requiredParams(spec),
	}
}

func requiredParams(spec types.ToolSpec) []string {
	required := []string{}
	for _, p := range spec.Params {
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return required
}

// toolRun returns the index just past the run of tool turns starting at i.
func toolRun(transcript []types.Turn, i int) int {
	j := i
	for j < len(transcript) && transcript[j].Role == types.RoleTool {
		j++
	}
	return j
}
