// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/pdiddy/citeagent/pkg/types"
)

// OpenAI is a ModelBackend for OpenAI-compatible chat completion APIs,
// including Upstage Solar.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int64
	logger      *slog.Logger
}

// NewOpenAI creates an OpenAI-compatible backend.
func NewOpenAI(cfg types.ModelConfig, httpClient *http.Client, logger *slog.Logger) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client := openai.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	provider := cfg.Provider
	if provider == "" {
		provider = types.ProviderOpenAI
	}
	return &OpenAI{
		client:      &client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   int64(cfg.MaxTokens),
		logger:      logger.With("component", "llm", "provider", provider),
	}
}

// SendTurn implements agent.ModelBackend.
func (o *OpenAI) SendTurn(ctx context.Context, transcript []types.Turn, tools []types.ToolSpec) (types.Turn, error) {
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(o.model),
		Messages:    openAIMessages(transcript),
		Tools:       openAITools(tools),
		Temperature: openai.Float(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(o.maxTokens)
	}

	o.logger.Debug("chat completion", "model", o.model, "turns", len(transcript))
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return types.Turn{}, fmt.Errorf("openai chat completion: %w", err)
	}
	return openAITurn(resp), nil
}

func openAITools(specs []types.ToolSpec) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, len(specs))
	for i, spec := range specs {
		result[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  shared.FunctionParameters(jsonSchema(spec)),
			},
		}
	}
	return result
}

func openAIMessages(transcript []types.Turn) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript))
	for _, t := range transcript {
		switch t.Role {
		case types.RoleTool:
			result = append(result, openai.ToolMessage(t.Text, t.CallID))

		case types.RoleAssistant:
			if raw, ok := t.Raw.(openai.ChatCompletionMessage); ok {
				result = append(result, raw.ToParam())
				continue
			}
			msg := openai.ChatCompletionAssistantMessageParam{}
			if t.Text != "" {
				msg.Content.OfString = openai.String(t.Text)
			}
			for _, c := range t.Calls {
				args, _ := json.Marshal(c.Args)
				msg.ToolCalls = append(msg.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: c.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      c.Name,
						Arguments: string(args),
					},
				})
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: &msg})

		default:
			result = append(result, openai.UserMessage(t.Text))
		}
	}
	return result
}

// openAITurn converts a completion into an assistant turn. Tool calls whose
// arguments are not a JSON object make the whole turn a malformed call.
func openAITurn(resp *openai.ChatCompletion) types.Turn {
	turn := types.Turn{Role: types.RoleAssistant}
	if resp == nil || len(resp.Choices) == 0 {
		turn.Finish = types.FinishSafety
		turn.FinishReason = "no_choices"
		return turn
	}

	choice := resp.Choices[0]
	turn.FinishReason = choice.FinishReason
	turn.Text = choice.Message.Content
	turn.Raw = choice.Message
	if choice.FinishReason == "content_filter" || choice.Message.Refusal != "" {
		turn.Finish = types.FinishSafety
		return turn
	}

	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				turn.Calls = nil
				turn.Finish = types.FinishMalformedCall
				return turn
			}
		}
		turn.Calls = append(turn.Calls, types.ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args})
	}
	return turn
}
