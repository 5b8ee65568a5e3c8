// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pdiddy/citeagent/pkg/types"
)

// Anthropic is a ModelBackend backed by the Anthropic messages API.
type Anthropic struct {
	client      *anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
	logger      *slog.Logger
}

// NewAnthropic creates an Anthropic backend.
func NewAnthropic(cfg types.ModelConfig, httpClient *http.Client, logger *slog.Logger) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Anthropic{
		client:      &client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		logger:      logger.With("component", "llm", "provider", types.ProviderAnthropic),
	}
}

// SendTurn implements agent.ModelBackend.
func (a *Anthropic) SendTurn(ctx context.Context, transcript []types.Turn, tools []types.ToolSpec) (types.Turn, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Messages:    anthropicMessages(transcript),
		Tools:       anthropicTools(tools),
		Temperature: anthropic.Float(a.temperature),
	}

	a.logger.Debug("create message", "model", a.model, "turns", len(transcript))
	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return types.Turn{}, fmt.Errorf("anthropic message: %w", err)
	}
	return anthropicTurn(msg), nil
}

func anthropicTools(specs []types.ToolSpec) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(specs))
	for i, spec := range specs {
		schema := jsonSchema(spec)
		result[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema["properties"],
					Required:   requiredParams(spec),
				},
			},
		}
	}
	return result
}

// anthropicMessages converts a transcript. Consecutive tool turns become
// one user message of tool_result blocks.
func anthropicMessages(transcript []types.Turn) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(transcript))
	for i := 0; i < len(transcript); {
		t := transcript[i]
		switch t.Role {
		case types.RoleTool:
			end := toolRun(transcript, i)
			blocks := make([]anthropic.ContentBlockParamUnion, 0, end-i)
			for _, r := range transcript[i:end] {
				isErr := strings.HasPrefix(r.Text, "Error:")
				blocks = append(blocks, anthropic.NewToolResultBlock(r.CallID, r.Text, isErr))
			}
			result = append(result, anthropic.NewUserMessage(blocks...))
			i = end
			continue

		case types.RoleAssistant:
			if raw, ok := t.Raw.(*anthropic.Message); ok && raw != nil {
				result = append(result, raw.ToParam())
				break
			}
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(t.Calls)+1)
			if t.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(t.Text))
			}
			for _, c := range t.Calls {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{ID: c.ID, Name: c.Name, Input: c.Args},
				})
			}
			result = append(result, anthropic.NewAssistantMessage(blocks...))

		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Text)))
		}
		i++
	}
	return result
}

// anthropicTurn converts a message into an assistant turn.
func anthropicTurn(msg *anthropic.Message) types.Turn {
	turn := types.Turn{Role: types.RoleAssistant, Raw: msg}
	turn.FinishReason = string(msg.StopReason)
	if msg.StopReason == anthropic.StopReasonRefusal {
		turn.Finish = types.FinishSafety
		return turn
	}

	var text strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			args := map[string]any{}
			if len(b.Input) > 0 {
				if err := json.Unmarshal(b.Input, &args); err != nil {
					turn.Calls = nil
					turn.Finish = types.FinishMalformedCall
					return turn
				}
			}
			turn.Calls = append(turn.Calls, types.ToolCall{ID: b.ID, Name: b.Name, Args: args})
		}
	}
	turn.Text = text.String()
	return turn
}
