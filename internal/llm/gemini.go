// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/pdiddy/citeagent/pkg/types"
)

// Gemini is a ModelBackend backed by the Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	logger      *slog.Logger
}

// NewGemini creates a Gemini backend. cfg.BaseURL overrides the API
// endpoint.
func NewGemini(ctx context.Context, cfg types.ModelConfig, httpClient *http.Client, logger *slog.Logger) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		client:      client,
		model:       model,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens),
		logger:      logger.With("component", "llm", "provider", types.ProviderGemini),
	}, nil
}

// SendTurn implements agent.ModelBackend.
func (g *Gemini) SendTurn(ctx context.Context, transcript []types.Turn, tools []types.ToolSpec) (types.Turn, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: g.maxTokens,
		Tools:           geminiTools(tools),
	}

	g.logger.Debug("generate content", "model", g.model, "turns", len(transcript))
	resp, err := g.client.Models.GenerateContent(ctx, g.model, geminiContents(transcript), config)
	if err != nil {
		return types.Turn{}, fmt.Errorf("gemini generate: %w", err)
	}
	return geminiTurn(resp), nil
}

func geminiTools(specs []types.ToolSpec) []*genai.Tool {
	if len(specs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(specs))
	for i, spec := range specs {
		props := make(map[string]*genai.Schema, len(spec.Params))
		for _, p := range spec.Params {
			props[p.Name] = &genai.Schema{
				Type:        geminiType(p.Type),
				Description: p.Description,
			}
		}
		decls[i] = &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   requiredParams(spec),
			},
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func geminiType(t types.ParamType) genai.Type {
	if t == types.ParamInteger {
		return genai.TypeInteger
	}
	return genai.TypeString
}

// geminiContents converts a transcript. Consecutive tool turns become one
// user content holding all function responses.
func geminiContents(transcript []types.Turn) []*genai.Content {
	var contents []*genai.Content
	for i := 0; i < len(transcript); {
		t := transcript[i]
		switch t.Role {
		case types.RoleTool:
			end := toolRun(transcript, i)
			parts := make([]*genai.Part, 0, end-i)
			for _, r := range transcript[i:end] {
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       r.CallID,
					Name:     r.ToolName,
					Response: map[string]any{"result": r.Text},
				}})
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
			i = end
			continue

		case types.RoleAssistant:
			if raw, ok := t.Raw.(*genai.Content); ok && raw != nil {
				contents = append(contents, raw)
				break
			}
			var parts []*genai.Part
			if t.Text != "" {
				parts = append(parts, &genai.Part{Text: t.Text})
			}
			for _, c := range t.Calls {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: c.ID, Name: c.Name, Args: c.Args}})
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))

		default:
			contents = append(contents, genai.NewContentFromText(t.Text, genai.RoleUser))
		}
		i++
	}
	return contents
}

// geminiTurn converts a response into an assistant turn.
func geminiTurn(resp *genai.GenerateContentResponse) types.Turn {
	turn := types.Turn{Role: types.RoleAssistant}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		turn.Finish = types.FinishSafety
		turn.FinishReason = "NO_CANDIDATES"
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			turn.FinishReason = string(resp.PromptFeedback.BlockReason)
		}
		return turn
	}

	cand := resp.Candidates[0]
	turn.FinishReason = string(cand.FinishReason)
	turn.Finish = geminiFinish(cand.FinishReason)
	if cand.Content == nil {
		return turn
	}

	turn.Raw = cand.Content
	var text strings.Builder
	for _, part := range cand.Content.Parts {
		switch {
		case part == nil || part.Thought:
		case part.FunctionCall != nil:
			turn.Calls = append(turn.Calls, types.ToolCall{
				ID:   part.FunctionCall.ID,
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		case part.Text != "":
			text.WriteString(part.Text)
		}
	}
	turn.Text = text.String()
	return turn
}

func geminiFinish(reason genai.FinishReason) types.FinishClass {
	switch reason {
	case genai.FinishReasonMalformedFunctionCall, genai.FinishReasonUnexpectedToolCall:
		return types.FinishMalformedCall
	case genai.FinishReasonSafety, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent,
		genai.FinishReasonSPII, genai.FinishReasonImageSafety:
		return types.FinishSafety
	case genai.FinishReasonRecitation:
		return types.FinishRecitation
	default:
		return types.FinishNormal
	}
}
