// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Role identifies who produced a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// FinishClass is the provider-independent classification of why a model
// turn ended. The empty class means the turn ended normally.
type FinishClass string

const (
	FinishNormal        FinishClass = ""
	FinishMalformedCall FinishClass = "malformed_call"
	FinishSafety        FinishClass = "safety"
	FinishRecitation    FinishClass = "recitation"
)

// Terminal reports whether the class ends the plan/execute loop.
func (f FinishClass) Terminal() bool { return f != FinishNormal }

// ToolCall is a tool invocation as emitted by a model, before normalization.
// Args holds the decoded JSON arguments exactly as the provider sent them.
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Turn is one entry of an orchestration transcript.
//
// Assistant turns carry Text and/or Calls plus the finish classification.
// Tool turns carry the result of exactly one call in Text, linked to the
// call by CallID and ToolName. Consecutive tool turns are delivered to the
// model as a single message.
type Turn struct {
	Role  Role       `json:"role"`
	Text  string     `json:"text,omitempty"`
	Calls []ToolCall `json:"calls,omitempty"`

	CallID   string `json:"call_id,omitempty"`
	ToolName string `json:"tool_name,omitempty"`

	Finish       FinishClass `json:"finish,omitempty"`
	FinishReason string      `json:"finish_reason,omitempty"`

	// Raw is the provider-native form of an assistant turn. Adapters replay
	// it verbatim when present so provider-only data (thought signatures,
	// tool-use ids) survives the round trip.
	Raw any `json:"-"`
}

// ParamType is the JSON schema type of a tool parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
)

// ToolParam declares one tool parameter.
type ToolParam struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// ToolSpec declares a tool offered to the model.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ToolParam
}
