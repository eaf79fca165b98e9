// Package llm provides the gateway to schema-constrained chat completion
// with tool-call support. One operation, Complete, covers planning
// (response schema), specialist execution (tool definitions) and
// classification (plain text).
package llm

import (
	"context"
	"encoding/json"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of a conversation sent to or received from the model.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall // for assistant messages
	ToolCallID string     // for tool result messages
	Name       string     // tool name on tool result messages
}

// ToolCall is the model's request to invoke a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// ToolDefinition describes a tool available to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema for the arguments object
}

// ToolChoice controls whether the model may, must, or must-with-name
// call a tool.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string // required when Mode is ToolChoiceNamed
}

// ToolChoiceMode enumerates tool choice policies.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceNamed    ToolChoiceMode = "named"
)

// ResponseSchema constrains the completion content to a JSON schema.
type ResponseSchema struct {
	Name   string
	Schema json.RawMessage
}

// Request is the input to Complete.
type Request struct {
	Messages       []Message
	Tools          []ToolDefinition
	ToolChoice     *ToolChoice
	ResponseSchema *ResponseSchema
	Temperature    *float32
	MaxTokens      int
}

// Completion is the model's reply: final text, or one or more tool calls.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// Client is the chat completion gateway. When Request.ResponseSchema is
// set, implementations either return content validating against the
// schema or fail with *SchemaError after bounded internal retries.
// Tool-call arguments are validated against the matching tool's
// parameter schema under the same contract.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Completion, error)
	Close() error
}
