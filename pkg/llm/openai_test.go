package llm

import (
	"encoding/json"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertResponse(t *testing.T) {
	tools := []ToolDefinition{{
		Name: "order_hardware",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"item_name": {"type": "string"},
				"quantity": {"type": "integer"}
			},
			"required": ["item_name", "quantity"]
		}`),
	}}

	t.Run("plain text reply", func(t *testing.T) {
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Content: "done"},
			}},
		}
		out, err := convertResponse(resp, nil)
		require.NoError(t, err)
		assert.Equal(t, "done", out.Content)
		assert.Empty(t, out.ToolCalls)
	})

	t.Run("tool call with valid arguments", func(t *testing.T) {
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					ToolCalls: []openai.ToolCall{{
						ID:   "call_1",
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      "order_hardware",
							Arguments: `{"item_name":"laptop","quantity":3}`,
						},
					}},
				},
			}},
		}
		out, err := convertResponse(resp, tools)
		require.NoError(t, err)
		require.Len(t, out.ToolCalls, 1)
		assert.Equal(t, "order_hardware", out.ToolCalls[0].Name)
	})

	t.Run("tool call with invalid arguments is rejected", func(t *testing.T) {
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					ToolCalls: []openai.ToolCall{{
						ID:   "call_1",
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      "order_hardware",
							Arguments: `{"quantity":"three"}`,
						},
					}},
				},
			}},
		}
		_, err := convertResponse(resp, tools)
		assert.Error(t, err)
	})

	t.Run("content filter finish reason", func(t *testing.T) {
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				FinishReason: openai.FinishReasonContentFilter,
			}},
		}
		_, err := convertResponse(resp, nil)
		assert.ErrorIs(t, err, ErrContentFiltered)
	})

	t.Run("no choices", func(t *testing.T) {
		_, err := convertResponse(openai.ChatCompletionResponse{}, nil)
		assert.Error(t, err)
	})
}

func TestClassifyAPIError(t *testing.T) {
	t.Run("401 maps to unauthorized", func(t *testing.T) {
		err := classifyAPIError(&openai.APIError{HTTPStatusCode: 401})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
	t.Run("429 maps to rate limited", func(t *testing.T) {
		err := classifyAPIError(&openai.APIError{HTTPStatusCode: 429})
		assert.ErrorIs(t, err, ErrRateLimited)
	})
	t.Run("content filter code maps to content filtered", func(t *testing.T) {
		err := classifyAPIError(&openai.APIError{HTTPStatusCode: 400, Code: "content_filter"})
		assert.ErrorIs(t, err, ErrContentFiltered)
	})
	t.Run("other errors pass through", func(t *testing.T) {
		orig := errors.New("connection reset")
		assert.Equal(t, orig, classifyAPIError(orig))
	})
}

func TestIsContentFiltered(t *testing.T) {
	assert.True(t, IsContentFiltered(ErrContentFiltered))
	assert.True(t, IsContentFiltered(&openai.APIError{Code: "content_filter"}))
	assert.False(t, IsContentFiltered(&openai.APIError{HTTPStatusCode: 500}))
	assert.False(t, IsContentFiltered(errors.New("boom")))
	assert.False(t, IsContentFiltered(nil))
}

func TestRetryableAPIError(t *testing.T) {
	assert.True(t, retryableAPIError(&openai.APIError{HTTPStatusCode: 429}))
	assert.True(t, retryableAPIError(&openai.APIError{HTTPStatusCode: 503}))
	assert.False(t, retryableAPIError(&openai.APIError{HTTPStatusCode: 400}))
	assert.True(t, retryableAPIError(errors.New("dial tcp: timeout")))
}

func TestBuildRequest(t *testing.T) {
	c := &OpenAIClient{model: "gpt-4o", retries: 3}

	t.Run("maps messages and tools", func(t *testing.T) {
		req := &Request{
			Messages: []Message{
				{Role: RoleSystem, Content: "system"},
				{Role: RoleUser, Content: "user"},
			},
			Tools: []ToolDefinition{{
				Name:       "get_product_info",
				Parameters: json.RawMessage(`{"type":"object"}`),
			}},
			ToolChoice: &ToolChoice{Mode: ToolChoiceAuto},
		}
		apiReq, schema, err := c.buildRequest(req)
		require.NoError(t, err)
		assert.Nil(t, schema)
		assert.Equal(t, "gpt-4o", apiReq.Model)
		require.Len(t, apiReq.Messages, 2)
		require.Len(t, apiReq.Tools, 1)
		assert.Equal(t, "auto", apiReq.ToolChoice)
	})

	t.Run("compiles response schema", func(t *testing.T) {
		req := &Request{
			Messages:       []Message{{Role: RoleUser, Content: "plan"}},
			ResponseSchema: &ResponseSchema{Name: "plan", Schema: personSchema},
		}
		apiReq, schema, err := c.buildRequest(req)
		require.NoError(t, err)
		require.NotNil(t, schema)
		require.NotNil(t, apiReq.ResponseFormat)
		assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONSchema, apiReq.ResponseFormat.Type)
	})

	t.Run("rejects broken response schema", func(t *testing.T) {
		req := &Request{
			ResponseSchema: &ResponseSchema{Name: "bad", Schema: json.RawMessage(`{`)},
		}
		_, _, err := c.buildRequest(req)
		assert.Error(t, err)
	})
}
