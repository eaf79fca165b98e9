package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// OpenAIConfig configures the OpenAI-compatible gateway.
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string // empty means the provider default
	Model             string
	MaxSchemaRetries  int     // re-asks when output fails its schema
	RequestsPerMinute float64 // 0 disables admission control
	RequestTimeout    time.Duration
}

func (c *OpenAIConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = openai.GPT4o
	}
	if c.MaxSchemaRetries <= 0 {
		c.MaxSchemaRetries = 3
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 120 * time.Second
	}
}

// OpenAIClient implements Client over an OpenAI-compatible API.
type OpenAIClient struct {
	api     *openai.Client
	model   string
	retries int
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewOpenAIClient builds the gateway from config. An empty API key is
// rejected up front rather than surfacing as a 401 per request.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	cfg.applyDefaults()

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), 1)
	}

	return &OpenAIClient{
		api:     openai.NewClientWithConfig(apiCfg),
		model:   cfg.Model,
		retries: cfg.MaxSchemaRetries,
		timeout: cfg.RequestTimeout,
		limiter: limiter,
		logger:  logger.With("component", "llm"),
	}, nil
}

// Complete sends the conversation and returns the model's reply.
// Schema-constrained requests are validated locally and re-asked up to
// the configured retry budget before failing with *SchemaError.
func (c *OpenAIClient) Complete(ctx context.Context, req *Request) (*Completion, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("llm: admission wait: %w", err)
		}
	}

	apiReq, schema, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}

	var lastRaw string
	var lastErr error
	attempts := 0
	for attempts < c.retries {
		attempts++
		resp, err := c.send(ctx, apiReq)
		if err != nil {
			return nil, err
		}
		completion, err := convertResponse(resp, req.Tools)
		if err != nil {
			return nil, err
		}
		if schema == nil || len(completion.ToolCalls) > 0 {
			return completion, nil
		}
		if err := validateJSON(schema.Schema, []byte(completion.Content)); err != nil {
			lastRaw, lastErr = completion.Content, err
			c.logger.Warn("schema validation failed, re-asking",
				"schema", req.ResponseSchema.Name,
				"attempt", attempts,
				"error", err)
			continue
		}
		return completion, nil
	}
	return nil, &SchemaError{
		SchemaName: req.ResponseSchema.Name,
		Attempts:   attempts,
		RawOutput:  lastRaw,
		Err:        lastErr,
	}
}

// send performs one provider call with backoff on transient failures.
func (c *OpenAIClient) send(ctx context.Context, apiReq openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var resp openai.ChatCompletionResponse

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 10 * time.Second
	policy.MaxElapsedTime = c.timeout

	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		var err error
		resp, err = c.api.CreateChatCompletion(callCtx, apiReq)
		if err == nil {
			return nil
		}
		if !retryableAPIError(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		c.logger.Warn("provider call failed, retrying", "error", err)
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return resp, classifyAPIError(err)
	}
	return resp, nil
}

func (c *OpenAIClient) buildRequest(req *Request) (openai.ChatCompletionRequest, *compiledSchema, error) {
	apiReq := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}
	if req.Temperature != nil {
		apiReq.Temperature = *req.Temperature
	}
	if req.MaxTokens > 0 {
		apiReq.MaxTokens = req.MaxTokens
	}

	for _, m := range req.Messages {
		am := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			am.ToolCalls = append(am.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		apiReq.Messages = append(apiReq.Messages, am)
	}

	for _, t := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	if req.ToolChoice != nil {
		switch req.ToolChoice.Mode {
		case ToolChoiceAuto:
			apiReq.ToolChoice = "auto"
		case ToolChoiceRequired:
			apiReq.ToolChoice = "required"
		case ToolChoiceNamed:
			apiReq.ToolChoice = openai.ToolChoice{
				Type:     openai.ToolTypeFunction,
				Function: openai.ToolFunction{Name: req.ToolChoice.Name},
			}
		}
	}

	var schema *compiledSchema
	if req.ResponseSchema != nil {
		compiled, err := compileSchema(req.ResponseSchema.Schema)
		if err != nil {
			return apiReq, nil, fmt.Errorf("llm: response schema %q: %w", req.ResponseSchema.Name, err)
		}
		schema = &compiledSchema{Schema: compiled}
		apiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.ResponseSchema.Name,
				Schema: req.ResponseSchema.Schema,
				Strict: false,
			},
		}
	}
	return apiReq, schema, nil
}

// convertResponse maps the provider reply to a Completion, validating
// tool-call arguments against the matching tool's parameter schema.
func convertResponse(resp openai.ChatCompletionResponse, tools []ToolDefinition) (*Completion, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: provider returned no choices")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, ErrContentFiltered
	}

	out := &Completion{Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		if tc.Type != openai.ToolTypeFunction {
			continue
		}
		call := ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
		for _, t := range tools {
			if t.Name == call.Name && len(t.Parameters) > 0 {
				if err := ValidateAgainstSchema(t.Parameters, []byte(call.Arguments)); err != nil {
					return nil, fmt.Errorf("llm: tool call %s arguments invalid: %w", call.Name, err)
				}
				break
			}
		}
		out.ToolCalls = append(out.ToolCalls, call)
	}
	return out, nil
}

// Close releases client resources. The underlying HTTP client needs no
// teardown but the method anchors the Client interface.
func (c *OpenAIClient) Close() error { return nil }
