// Package llmtest provides a scripted Client for tests: responses are
// played back in order (or routed per matcher), and every request is
// captured for assertion.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/taskmesh/taskmesh/pkg/llm"
)

// Entry is one scripted exchange. Match, when set, binds the entry to
// requests it returns true for; unmatched entries play back in order.
type Entry struct {
	Match     func(req *llm.Request) bool
	Content   string
	ToolCalls []llm.ToolCall
	Err       error
}

// ScriptedClient implements llm.Client from a fixed script.
type ScriptedClient struct {
	mu       sync.Mutex
	script   []Entry
	Requests []*llm.Request
}

// NewScriptedClient builds a client that replays the given entries.
func NewScriptedClient(entries ...Entry) *ScriptedClient {
	return &ScriptedClient{script: entries}
}

// Append adds entries to the end of the script.
func (c *ScriptedClient) Append(entries ...Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, entries...)
}

// Complete returns the next matching scripted entry. Matched entries
// are tried first so routed scripts and sequential scripts compose.
func (c *ScriptedClient) Complete(_ context.Context, req *llm.Request) (*llm.Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Requests = append(c.Requests, cloneRequest(req))

	for i := 0; i < len(c.script); i++ {
		e := c.script[i]
		if e.Match != nil && !e.Match(req) {
			continue
		}
		c.script = append(c.script[:i], c.script[i+1:]...)
		if e.Err != nil {
			return nil, e.Err
		}
		return &llm.Completion{Content: e.Content, ToolCalls: e.ToolCalls}, nil
	}
	return nil, fmt.Errorf("llmtest: script exhausted after %d requests", len(c.Requests))
}

// Close implements llm.Client.
func (c *ScriptedClient) Close() error { return nil }

// Remaining reports how many scripted entries were never consumed.
func (c *ScriptedClient) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.script)
}

// LastRequest returns the most recent captured request, or nil.
func (c *ScriptedClient) LastRequest() *llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Requests) == 0 {
		return nil
	}
	return c.Requests[len(c.Requests)-1]
}

func cloneRequest(req *llm.Request) *llm.Request {
	cp := *req
	cp.Messages = append([]llm.Message(nil), req.Messages...)
	cp.Tools = append([]llm.ToolDefinition(nil), req.Tools...)
	return &cp
}
