// Package rai implements the single-boolean content safety gate that
// runs before any plan is created.
package rai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/taskmesh/taskmesh/pkg/agent/prompt"
	"github.com/taskmesh/taskmesh/pkg/llm"
)

// Gate classifies a task description before planning. The classifier
// answers TRUE for harmful content; only an exact FALSE allows the
// task through.
type Gate struct {
	llm    llm.Client
	logger *slog.Logger
}

// NewGate builds the gate over the shared LLM client.
func NewGate(client llm.Client, logger *slog.Logger) *Gate {
	return &Gate{llm: client, logger: logger.With("component", "rai")}
}

// Allowed reports whether a plan may be created for the description.
// Infrastructure errors from the classifier fail open: blocking every
// task because the safety model is down is a denial of service. Only a
// content-filter refusal from the provider blocks on error.
func (g *Gate) Allowed(ctx context.Context, description string) bool {
	temperature := float32(0)
	completion, err := g.llm.Complete(ctx, &llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: prompt.RAIClassifier(description)},
		},
		Temperature: &temperature,
	})
	if err != nil {
		if llm.IsContentFiltered(err) {
			g.logger.Warn("task blocked by provider content filter")
			return false
		}
		g.logger.Error("safety classifier unavailable, allowing task", "error", err)
		return true
	}
	verdict := strings.TrimSpace(completion.Content)
	if verdict == "FALSE" {
		return true
	}
	g.logger.Warn("task blocked by safety classifier", "verdict", verdict)
	return false
}
