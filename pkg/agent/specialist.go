// Package agent implements the roster members: the base specialist
// tool-calling loop and the human-in-the-loop agent.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskmesh/taskmesh/pkg/agent/prompt"
	"github.com/taskmesh/taskmesh/pkg/llm"
	"github.com/taskmesh/taskmesh/pkg/models"
	"github.com/taskmesh/taskmesh/pkg/store"
	"github.com/taskmesh/taskmesh/pkg/tools"
)

// DefaultMaxToolIterations bounds the specialist tool-calling loop.
const DefaultMaxToolIterations = 8

// Specialist executes one assigned action through the tool-calling
// loop on behalf of a plan step.
type Specialist struct {
	name     models.AgentName
	slice    *tools.Slice
	llm      llm.Client
	store    store.Store
	maxIters int
	logger   *slog.Logger
}

// NewSpecialist binds a roster member to its tool slice.
func NewSpecialist(name models.AgentName, slice *tools.Slice, client llm.Client, st store.Store, maxIters int, logger *slog.Logger) *Specialist {
	if maxIters <= 0 {
		maxIters = DefaultMaxToolIterations
	}
	return &Specialist{
		name:     name,
		slice:    slice,
		llm:      client,
		store:    st,
		maxIters: maxIters,
		logger:   logger.With("agent", string(name)),
	}
}

// Name returns the roster name this specialist answers to.
func (s *Specialist) Name() models.AgentName { return s.name }

// HandleActionRequest executes the dispatched action and writes exactly
// one terminal step update and one terminal agent message. Failures do
// not retry; the step goes to failed with the error recorded as its
// reply.
func (s *Specialist) HandleActionRequest(ctx context.Context, req *models.ActionRequest) (*models.ActionResponse, error) {
	step, err := s.store.GetStep(ctx, req.UserID, req.SessionID, req.StepID)
	if err != nil {
		return nil, fmt.Errorf("load step %s: %w", req.StepID, err)
	}
	if step.Status != models.StepStatusActionRequested {
		return nil, fmt.Errorf("step %s is %s, expected %s", step.ID, step.Status, models.StepStatusActionRequested)
	}

	reply, err := s.runToolLoop(ctx, req, step)
	if err != nil {
		s.logger.Error("action failed", "step_id", step.ID, "error", err)
		return s.finishStep(ctx, req, step, models.StepStatusFailed, "Error executing step: "+err.Error())
	}
	return s.finishStep(ctx, req, step, models.StepStatusCompleted, reply)
}

// runToolLoop drives the model until it emits final text, executing any
// requested tools in declaration order between iterations.
func (s *Specialist) runToolLoop(ctx context.Context, req *models.ActionRequest, step *models.Step) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: prompt.SpecialistSystem(s.slice.SystemMessage)},
		{Role: llm.RoleUser, Content: prompt.ActionPrefix(req.Action)},
	}
	if step.HumanFeedback != nil && *step.HumanFeedback != "" {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: *step.HumanFeedback})
	}

	choice := &llm.ToolChoice{Mode: llm.ToolChoiceAuto}
	defs := s.slice.LLMDefinitions()

	for iter := 0; iter < s.maxIters; iter++ {
		completion, err := s.llm.Complete(ctx, &llm.Request{
			Messages:   messages,
			Tools:      defs,
			ToolChoice: choice,
		})
		if err != nil {
			return "", fmt.Errorf("llm call: %w", err)
		}
		if len(completion.ToolCalls) == 0 {
			return completion.Content, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})
		for _, call := range completion.ToolCalls {
			result, err := s.invokeTool(call)
			if err != nil {
				return "", fmt.Errorf("tool %s: %w", call.Name, err)
			}
			s.logger.Info("tool invoked", "step_id", step.ID, "tool", call.Name)
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}
	return "", fmt.Errorf("tool loop exceeded %d iterations", s.maxIters)
}

func (s *Specialist) invokeTool(call llm.ToolCall) (string, error) {
	tool, err := s.slice.Get(call.Name)
	if err != nil {
		return "", err
	}
	args, err := decodeArguments(call.Arguments)
	if err != nil {
		return "", err
	}
	return tool.Invoke(args)
}

// finishStep persists the terminal agent message and step transition,
// then builds the response for the group chat manager.
func (s *Specialist) finishStep(ctx context.Context, req *models.ActionRequest, step *models.Step, status models.StepStatus, reply string) (*models.ActionResponse, error) {
	msg := &models.AgentMessage{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		UserID:    req.UserID,
		PlanID:    req.PlanID,
		StepID:    &step.ID,
		Source:    string(s.name),
		Content:   reply,
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.AddAgentMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("record agent message: %w", err)
	}

	step.Status = status
	step.AgentReply = &reply
	if err := s.store.UpdateStep(ctx, step); err != nil {
		return nil, fmt.Errorf("update step %s: %w", step.ID, err)
	}
	s.logger.Info("step finished", "step_id", step.ID, "status", string(status))

	return &models.ActionResponse{
		SessionID: req.SessionID,
		PlanID:    req.PlanID,
		StepID:    step.ID,
		UserID:    req.UserID,
		Result:    reply,
		Status:    status,
	}, nil
}
