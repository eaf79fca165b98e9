package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskmesh/taskmesh/pkg/models"
	"github.com/taskmesh/taskmesh/pkg/store"
)

// HumanAgent records human feedback against a step and signals the
// group chat manager to advance the plan. It never calls the LLM.
type HumanAgent struct {
	store  store.Store
	logger *slog.Logger
}

// NewHumanAgent builds the human-in-the-loop agent.
func NewHumanAgent(st store.Store, logger *slog.Logger) *HumanAgent {
	return &HumanAgent{store: st, logger: logger.With("agent", string(models.AgentHuman))}
}

// HandleStepFeedback writes the feedback onto the step and returns the
// approval request that advances the plan. A missing step is logged and
// swallowed; feedback for a vanished step is not an error.
func (h *HumanAgent) HandleStepFeedback(ctx context.Context, fb *models.HumanFeedback) (*models.ApprovalRequest, error) {
	step, err := h.store.GetStep(ctx, fb.UserID, fb.SessionID, fb.StepID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.logger.Warn("feedback for unknown step ignored",
				"session_id", fb.SessionID, "step_id", fb.StepID)
			return nil, nil
		}
		return nil, fmt.Errorf("load step %s: %w", fb.StepID, err)
	}

	// Terminal steps are immutable; replayed feedback is a no-op.
	if step.Status.Terminal() {
		h.logger.Info("feedback for terminal step ignored",
			"step_id", step.ID, "status", string(step.Status))
		return nil, nil
	}

	if fb.Feedback != nil {
		step.HumanFeedback = fb.Feedback
	}
	if fb.UpdatedAction != nil && *fb.UpdatedAction != "" {
		step.UpdatedAction = fb.UpdatedAction
	}
	// A step assigned to the Human agent completes the moment feedback
	// arrives; the feedback text is its reply.
	if step.Agent == models.AgentHuman {
		step.Status = models.StepStatusCompleted
		reply := ""
		if fb.Feedback != nil {
			reply = *fb.Feedback
		}
		step.AgentReply = &reply
	}
	if err := h.store.UpdateStep(ctx, step); err != nil {
		return nil, fmt.Errorf("update step %s: %w", step.ID, err)
	}

	content := fmt.Sprintf("Received human feedback on step %s: %s", step.ID, feedbackText(fb))
	msg := &models.AgentMessage{
		ID:        uuid.NewString(),
		SessionID: fb.SessionID,
		UserID:    fb.UserID,
		PlanID:    fb.PlanID,
		StepID:    &step.ID,
		Source:    models.SourceHumanAgent,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if err := h.store.AddAgentMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("record feedback message: %w", err)
	}
	h.logger.Info("step feedback recorded",
		"step_id", step.ID, "approved", fb.Approved)

	return &models.ApprovalRequest{
		SessionID: fb.SessionID,
		PlanID:    fb.PlanID,
		StepID:    &fb.StepID,
		UserID:    fb.UserID,
		Approved:  fb.Approved,
		Feedback:  fb.Feedback,
	}, nil
}

func feedbackText(fb *models.HumanFeedback) string {
	if fb.Feedback != nil && *fb.Feedback != "" {
		return *fb.Feedback
	}
	if fb.Approved {
		return "approved"
	}
	return "rejected"
}
