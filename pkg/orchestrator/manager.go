// Package orchestrator implements the group chat manager: the
// deterministic per-session coordinator that routes objectives to the
// planner, approvals to specialists, and recomputes plan status as
// steps reach terminal states.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskmesh/taskmesh/pkg/agent"
	"github.com/taskmesh/taskmesh/pkg/agent/prompt"
	"github.com/taskmesh/taskmesh/pkg/models"
	"github.com/taskmesh/taskmesh/pkg/planner"
	"github.com/taskmesh/taskmesh/pkg/store"
)

// Executor runs specialist work off the caller's control flow while
// preserving per-session serialisation. The session runtime provides
// the production implementation.
type Executor interface {
	Go(fn func(ctx context.Context))
}

// SyncExecutor runs submitted work inline. Used in tests and as a
// degenerate single-threaded mode.
type SyncExecutor struct{}

// Go implements Executor.
func (SyncExecutor) Go(fn func(ctx context.Context)) { fn(context.Background()) }

// Manager coordinates one session. All step status transitions for the
// session are linearised through it.
type Manager struct {
	store   store.Store
	planner *planner.Planner
	roster  *agent.Roster
	exec    Executor
	logger  *slog.Logger
	now     func() time.Time
}

// NewManager builds the coordinator for one session.
func NewManager(st store.Store, pl *planner.Planner, roster *agent.Roster, exec Executor, logger *slog.Logger) *Manager {
	return &Manager{
		store:   st,
		planner: pl,
		roster:  roster,
		exec:    exec,
		logger:  logger.With("component", "orchestrator"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// HandleInputTask records the user's objective first, so the transcript
// opens with the user's ask, then forwards it to the planner.
func (m *Manager) HandleInputTask(ctx context.Context, task *models.InputTask) (*models.Plan, error) {
	msg := &models.AgentMessage{
		ID:        uuid.NewString(),
		SessionID: task.SessionID,
		UserID:    task.UserID,
		Source:    models.SourceHumanAgent,
		Content:   task.Description,
		Timestamp: m.now(),
	}
	if err := m.store.AddAgentMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("record objective message: %w", err)
	}
	return m.planner.HandleInputTask(ctx, task)
}

// HandleStepFeedback routes human feedback through the human agent and
// then advances the plan with the resulting approval.
func (m *Manager) HandleStepFeedback(ctx context.Context, fb *models.HumanFeedback) error {
	approval, err := m.roster.Human().HandleStepFeedback(ctx, fb)
	if err != nil {
		return err
	}
	if approval == nil {
		// Feedback for a step that no longer exists. Logged upstream.
		return nil
	}
	return m.HandleHumanApproval(ctx, approval)
}

// HandlePlanClarification forwards the clarification to the planner.
func (m *Manager) HandlePlanClarification(ctx context.Context, msg *models.HumanClarification) error {
	return m.planner.HandlePlanClarification(ctx, msg)
}

// HandleHumanApproval applies an approval or rejection to the targeted
// step, or to every non-terminal step when no step id is given.
// Replays against already-terminal steps are no-ops.
func (m *Manager) HandleHumanApproval(ctx context.Context, req *models.ApprovalRequest) error {
	plan, err := m.store.GetPlan(ctx, req.UserID, req.PlanID)
	if err != nil {
		return fmt.Errorf("load plan %s: %w", req.PlanID, err)
	}
	steps, err := m.store.ListStepsByPlan(ctx, req.UserID, req.PlanID)
	if err != nil {
		return fmt.Errorf("load steps for plan %s: %w", req.PlanID, err)
	}

	stepFeedback := ""
	if req.Feedback != nil {
		stepFeedback = *req.Feedback
	}
	effective := prompt.EffectiveFeedback(stepFeedback, plan.HumanClarificationResponse, m.now())

	targets, err := selectTargets(steps, req.StepID)
	if err != nil {
		return err
	}
	for _, step := range targets {
		if step.Status.Terminal() {
			m.logger.Info("skipping terminal step", "step_id", step.ID, "status", string(step.Status))
			continue
		}
		if req.Approved {
			if err := m.approveAndExecute(ctx, plan, steps, step, effective); err != nil {
				return err
			}
		} else {
			step.Status = models.StepStatusRejected
			step.HumanApprovalStatus = models.ApprovalRejected
			step.HumanFeedback = &effective
			if err := m.store.UpdateStep(ctx, step); err != nil {
				return fmt.Errorf("reject step %s: %w", step.ID, err)
			}
			m.logger.Info("step rejected", "step_id", step.ID)
		}
	}
	return m.recomputePlanStatus(ctx, plan)
}

// selectTargets resolves the approval to its steps: one named step, or
// every non-terminal step in insertion order.
func selectTargets(steps []*models.Step, stepID *string) ([]*models.Step, error) {
	if stepID == nil || *stepID == "" {
		targets := make([]*models.Step, 0, len(steps))
		for _, s := range steps {
			if !s.Status.Terminal() {
				targets = append(targets, s)
			}
		}
		return targets, nil
	}
	for _, s := range steps {
		if s.ID == *stepID {
			return []*models.Step{s}, nil
		}
	}
	return nil, fmt.Errorf("step %s: %w", *stepID, store.ErrNotFound)
}

// approveAndExecute records the approval and drives the step through
// execution. Execution precedes completion for non-Human steps.
func (m *Manager) approveAndExecute(ctx context.Context, plan *models.Plan, steps []*models.Step, step *models.Step, effective string) error {
	step.Status = models.StepStatusApproved
	step.HumanApprovalStatus = models.ApprovalAccepted
	step.HumanFeedback = &effective
	if err := m.store.UpdateStep(ctx, step); err != nil {
		return fmt.Errorf("approve step %s: %w", step.ID, err)
	}
	return m.ExecuteStep(ctx, plan, steps, step)
}

// ExecuteStep dispatches an approved step. Human steps complete
// immediately; specialist steps are handed to their agent and resolve
// asynchronously through the store.
func (m *Manager) ExecuteStep(ctx context.Context, plan *models.Plan, steps []*models.Step, step *models.Step) error {
	if step.Status != models.StepStatusApproved {
		return fmt.Errorf("step %s is %s, expected %s", step.ID, step.Status, models.StepStatusApproved)
	}
	step.Status = models.StepStatusActionRequested
	if err := m.store.UpdateStep(ctx, step); err != nil {
		return fmt.Errorf("request action for step %s: %w", step.ID, err)
	}

	if step.Agent == models.AgentHuman {
		// Human steps complete on feedback arrival; there is no
		// specialist to dispatch to.
		step.Status = models.StepStatusCompleted
		if step.AgentReply == nil {
			step.AgentReply = step.HumanFeedback
		}
		if err := m.store.UpdateStep(ctx, step); err != nil {
			return fmt.Errorf("complete human step %s: %w", step.ID, err)
		}
		m.logger.Info("human step completed", "step_id", step.ID)
		return nil
	}

	preface := prompt.ConversationPreface(plan, steps, step.ID)
	actionReq := &models.ActionRequest{
		SessionID: step.SessionID,
		PlanID:    step.PlanID,
		StepID:    step.ID,
		UserID:    step.UserID,
		Action:    prompt.DispatchAction(preface, step.EffectiveAction()),
	}
	specialist := m.roster.Specialist(step.Agent)
	m.logger.Info("dispatching step", "step_id", step.ID, "agent", string(step.Agent))

	m.exec.Go(func(ctx context.Context) {
		resp, err := specialist.HandleActionRequest(ctx, actionReq)
		if err != nil {
			m.logger.Error("specialist dispatch failed", "step_id", actionReq.StepID, "error", err)
			return
		}
		m.HandleActionResponse(ctx, resp)
	})
	return nil
}

// HandleActionResponse is the specialist's write-back path: the step is
// already terminal in the store, so only the plan status needs
// recomputing.
func (m *Manager) HandleActionResponse(ctx context.Context, resp *models.ActionResponse) {
	m.logger.Info("action response received",
		"step_id", resp.StepID, "status", string(resp.Status))
	plan, err := m.store.GetPlan(ctx, resp.UserID, resp.PlanID)
	if err != nil {
		m.logger.Error("plan lookup failed on action response", "plan_id", resp.PlanID, "error", err)
		return
	}
	if err := m.recomputePlanStatus(ctx, plan); err != nil {
		m.logger.Error("plan status recompute failed", "plan_id", resp.PlanID, "error", err)
	}
}

// recomputePlanStatus marks the plan completed once every step is
// terminal. Rejected steps count as terminal.
func (m *Manager) recomputePlanStatus(ctx context.Context, plan *models.Plan) error {
	steps, err := m.store.ListStepsByPlan(ctx, plan.UserID, plan.ID)
	if err != nil {
		return fmt.Errorf("load steps for plan %s: %w", plan.ID, err)
	}
	if len(steps) == 0 {
		return nil
	}
	for _, s := range steps {
		if !s.Status.Terminal() {
			return nil
		}
	}
	if plan.OverallStatus == models.PlanStatusCompleted {
		return nil
	}
	plan.OverallStatus = models.PlanStatusCompleted
	if err := m.store.UpdatePlan(ctx, plan); err != nil {
		return fmt.Errorf("complete plan %s: %w", plan.ID, err)
	}
	m.logger.Info("plan completed", "plan_id", plan.ID)
	return nil
}
