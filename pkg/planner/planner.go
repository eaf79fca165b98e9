package planner

import (
	"context"
	"errors"
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

// Planner builds a plan and its ordered steps from an input task.
type Planner struct {
	llm      llm.Client
	store    store.Store
	registry *tools.Registry
	logger   *slog.Logger
}

// New builds a planner over the shared registry and store.
func New(client llm.Client, st store.Store, registry *tools.Registry, logger *slog.Logger) *Planner {
	return &Planner{
		llm:      client,
		store:    st,
		registry: registry,
		logger:   logger.With("component", "planner"),
	}
}

// HandleInputTask asks the model for a plan and persists it. The plan
// is never silently dropped: if the model's output defeats every parse
// strategy, a minimal two-step fallback plan is created instead.
func (p *Planner) HandleInputTask(ctx context.Context, task *models.InputTask) (*models.Plan, error) {
	draft := p.draftPlan(ctx, task)
	return p.persistDraft(ctx, task, draft)
}

// draftPlan runs the planning call and the parse ladder, falling back
// to the minimal draft on any unrecoverable failure.
func (p *Planner) draftPlan(ctx context.Context, task *models.InputTask) *planDraft {
	temperature := float32(0)
	req := &llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: prompt.PlannerSystem(p.registry.Specialists(), p.catalogText())},
			{Role: llm.RoleUser, Content: prompt.PlannerTask(task.Description)},
		},
		ResponseSchema: &llm.ResponseSchema{Name: "plan", Schema: responseSchema()},
		Temperature:    &temperature,
	}

	completion, err := p.llm.Complete(ctx, req)
	raw := ""
	switch {
	case err == nil:
		raw = completion.Content
	default:
		// A schema failure still carries raw output worth running the
		// ladder over; anything else goes straight to the fallback.
		var schemaErr *llm.SchemaError
		if errors.As(err, &schemaErr) && schemaErr.RawOutput != "" {
			p.logger.Warn("planner output failed schema, trying parse ladder", "error", err)
			raw = schemaErr.RawOutput
		} else {
			p.logger.Error("planning call failed, using fallback plan", "error", err)
			return fallbackDraft(task.Description)
		}
	}

	draft, err := parsePlanDraft(raw)
	if err != nil {
		p.logger.Warn("all parse strategies failed, using fallback plan", "error", err)
		return fallbackDraft(task.Description)
	}
	if len(draft.Steps) > MaxPlanSteps {
		draft.Steps = draft.Steps[:MaxPlanSteps]
	}
	return draft
}

// fallbackDraft is the minimal two-step plan: analyze, then ask the
// human for more detail.
func fallbackDraft(description string) *planDraft {
	return &planDraft{
		InitialGoal: description,
		Steps: []draftStep{
			{Action: "Analyze the task: " + description, Agent: string(models.AgentGeneric)},
			{Action: "Provide more details about: " + description, Agent: string(models.AgentHuman)},
		},
		Summary: "Fallback plan: analyze the task, then gather more details from the user.",
	}
}

// persistDraft writes the plan, its steps and the announcement
// messages. Unknown agent names degrade to Generic. A session holds at
// most one active plan, so a still-open predecessor is failed first.
func (p *Planner) persistDraft(ctx context.Context, task *models.InputTask, draft *planDraft) (*models.Plan, error) {
	if err := p.supersedeActivePlan(ctx, task); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	plan := &models.Plan{
		ID:                        uuid.NewString(),
		SessionID:                 task.SessionID,
		UserID:                    task.UserID,
		InitialGoal:               draft.InitialGoal,
		Summary:                   draft.Summary,
		OverallStatus:             models.PlanStatusInProgress,
		Source:                    models.SourcePlanner,
		HumanClarificationRequest: draft.HumanClarificationRequest,
		Timestamp:                 now,
	}
	if plan.InitialGoal == "" {
		plan.InitialGoal = task.Description
	}
	if err := p.store.AddPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("persist plan: %w", err)
	}

	for i, ds := range draft.Steps {
		agent, known := models.ParseAgentName(ds.Agent)
		if !known {
			p.logger.Warn("unknown agent in plan step, using Generic",
				"plan_id", plan.ID, "agent", ds.Agent)
		}
		step := &models.Step{
			ID:                  uuid.NewString(),
			PlanID:              plan.ID,
			SessionID:           task.SessionID,
			UserID:              task.UserID,
			Ordinal:             i,
			Action:              ds.Action,
			Agent:               agent,
			Status:              models.StepStatusPlanned,
			HumanApprovalStatus: models.ApprovalRequested,
			Timestamp:           now,
		}
		if err := p.store.AddStep(ctx, step); err != nil {
			return nil, fmt.Errorf("persist step %d: %w", i, err)
		}
	}

	announcement := fmt.Sprintf("Generated a plan with %d steps. Please review and approve the plan.", len(draft.Steps))
	if err := p.addMessage(ctx, plan, announcement); err != nil {
		return nil, err
	}
	if plan.HumanClarificationRequest != nil && *plan.HumanClarificationRequest != "" {
		q := "I need more information before I can proceed: " + *plan.HumanClarificationRequest
		if err := p.addMessage(ctx, plan, q); err != nil {
			return nil, err
		}
	}

	p.logger.Info("plan created",
		"plan_id", plan.ID, "session_id", plan.SessionID, "steps", len(draft.Steps))
	return plan, nil
}

// supersedeActivePlan fails the session's current in_progress plan so
// the incoming objective becomes the only active plan.
func (p *Planner) supersedeActivePlan(ctx context.Context, task *models.InputTask) error {
	prior, err := p.store.GetPlanBySession(ctx, task.UserID, task.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load prior plan: %w", err)
	}
	if prior.OverallStatus != models.PlanStatusInProgress {
		return nil
	}
	prior.OverallStatus = models.PlanStatusFailed
	if err := p.store.UpdatePlan(ctx, prior); err != nil {
		return fmt.Errorf("supersede plan %s: %w", prior.ID, err)
	}
	p.logger.Info("superseded active plan", "plan_id", prior.ID, "session_id", task.SessionID)
	return nil
}

// HandlePlanClarification records the user's answer to the planner's
// clarification request and acknowledges it in the message stream.
func (p *Planner) HandlePlanClarification(ctx context.Context, msg *models.HumanClarification) error {
	plan, err := p.loadPlan(ctx, msg)
	if err != nil {
		return err
	}
	plan.HumanClarificationResponse = &msg.Clarification
	if err := p.store.UpdatePlan(ctx, plan); err != nil {
		return fmt.Errorf("update plan %s: %w", plan.ID, err)
	}

	human := &models.AgentMessage{
		ID:        uuid.NewString(),
		SessionID: msg.SessionID,
		UserID:    msg.UserID,
		PlanID:    plan.ID,
		Source:    models.SourceHumanAgent,
		Content:   msg.Clarification,
		Timestamp: time.Now().UTC(),
	}
	if err := p.store.AddAgentMessage(ctx, human); err != nil {
		return fmt.Errorf("record clarification: %w", err)
	}
	ack := "Thank you. I have updated the plan with the additional information."
	if err := p.addMessage(ctx, plan, ack); err != nil {
		return err
	}
	p.logger.Info("plan clarification recorded", "plan_id", plan.ID)
	return nil
}

func (p *Planner) loadPlan(ctx context.Context, msg *models.HumanClarification) (*models.Plan, error) {
	if msg.PlanID != "" {
		return p.store.GetPlan(ctx, msg.UserID, msg.PlanID)
	}
	return p.store.GetPlanBySession(ctx, msg.UserID, msg.SessionID)
}

func (p *Planner) addMessage(ctx context.Context, plan *models.Plan, content string) error {
	m := &models.AgentMessage{
		ID:        uuid.NewString(),
		SessionID: plan.SessionID,
		UserID:    plan.UserID,
		PlanID:    plan.ID,
		Source:    models.SourcePlanner,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if err := p.store.AddAgentMessage(ctx, m); err != nil {
		return fmt.Errorf("record planner message: %w", err)
	}
	return nil
}

// catalogText flattens every specialist's tools into the planner-
// visible catalog.
func (p *Planner) catalogText() string {
	var entries []prompt.CatalogEntry
	for _, agent := range p.registry.Specialists() {
		for _, def := range p.registry.Slice(agent).LLMDefinitions() {
			entries = append(entries, prompt.CatalogEntry{
				Agent:       agent,
				Function:    def.Name,
				Description: def.Description,
				Arguments:   string(def.Parameters),
			})
		}
	}
	return prompt.ToolCatalogText(entries)
}
