package agent

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/taskmesh/pkg/models"
	"github.com/taskmesh/taskmesh/pkg/store"
)

func seedHumanStep(t *testing.T, st *store.MemoryStore, agent models.AgentName, status models.StepStatus) *models.Step {
	t.Helper()
	ctx := context.Background()
	plan := &models.Plan{
		ID:            uuid.NewString(),
		SessionID:     "s1",
		UserID:        "u1",
		InitialGoal:   "goal",
		Summary:       "summary",
		OverallStatus: models.PlanStatusInProgress,
		Source:        models.SourcePlanner,
	}
	require.NoError(t, st.AddPlan(ctx, plan))
	step := &models.Step{
		ID:                  uuid.NewString(),
		PlanID:              plan.ID,
		SessionID:           "s1",
		UserID:              "u1",
		Action:              "Provide more details about: goal",
		Agent:               agent,
		Status:              status,
		HumanApprovalStatus: models.ApprovalRequested,
	}
	require.NoError(t, st.AddStep(ctx, step))
	return step
}

func TestHumanAgent_FeedbackCompletesHumanStep(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	h := NewHumanAgent(st, slog.Default())
	step := seedHumanStep(t, st, models.AgentHuman, models.StepStatusPlanned)

	feedback := "The budget is 5000 dollars."
	approval, err := h.HandleStepFeedback(ctx, &models.HumanFeedback{
		SessionID: "s1",
		PlanID:    step.PlanID,
		StepID:    step.ID,
		UserID:    "u1",
		Approved:  true,
		Feedback:  &feedback,
	})
	require.NoError(t, err)
	require.NotNil(t, approval)
	require.NotNil(t, approval.StepID)
	assert.Equal(t, step.ID, *approval.StepID)
	assert.True(t, approval.Approved)

	got, err := st.GetStep(ctx, "u1", "s1", step.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusCompleted, got.Status)
	require.NotNil(t, got.AgentReply)
	assert.Equal(t, feedback, *got.AgentReply)
	require.NotNil(t, got.HumanFeedback)
	assert.Equal(t, feedback, *got.HumanFeedback)

	messages, err := st.ListMessagesBySession(ctx, "u1", "s1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, models.SourceHumanAgent, messages[0].Source)
	assert.Contains(t, messages[0].Content, feedback)
}

func TestHumanAgent_SpecialistStepKeepsStatus(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	h := NewHumanAgent(st, slog.Default())
	step := seedHumanStep(t, st, models.AgentHR, models.StepStatusPlanned)

	feedback := "Looks good."
	updated := "Schedule orientation for Monday instead."
	_, err := h.HandleStepFeedback(ctx, &models.HumanFeedback{
		SessionID:     "s1",
		PlanID:        step.PlanID,
		StepID:        step.ID,
		UserID:        "u1",
		Approved:      true,
		Feedback:      &feedback,
		UpdatedAction: &updated,
	})
	require.NoError(t, err)

	got, err := st.GetStep(ctx, "u1", "s1", step.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusPlanned, got.Status, "only the manager advances specialist steps")
	require.NotNil(t, got.UpdatedAction)
	assert.Equal(t, updated, *got.UpdatedAction)
	assert.Equal(t, updated, got.EffectiveAction())
}

func TestHumanAgent_TerminalStepIsImmutable(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	h := NewHumanAgent(st, slog.Default())

	for _, status := range []models.StepStatus{
		models.StepStatusCompleted,
		models.StepStatusFailed,
		models.StepStatusRejected,
	} {
		t.Run(string(status), func(t *testing.T) {
			step := seedHumanStep(t, st, models.AgentHuman, status)
			reply := "first answer"
			feedback := "keep me"
			step.AgentReply = &reply
			step.HumanFeedback = &feedback
			require.NoError(t, st.UpdateStep(ctx, step))
			before, err := st.GetStep(ctx, "u1", "s1", step.ID)
			require.NoError(t, err)

			later := "overwrite attempt"
			updated := "changed action"
			approval, err := h.HandleStepFeedback(ctx, &models.HumanFeedback{
				SessionID:     "s1",
				PlanID:        step.PlanID,
				StepID:        step.ID,
				UserID:        "u1",
				Approved:      true,
				Feedback:      &later,
				UpdatedAction: &updated,
			})
			require.NoError(t, err)
			assert.Nil(t, approval, "replay against a terminal step yields no approval")

			// Nothing on the document changed, including its timestamp.
			got, err := st.GetStep(ctx, "u1", "s1", step.ID)
			require.NoError(t, err)
			assert.Equal(t, status, got.Status)
			assert.Equal(t, "first answer", *got.AgentReply)
			assert.Equal(t, "keep me", *got.HumanFeedback)
			assert.Nil(t, got.UpdatedAction)
			assert.Equal(t, before.Timestamp, got.Timestamp)
		})
	}

	messages, err := st.ListMessagesBySession(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Empty(t, messages, "no feedback messages for terminal steps")
}

func TestHumanAgent_UnknownStepIgnored(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	h := NewHumanAgent(st, slog.Default())

	approval, err := h.HandleStepFeedback(ctx, &models.HumanFeedback{
		SessionID: "s1",
		PlanID:    uuid.NewString(),
		StepID:    uuid.NewString(),
		UserID:    "u1",
		Approved:  true,
	})
	require.NoError(t, err)
	assert.Nil(t, approval)
}
