package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/taskmesh/pkg/models"
	"github.com/taskmesh/taskmesh/pkg/store"
	testdb "github.com/taskmesh/taskmesh/test/database"
)

func TestPostgresStore_DocumentLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping database integration test in short mode")
	}
	s := testdb.NewTestStore(t)
	ctx := context.Background()

	session := &models.Session{ID: uuid.NewString(), UserID: "u1", CurrentStatus: "active"}
	require.NoError(t, s.AddSession(ctx, session))
	assert.False(t, session.Timestamp.IsZero())

	plan := &models.Plan{
		ID:            uuid.NewString(),
		SessionID:     session.ID,
		UserID:        "u1",
		InitialGoal:   "order laptops",
		Summary:       "procurement plan",
		OverallStatus: models.PlanStatusInProgress,
		Source:        models.SourcePlanner,
	}
	require.NoError(t, s.AddPlan(ctx, plan))
	assert.ErrorIs(t, s.AddPlan(ctx, plan), store.ErrConflict)

	step := &models.Step{
		ID:                  uuid.NewString(),
		PlanID:              plan.ID,
		SessionID:           session.ID,
		UserID:              "u1",
		Ordinal:             0,
		Action:              "order 5 laptops using order_hardware",
		Agent:               models.AgentProcurement,
		Status:              models.StepStatusPlanned,
		HumanApprovalStatus: models.ApprovalRequested,
	}
	require.NoError(t, s.AddStep(ctx, step))

	t.Run("reads are user scoped", func(t *testing.T) {
		_, err := s.GetPlan(ctx, "someone-else", plan.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		got, err := s.GetPlan(ctx, "u1", plan.ID)
		require.NoError(t, err)
		assert.Equal(t, plan.InitialGoal, got.InitialGoal)
	})

	t.Run("update bumps timestamp and persists payload", func(t *testing.T) {
		before := step.Timestamp
		step.Status = models.StepStatusApproved
		require.NoError(t, s.UpdateStep(ctx, step))
		assert.True(t, step.Timestamp.After(before))

		got, err := s.GetStep(ctx, "u1", session.ID, step.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StepStatusApproved, got.Status)
	})

	t.Run("steps list by plan in ordinal order", func(t *testing.T) {
		later := &models.Step{
			ID:        uuid.NewString(),
			PlanID:    plan.ID,
			SessionID: session.ID,
			UserID:    "u1",
			Ordinal:   1,
			Action:    "confirm delivery",
			Agent:     models.AgentHuman,
			Status:    models.StepStatusPlanned,
		}
		require.NoError(t, s.AddStep(ctx, later))

		steps, err := s.ListStepsByPlan(ctx, "u1", plan.ID)
		require.NoError(t, err)
		require.Len(t, steps, 2)
		assert.Equal(t, 0, steps[0].Ordinal)
		assert.Equal(t, 1, steps[1].Ordinal)
	})

	t.Run("messages keep insertion order", func(t *testing.T) {
		var ids []string
		for i := 0; i < 3; i++ {
			msg := &models.AgentMessage{
				ID:        uuid.NewString(),
				SessionID: session.ID,
				UserID:    "u1",
				PlanID:    plan.ID,
				Source:    models.SourcePlanner,
				Content:   "progress note",
			}
			require.NoError(t, s.AddAgentMessage(ctx, msg))
			ids = append(ids, msg.ID)
		}
		messages, err := s.ListMessagesBySession(ctx, "u1", session.ID)
		require.NoError(t, err)
		require.Len(t, messages, 3)
		for i, msg := range messages {
			assert.Equal(t, ids[i], msg.ID)
		}
	})

	t.Run("delete all of type is user scoped", func(t *testing.T) {
		require.NoError(t, s.DeleteAllOfType(ctx, models.DataTypeAgentMessage, "u1"))
		messages, err := s.ListMessagesBySession(ctx, "u1", session.ID)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("health pings the pool", func(t *testing.T) {
		assert.NoError(t, s.Health(ctx))
	})
}

func TestPostgresStore_GetPlanBySessionReturnsNewest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping database integration test in short mode")
	}
	s := testdb.NewTestStore(t)
	ctx := context.Background()

	sessionID := uuid.NewString()
	first := &models.Plan{ID: uuid.NewString(), SessionID: sessionID, UserID: "u1", OverallStatus: models.PlanStatusInProgress}
	second := &models.Plan{ID: uuid.NewString(), SessionID: sessionID, UserID: "u1", OverallStatus: models.PlanStatusInProgress}
	require.NoError(t, s.AddPlan(ctx, first))
	require.NoError(t, s.AddPlan(ctx, second))

	got, err := s.GetPlanBySession(ctx, "u1", sessionID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}
