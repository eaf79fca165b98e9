package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taskmesh/taskmesh/pkg/models"
	"github.com/taskmesh/taskmesh/pkg/rai"
	"github.com/taskmesh/taskmesh/pkg/runtime"
	"github.com/taskmesh/taskmesh/pkg/store"
	"github.com/taskmesh/taskmesh/pkg/tools"
	"github.com/taskmesh/taskmesh/pkg/version"
)

// Handler wires the HTTP surface to the session runtime and store.
type Handler struct {
	store    store.Store
	runtime  *runtime.Manager
	gate     *rai.Gate
	registry *tools.Registry
	logger   *slog.Logger
}

// NewHandler builds the API handler set.
func NewHandler(st store.Store, rt *runtime.Manager, gate *rai.Gate, registry *tools.Registry, logger *slog.Logger) *Handler {
	return &Handler{
		store:    st,
		runtime:  rt,
		gate:     gate,
		registry: registry,
		logger:   logger.With("component", "api"),
	}
}

// handleInputTask runs the safety gate, then creates a plan for the
// objective. A blocked task acknowledges without creating anything.
func (h *Handler) handleInputTask(c *gin.Context) {
	var req inputTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.gate.Allowed(c.Request.Context(), req.Description) {
		c.JSON(http.StatusOK, inputTaskResponse{Status: "Plan not created"})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	session, err := h.runtime.GetOrCreate(c.Request.Context(), sessionID, userID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	var plan *models.Plan
	err = session.Do(c.Request.Context(), func(ctx context.Context) error {
		var err error
		plan, err = session.Manager().HandleInputTask(ctx, &models.InputTask{
			SessionID:   sessionID,
			UserID:      userID(c),
			Description: req.Description,
		})
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, inputTaskResponse{
		Status:      "Plan created",
		SessionID:   sessionID,
		PlanID:      plan.ID,
		Description: req.Description,
	})
}

// handleHumanFeedback applies step-level approval or rejection through
// the human agent.
func (h *Handler) handleHumanFeedback(c *gin.Context) {
	var req humanFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := h.runtime.GetOrCreate(c.Request.Context(), req.SessionID, userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	err = session.Do(c.Request.Context(), func(ctx context.Context) error {
		return session.Manager().HandleStepFeedback(ctx, &models.HumanFeedback{
			SessionID:     req.SessionID,
			PlanID:        req.PlanID,
			StepID:        req.StepID,
			UserID:        userID(c),
			Approved:      *req.Approved,
			Feedback:      req.HumanFeedback,
			UpdatedAction: req.UpdatedAction,
		})
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "Feedback received",
		"session_id": req.SessionID,
		"step_id":    req.StepID,
	})
}

// handlePlanClarification records the user's answer to the planner's
// clarification request.
func (h *Handler) handlePlanClarification(c *gin.Context) {
	var req clarificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := h.runtime.GetOrCreate(c.Request.Context(), req.SessionID, userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	err = session.Do(c.Request.Context(), func(ctx context.Context) error {
		return session.Manager().HandlePlanClarification(ctx, &models.HumanClarification{
			SessionID:     req.SessionID,
			PlanID:        req.PlanID,
			UserID:        userID(c),
			Clarification: req.HumanClarification,
		})
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "Clarification received",
		"session_id": req.SessionID,
	})
}

// handleApproveSteps approves or rejects one step or every remaining
// step of a plan.
func (h *Handler) handleApproveSteps(c *gin.Context) {
	var req approveStepsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := h.runtime.GetOrCreate(c.Request.Context(), req.SessionID, userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	err = session.Do(c.Request.Context(), func(ctx context.Context) error {
		return session.Manager().HandleHumanApproval(ctx, &models.ApprovalRequest{
			SessionID: req.SessionID,
			PlanID:    req.PlanID,
			StepID:    req.StepID,
			UserID:    userID(c),
			Approved:  *req.Approved,
			Feedback:  req.HumanFeedback,
		})
	})
	if err != nil {
		writeError(c, err)
		return
	}
	status := "Steps approved"
	if !*req.Approved {
		status = "Steps rejected"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// handleListPlans returns every plan in the session, superseded ones
// included, or the user's most recent plans when no session is named.
func (h *Handler) handleListPlans(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	var plans []*models.Plan
	if sessionID := c.Query("session_id"); sessionID != "" {
		var err error
		plans, err = h.store.ListPlansBySession(ctx, uid, sessionID)
		if err != nil {
			writeError(c, err)
			return
		}
	} else {
		var err error
		plans, err = h.store.ListPlans(ctx, uid, store.DefaultPlanListLimit)
		if err != nil {
			writeError(c, err)
			return
		}
	}

	out := make([]*models.PlanWithSteps, 0, len(plans))
	for _, plan := range plans {
		steps, err := h.store.ListStepsByPlan(ctx, uid, plan.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		out = append(out, models.NewPlanWithSteps(plan, steps))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) handleListSteps(c *gin.Context) {
	steps, err := h.store.ListStepsByPlan(c.Request.Context(), userID(c), c.Param("plan_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, steps)
}

func (h *Handler) handleListAgentMessages(c *gin.Context) {
	messages, err := h.store.ListMessagesBySession(c.Request.Context(), userID(c), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *Handler) handleListMessages(c *gin.Context) {
	messages, err := h.store.ListMessagesByUser(c.Request.Context(), userID(c), store.DefaultMessageListLimit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// handleDeleteMessages removes every document the user owns.
func (h *Handler) handleDeleteMessages(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	for _, dataType := range models.AllDataTypes {
		if err := h.store.DeleteAllOfType(ctx, dataType, uid); err != nil {
			writeError(c, err)
			return
		}
	}
	h.logger.Info("user data deleted", "user_id", uid)
	c.JSON(http.StatusOK, gin.H{"status": "All messages deleted"})
}

// handleAgentTools returns the flattened tool catalog across every
// specialist.
func (h *Handler) handleAgentTools(c *gin.Context) {
	var rows []agentToolRow
	for _, agent := range h.registry.Specialists() {
		for _, def := range h.registry.Slice(agent).LLMDefinitions() {
			rows = append(rows, agentToolRow{
				Agent:       string(agent),
				Function:    def.Name,
				Description: def.Description,
				Arguments:   string(def.Parameters),
			})
		}
	}
	c.JSON(http.StatusOK, rows)
}

// handleHealth reports liveness and store reachability.
func (h *Handler) handleHealth(c *gin.Context) {
	if err := h.store.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"version": version.Full(),
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": version.Full()})
}
