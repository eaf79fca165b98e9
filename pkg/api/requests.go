package api

// inputTaskRequest starts (or continues) a session with an objective.
type inputTaskRequest struct {
	SessionID   string `json:"session_id"`
	Description string `json:"description" binding:"required"`
}

type inputTaskResponse struct {
	Status      string `json:"status"`
	SessionID   string `json:"session_id,omitempty"`
	PlanID      string `json:"plan_id,omitempty"`
	Description string `json:"description,omitempty"`
}

// humanFeedbackRequest approves or rejects one step.
type humanFeedbackRequest struct {
	SessionID     string  `json:"session_id" binding:"required"`
	PlanID        string  `json:"plan_id" binding:"required"`
	StepID        string  `json:"step_id" binding:"required"`
	Approved      *bool   `json:"approved" binding:"required"`
	HumanFeedback *string `json:"human_feedback"`
	UpdatedAction *string `json:"updated_action"`
}

// clarificationRequest answers the planner's clarification question.
type clarificationRequest struct {
	SessionID          string `json:"session_id" binding:"required"`
	PlanID             string `json:"plan_id"`
	HumanClarification string `json:"human_clarification" binding:"required"`
}

// approveStepsRequest approves or rejects one step, or every
// non-terminal step of the plan when step_id is omitted.
type approveStepsRequest struct {
	SessionID     string  `json:"session_id" binding:"required"`
	PlanID        string  `json:"plan_id" binding:"required"`
	StepID        *string `json:"step_id"`
	Approved      *bool   `json:"approved" binding:"required"`
	HumanFeedback *string `json:"human_feedback"`
}

// agentToolRow is one row of the flattened tool catalog.
type agentToolRow struct {
	Agent       string `json:"agent"`
	Function    string `json:"function"`
	Description string `json:"description"`
	Arguments   string `json:"arguments"`
}
