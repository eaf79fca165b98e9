package models

// InputTask carries a new objective from the HTTP boundary to the
// group chat manager.
type InputTask struct {
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id"`
	Description string `json:"description"`
}

// HumanFeedback carries step-level approval or rejection from the user.
type HumanFeedback struct {
	SessionID     string  `json:"session_id"`
	PlanID        string  `json:"plan_id"`
	StepID        string  `json:"step_id"`
	UserID        string  `json:"user_id"`
	Approved      bool    `json:"approved"`
	Feedback      *string `json:"human_feedback,omitempty"`
	UpdatedAction *string `json:"updated_action,omitempty"`
}

// HumanClarification carries the user's answer to a planner
// clarification request.
type HumanClarification struct {
	SessionID     string `json:"session_id"`
	PlanID        string `json:"plan_id"`
	UserID        string `json:"user_id"`
	Clarification string `json:"human_clarification"`
}

// ApprovalRequest instructs the group chat manager to advance one step
// (StepID set) or every non-terminal step (StepID nil) of a plan.
type ApprovalRequest struct {
	SessionID string  `json:"session_id"`
	PlanID    string  `json:"plan_id"`
	StepID    *string `json:"step_id,omitempty"`
	UserID    string  `json:"user_id"`
	Approved  bool    `json:"approved"`
	Feedback  *string `json:"human_feedback,omitempty"`
}

// ActionRequest dispatches one approved step to its specialist.
type ActionRequest struct {
	SessionID string `json:"session_id"`
	PlanID    string `json:"plan_id"`
	StepID    string `json:"step_id"`
	UserID    string `json:"user_id"`
	Action    string `json:"action"`
}

// ActionResponse reports a specialist's terminal outcome for a step.
type ActionResponse struct {
	SessionID string     `json:"session_id"`
	PlanID    string     `json:"plan_id"`
	StepID    string     `json:"step_id"`
	UserID    string     `json:"user_id"`
	Result    string     `json:"result"`
	Status    StepStatus `json:"status"`
}
