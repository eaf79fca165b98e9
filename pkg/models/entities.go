// Package models defines the persistent entities and in-process message
// types shared across the orchestration engine.
package models

import "time"

// DataType discriminates document kinds inside the partitioned store.
type DataType string

const (
	DataTypeSession      DataType = "session"
	DataTypePlan         DataType = "plan"
	DataTypeStep         DataType = "step"
	DataTypeAgentMessage DataType = "agent_message"
)

// AllDataTypes lists every persisted document kind, in deletion order.
var AllDataTypes = []DataType{
	DataTypeAgentMessage,
	DataTypeStep,
	DataTypePlan,
	DataTypeSession,
}

// AgentName identifies a member of the specialist roster.
type AgentName string

const (
	AgentHR          AgentName = "HR"
	AgentMarketing   AgentName = "Marketing"
	AgentProcurement AgentName = "Procurement"
	AgentProduct     AgentName = "Product"
	AgentTechSupport AgentName = "TechSupport"
	AgentGeneric     AgentName = "Generic"
	AgentHuman       AgentName = "Human"
)

// SpecialistAgents lists the roster members that execute steps through the
// tool-calling loop. Human is not included; Human steps complete on
// feedback receipt without an LLM call.
var SpecialistAgents = []AgentName{
	AgentHR,
	AgentMarketing,
	AgentProcurement,
	AgentProduct,
	AgentTechSupport,
	AgentGeneric,
}

// Message source names for components that are not roster specialists.
const (
	SourcePlanner          = "PlannerAgent"
	SourceHumanAgent       = "HumanAgent"
	SourceGroupChatManager = "GroupChatManager"
)

// ParseAgentName maps a string to a roster name. Unknown strings return
// (Generic, false) so planner output with fabricated agents degrades
// instead of failing.
func ParseAgentName(s string) (AgentName, bool) {
	switch AgentName(s) {
	case AgentHR, AgentMarketing, AgentProcurement, AgentProduct,
		AgentTechSupport, AgentGeneric, AgentHuman:
		return AgentName(s), true
	}
	return AgentGeneric, false
}

// PlanStatus is the overall plan lifecycle state.
type PlanStatus string

const (
	PlanStatusInProgress PlanStatus = "in_progress"
	PlanStatusCompleted  PlanStatus = "completed"
	PlanStatusFailed     PlanStatus = "failed"
)

// StepStatus is the per-step lifecycle state.
type StepStatus string

const (
	StepStatusPlanned          StepStatus = "planned"
	StepStatusAwaitingFeedback StepStatus = "awaiting_feedback"
	StepStatusApproved         StepStatus = "approved"
	StepStatusRejected         StepStatus = "rejected"
	StepStatusActionRequested  StepStatus = "action_requested"
	StepStatusCompleted        StepStatus = "completed"
	StepStatusFailed           StepStatus = "failed"
)

// Terminal reports whether the status is immutable. Terminal steps are
// never re-dispatched and replayed feedback on them is a no-op.
func (s StepStatus) Terminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusRejected:
		return true
	}
	return false
}

// HumanApprovalStatus tracks the human judgement attached to a step.
type HumanApprovalStatus string

const (
	ApprovalRequested HumanApprovalStatus = "requested"
	ApprovalAccepted  HumanApprovalStatus = "accepted"
	ApprovalRejected  HumanApprovalStatus = "rejected"
)

// Session identifies a single user objective run. Sessions have no
// terminal state; they are reused when the caller supplies an id.
type Session struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	CurrentStatus string    `json:"current_status"`
	MessageToUser string    `json:"message_to_user,omitempty"`
	Timestamp     time.Time `json:"ts"`
}

// Plan is the planner's decomposition of an objective. At most one active
// plan exists per (user_id, session_id).
type Plan struct {
	ID                         string     `json:"id"`
	SessionID                  string     `json:"session_id"`
	UserID                     string     `json:"user_id"`
	InitialGoal                string     `json:"initial_goal"`
	Summary                    string     `json:"summary"`
	OverallStatus              PlanStatus `json:"overall_status"`
	Source                     string     `json:"source"`
	HumanClarificationRequest  *string    `json:"human_clarification_request,omitempty"`
	HumanClarificationResponse *string    `json:"human_clarification_response,omitempty"`
	Timestamp                  time.Time  `json:"ts"`
}

// Step is an ordered unit of work within a plan, tagged with the
// specialist that will execute it.
type Step struct {
	ID                  string              `json:"id"`
	PlanID              string              `json:"plan_id"`
	SessionID           string              `json:"session_id"`
	UserID              string              `json:"user_id"`
	Ordinal             int                 `json:"ordinal"`
	Action              string              `json:"action"`
	Agent               AgentName           `json:"agent"`
	Status              StepStatus          `json:"status"`
	HumanApprovalStatus HumanApprovalStatus `json:"human_approval_status"`
	HumanFeedback       *string             `json:"human_feedback,omitempty"`
	UpdatedAction       *string             `json:"updated_action,omitempty"`
	AgentReply          *string             `json:"agent_reply,omitempty"`
	Timestamp           time.Time           `json:"ts"`
}

// EffectiveAction returns the action the specialist must execute,
// preferring a human-updated action over the planned one.
func (s *Step) EffectiveAction() string {
	if s.UpdatedAction != nil && *s.UpdatedAction != "" {
		return *s.UpdatedAction
	}
	return s.Action
}

// AgentMessage is an append-only conversational record within a session.
type AgentMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	PlanID    string    `json:"plan_id"`
	StepID    *string   `json:"step_id,omitempty"`
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"ts"`
}
