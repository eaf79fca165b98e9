package models

// PlanWithSteps is the read-model returned by the plans endpoint: the
// plan document joined with its steps plus aggregate state counters.
type PlanWithSteps struct {
	Plan
	Steps []*Step `json:"steps"`

	TotalSteps            int `json:"total_steps"`
	PlannedSteps          int `json:"planned"`
	AwaitingFeedbackSteps int `json:"awaiting_feedback"`
	ApprovedSteps         int `json:"approved"`
	RejectedSteps         int `json:"rejected"`
	ActionRequestedSteps  int `json:"action_requested"`
	CompletedSteps        int `json:"completed"`
	FailedSteps           int `json:"failed"`
}

// NewPlanWithSteps aggregates step counters and derives the overall
// status: a plan is completed exactly when every step is terminal
// (completed or failed; rejected steps count as failed work that will
// never run).
func NewPlanWithSteps(plan *Plan, steps []*Step) *PlanWithSteps {
	p := &PlanWithSteps{
		Plan:       *plan,
		Steps:      steps,
		TotalSteps: len(steps),
	}
	for _, s := range steps {
		switch s.Status {
		case StepStatusPlanned:
			p.PlannedSteps++
		case StepStatusAwaitingFeedback:
			p.AwaitingFeedbackSteps++
		case StepStatusApproved:
			p.ApprovedSteps++
		case StepStatusRejected:
			p.RejectedSteps++
		case StepStatusActionRequested:
			p.ActionRequestedSteps++
		case StepStatusCompleted:
			p.CompletedSteps++
		case StepStatusFailed:
			p.FailedSteps++
		}
	}
	if p.TotalSteps > 0 && p.CompletedSteps+p.FailedSteps+p.RejectedSteps == p.TotalSteps {
		p.OverallStatus = PlanStatusCompleted
	}
	return p
}
