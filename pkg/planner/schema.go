// Package planner turns an objective into a structured plan of
// specialist-tagged steps using schema-constrained LLM output, with a
// parsing ladder and a two-step fallback so a plan is always created.
package planner

import (
	"encoding/json"

	"github.com/taskmesh/taskmesh/pkg/models"
)

// MaxPlanSteps bounds the number of steps the planner may produce.
const MaxPlanSteps = 6

// planDraft is the shape the planner asks the model to produce.
type planDraft struct {
	InitialGoal               string      `json:"initial_goal"`
	Steps                     []draftStep `json:"steps"`
	Summary                   string      `json:"summary_plan_and_steps"`
	HumanClarificationRequest *string     `json:"human_clarification_request,omitempty"`
}

type draftStep struct {
	Action string `json:"action"`
	Agent  string `json:"agent"`
}

// responseSchema builds the JSON Schema constraining planner output.
// The agent enumeration is derived from the live roster so the model
// cannot invent specialists.
func responseSchema() json.RawMessage {
	agents := make([]string, 0, len(models.SpecialistAgents)+1)
	for _, a := range models.SpecialistAgents {
		agents = append(agents, string(a))
	}
	agents = append(agents, string(models.AgentHuman))

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"initial_goal": map[string]any{"type": "string"},
			"steps": map[string]any{
				"type":     "array",
				"maxItems": MaxPlanSteps,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"action": map[string]any{"type": "string"},
						"agent":  map[string]any{"type": "string", "enum": agents},
					},
					"required": []string{"action", "agent"},
				},
			},
			"summary_plan_and_steps":      map[string]any{"type": "string"},
			"human_clarification_request": map[string]any{"type": "string"},
		},
		"required": []string{"initial_goal", "steps", "summary_plan_and_steps"},
	}
	raw, _ := json.Marshal(schema)
	return raw
}
