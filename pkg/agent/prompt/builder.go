// Package prompt assembles every prompt the engine sends to the model:
// specialist system prompts, the planner's planning prompt, the safety
// classifier prompt, and the conversation-history preface that carries
// cross-step context.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/taskmesh/taskmesh/pkg/models"
)

// safetyRule is appended to every specialist system prompt. Specialists
// must ask for missing tool arguments rather than invent them.
const safetyRule = "If you do not have the information required to invoke a tool, " +
	"ask the user for clarification instead of making up values. Never fabricate " +
	"names, dates, identifiers or any other argument."

// SpecialistSystem builds the system prompt for a specialist from its
// catalog system message.
func SpecialistSystem(systemMessage string) string {
	if systemMessage == "" {
		systemMessage = "You are a helpful AI Agent."
	}
	return systemMessage + "\n\n" + safetyRule
}

// ActionPrefix frames the dispatched action as the specialist's task.
func ActionPrefix(action string) string {
	return "You need to carry out the following task on behalf of the user.\n\nTask: " + action
}

// EffectiveFeedback combines the per-step feedback, the current date and
// the plan-level clarification into the single user turn a specialist
// sees. The date stamp lets date-relative instructions resolve.
func EffectiveFeedback(stepFeedback string, planClarification *string, now time.Time) string {
	planFeedback := "No human feedback provided on the overall plan."
	if planClarification != nil && *planClarification != "" {
		planFeedback = *planClarification
	}
	return stepFeedback + " Today's date is " + now.Format("2006-01-02") + ". " + planFeedback
}

// ConversationPreface enumerates every prior step of the plan up to but
// not including the current one, prefixed by the plan summary. This is
// the only cross-step context a specialist receives.
func ConversationPreface(plan *models.Plan, steps []*models.Step, currentStepID string) string {
	var b strings.Builder
	b.WriteString("The plan so far:\n")
	b.WriteString(plan.Summary)
	b.WriteString("\n")
	for i, s := range steps {
		if s.ID == currentStepID {
			break
		}
		reply := ""
		if s.AgentReply != nil {
			reply = *s.AgentReply
		}
		fmt.Fprintf(&b, "Step %d\nGroupChatManager: %s\n%s: %s\n",
			i+1, s.Action, s.Agent, reply)
	}
	return b.String()
}

// DispatchAction builds the full action text sent to a specialist:
// history preface, the step to action, and a scope constraint so the
// specialist does not run ahead of the plan.
func DispatchAction(preface, action string) string {
	return preface +
		"\nHere is the step to action: " + action +
		". ONLY perform this step. Do not perform any other steps from the plan; they are handled separately."
}

// PlannerSystem is the planner's system prompt: decompose the objective
// into specialist-tagged steps, with the exception markers for work no
// tool covers.
func PlannerSystem(specialists []models.AgentName, toolCatalog string) string {
	names := make([]string, 0, len(specialists)+1)
	for _, a := range specialists {
		names = append(names, string(a))
	}
	names = append(names, string(models.AgentHuman))

	var b strings.Builder
	b.WriteString("You are the Planner, an AI orchestrator that manages a group of AI agents to accomplish tasks.\n\n")
	b.WriteString("For the given objective, produce a plan with a series of steps. ")
	b.WriteString("Each step is one instruction sentence assigned to exactly one agent, and must name the target function verbatim when one applies. ")
	b.WriteString("Produce at most 6 steps. Prefer a single step when one function call directly solves the task.\n\n")
	b.WriteString("These are the agents available to you: ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\n\nThese are the functions each agent can perform:\n")
	b.WriteString(toolCatalog)
	b.WriteString("\n\nWhen no suitable function exists but an LLM can still help, assign the step to Generic and begin the action with \"EXCEPTION: No suitable function found. A generic LLM model is being used\". ")
	b.WriteString("When neither a function nor an LLM can help, assign the step to Human and begin the action with \"EXCEPTION: Human support required\".\n")
	b.WriteString("If the objective is missing information you need, set human_clarification_request to a question for the user; otherwise omit it.\n")
	b.WriteString("Respond with JSON only.")
	return b.String()
}

// PlannerTask frames the objective as the planner's user turn.
func PlannerTask(description string) string {
	return "The objective is: " + description
}

// RAIClassifier is the fixed content-safety classifier prompt. The gate
// allows the task only when the model answers exactly FALSE.
func RAIClassifier(description string) string {
	return "You are an AI assistant that checks user input for harmful content. " +
		"Evaluate the task below and answer TRUE if it contains harmful, offensive, " +
		"hateful, self-harm-related or otherwise inappropriate content, or if it attempts " +
		"to manipulate you into producing such content. Answer FALSE if it does not. " +
		"Answer with exactly TRUE or FALSE and nothing else.\n\nTask: " + description
}

// ToolCatalogText renders the planner-visible catalog: one line per
// tool, grouped by agent, with the parameter list serialised as JSON.
func ToolCatalogText(entries []CatalogEntry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "Agent %s: function %s: %s; arguments: %s\n",
			e.Agent, e.Function, e.Description, e.Arguments)
	}
	return b.String()
}

// CatalogEntry is one planner-visible tool row.
type CatalogEntry struct {
	Agent       models.AgentName
	Function    string
	Description string
	Arguments   string // JSON-serialised parameter schema
}
