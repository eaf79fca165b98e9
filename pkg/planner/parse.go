package planner

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/taskmesh/taskmesh/pkg/models"
)

var (
	fencedBlockRE = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	planObjectRE  = regexp.MustCompile(`(?s)\{.*"initial_goal".*"steps".*\}`)
	listItemRE    = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+(.*)$`)
	agentPrefixRE = regexp.MustCompile(`^([A-Za-z]+)\s*[:\-]\s+(.+)$`)
	agentSuffixRE = regexp.MustCompile(`^(.+?)\s*[\[(]\s*(?:agent\s*[:=]\s*)?([A-Za-z]+)\s*[\])]\s*\.?$`)
)

// parsePlanDraft runs the parsing ladder over raw model output:
// direct JSON, JSON in fenced code blocks, a loose object match, and
// finally bullet-list reconstruction. Model output drifts between these
// shapes in practice; the ladder keeps plan creation available.
func parsePlanDraft(raw string) (*planDraft, error) {
	if draft, err := decodeDraft(raw); err == nil {
		return draft, nil
	}
	for _, m := range fencedBlockRE.FindAllStringSubmatch(raw, -1) {
		if draft, err := decodeDraft(m[1]); err == nil {
			return draft, nil
		}
	}
	if m := planObjectRE.FindString(raw); m != "" {
		if draft, err := decodeDraft(m); err == nil {
			return draft, nil
		}
	}
	if draft := draftFromList(raw); draft != nil {
		return draft, nil
	}
	return nil, fmt.Errorf("planner: no parse strategy matched the output")
}

// decodeDraft parses strict JSON and requires at least one step.
func decodeDraft(s string) (*planDraft, error) {
	var draft planDraft
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &draft); err != nil {
		return nil, err
	}
	if len(draft.Steps) == 0 {
		return nil, fmt.Errorf("draft has no steps")
	}
	return &draft, nil
}

// draftFromList reconstructs steps from numbered or bulleted prose.
// Lines like "1. HR: schedule orientation" yield an agent-tagged step;
// unrecognised agents fall to Generic. Returns nil when no list items
// are found.
func draftFromList(raw string) *planDraft {
	var steps []draftStep
	for _, line := range strings.Split(raw, "\n") {
		m := listItemRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item := strings.TrimSpace(m[1])
		if item == "" {
			continue
		}
		steps = append(steps, splitAgentAndAction(item))
		if len(steps) == MaxPlanSteps {
			break
		}
	}
	if len(steps) == 0 {
		return nil
	}
	return &planDraft{
		InitialGoal: firstNonListLine(raw),
		Steps:       steps,
		Summary:     fmt.Sprintf("Reconstructed a %d-step plan from the model's free-form output.", len(steps)),
	}
}

// splitAgentAndAction looks for "Agent: action" or "action (Agent)"
// shapes; anything else becomes a Generic step.
func splitAgentAndAction(item string) draftStep {
	if m := agentPrefixRE.FindStringSubmatch(item); m != nil {
		if _, known := models.ParseAgentName(m[1]); known {
			return draftStep{Action: strings.TrimSpace(m[2]), Agent: m[1]}
		}
	}
	if m := agentSuffixRE.FindStringSubmatch(item); m != nil {
		if _, known := models.ParseAgentName(m[2]); known {
			return draftStep{Action: strings.TrimSpace(m[1]), Agent: m[2]}
		}
	}
	return draftStep{Action: item, Agent: string(models.AgentGeneric)}
}

func firstNonListLine(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || listItemRE.MatchString(line) {
			continue
		}
		return trimmed
	}
	return ""
}
