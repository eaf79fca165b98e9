package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPlanJSON = `{
	"initial_goal": "Onboard Jessica Smith",
	"steps": [
		{"action": "Schedule orientation using schedule_orientation_session", "agent": "HR"},
		{"action": "Set up laptop using configure_laptop", "agent": "TechSupport"}
	],
	"summary_plan_and_steps": "Two step onboarding plan."
}`

func TestParsePlanDraft_DirectJSON(t *testing.T) {
	draft, err := parsePlanDraft(validPlanJSON)
	require.NoError(t, err)
	assert.Equal(t, "Onboard Jessica Smith", draft.InitialGoal)
	require.Len(t, draft.Steps, 2)
	assert.Equal(t, "HR", draft.Steps[0].Agent)
}

func TestParsePlanDraft_FencedCodeBlock(t *testing.T) {
	raw := "Here is the plan you asked for:\n```json\n" + validPlanJSON + "\n```\nLet me know."
	draft, err := parsePlanDraft(raw)
	require.NoError(t, err)
	require.Len(t, draft.Steps, 2)
	assert.Equal(t, "TechSupport", draft.Steps[1].Agent)
}

func TestParsePlanDraft_LooseObjectMatch(t *testing.T) {
	raw := "Sure! " + validPlanJSON + " Hope this helps."
	draft, err := parsePlanDraft(raw)
	require.NoError(t, err)
	assert.Len(t, draft.Steps, 2)
}

func TestParsePlanDraft_BulletListFallback(t *testing.T) {
	raw := `Plan for onboarding Jessica Smith.
1. HR: Schedule an orientation session
2. TechSupport: Configure her laptop
3. Review everything once more`
	draft, err := parsePlanDraft(raw)
	require.NoError(t, err)
	require.Len(t, draft.Steps, 3)
	assert.Equal(t, "HR", draft.Steps[0].Agent)
	assert.Equal(t, "Schedule an orientation session", draft.Steps[0].Action)
	assert.Equal(t, "TechSupport", draft.Steps[1].Agent)
	// No agent tag means Generic.
	assert.Equal(t, "Generic", draft.Steps[2].Agent)
	assert.Equal(t, "Plan for onboarding Jessica Smith.", draft.InitialGoal)
}

func TestParsePlanDraft_ListWithAgentSuffix(t *testing.T) {
	raw := `- Schedule orientation (HR)
- Draft welcome email (TechSupport)`
	draft, err := parsePlanDraft(raw)
	require.NoError(t, err)
	require.Len(t, draft.Steps, 2)
	assert.Equal(t, "HR", draft.Steps[0].Agent)
	assert.Equal(t, "Schedule orientation", draft.Steps[0].Action)
}

func TestParsePlanDraft_UnrecognisedAgentGoesGeneric(t *testing.T) {
	raw := "1. Finance: Approve the budget"
	draft, err := parsePlanDraft(raw)
	require.NoError(t, err)
	require.Len(t, draft.Steps, 1)
	assert.Equal(t, "Generic", draft.Steps[0].Agent)
}

func TestParsePlanDraft_CapsListAtMaxSteps(t *testing.T) {
	raw := `1. HR: a
2. HR: b
3. HR: c
4. HR: d
5. HR: e
6. HR: f
7. HR: g`
	draft, err := parsePlanDraft(raw)
	require.NoError(t, err)
	assert.Len(t, draft.Steps, MaxPlanSteps)
}

func TestParsePlanDraft_NothingMatches(t *testing.T) {
	_, err := parsePlanDraft("I cannot help with that.")
	assert.Error(t, err)
}

func TestParsePlanDraft_EmptyStepsRejected(t *testing.T) {
	_, err := parsePlanDraft(`{"initial_goal":"x","steps":[],"summary_plan_and_steps":"y"}`)
	assert.Error(t, err)
}
