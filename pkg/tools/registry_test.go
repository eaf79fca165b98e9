package tools

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/taskmesh/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestLoadEmbeddedCatalogs(t *testing.T) {
	registry, err := LoadEmbeddedCatalogs(testLogger())
	require.NoError(t, err)

	t.Run("every specialist has a slice with tools", func(t *testing.T) {
		for _, agent := range models.SpecialistAgents {
			slice := registry.Slice(agent)
			assert.NotEmpty(t, slice.List(), "agent %s has no tools", agent)
			assert.NotEmpty(t, slice.SystemMessage, "agent %s has no system message", agent)
		}
	})

	t.Run("every specialist has its fallback tool", func(t *testing.T) {
		cases := map[models.AgentName]string{
			models.AgentHR:          "hr_help_with_tasks",
			models.AgentTechSupport: "tech_support_help_with_tasks",
			models.AgentGeneric:     "generic_help_with_tasks",
		}
		for agent, name := range cases {
			_, err := registry.Slice(agent).Get(name)
			assert.NoError(t, err, "agent %s missing %s", agent, name)
		}
	})

	t.Run("unknown agent falls back to generic slice", func(t *testing.T) {
		slice := registry.Slice(models.AgentName("Finance"))
		assert.Equal(t, models.AgentGeneric, slice.Agent)
	})

	t.Run("scenario tools exist", func(t *testing.T) {
		_, err := registry.Slice(models.AgentTechSupport).Get("grant_database_access")
		assert.NoError(t, err)
		_, err = registry.Slice(models.AgentMarketing).Get("generate_press_release")
		assert.NoError(t, err)
	})
}

func TestSlice_LLMDefinitions(t *testing.T) {
	registry, err := LoadEmbeddedCatalogs(testLogger())
	require.NoError(t, err)

	defs := registry.Slice(models.AgentProcurement).LLMDefinitions()
	require.NotEmpty(t, defs)

	var found bool
	for _, def := range defs {
		if def.Name != "order_hardware" {
			continue
		}
		found = true
		var schema struct {
			Type       string         `json:"type"`
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		}
		require.NoError(t, json.Unmarshal(def.Parameters, &schema))
		assert.Equal(t, "object", schema.Type)
		assert.Contains(t, schema.Properties, "item_name")
		assert.Contains(t, schema.Properties, "quantity")
		assert.ElementsMatch(t, []string{"item_name", "quantity"}, schema.Required)
	}
	assert.True(t, found, "order_hardware definition missing")
}

func TestToolInvocation(t *testing.T) {
	registry, err := LoadEmbeddedCatalogs(testLogger())
	require.NoError(t, err)

	tool, err := registry.Slice(models.AgentProcurement).Get("order_hardware")
	require.NoError(t, err)

	t.Run("renders template with arguments", func(t *testing.T) {
		out, err := tool.Invoke(map[string]any{"item_name": "laptop", "quantity": float64(3)})
		require.NoError(t, err)
		assert.Contains(t, out, "laptop")
		assert.Contains(t, out, "3")
		assert.Contains(t, out, "Hardware Order Placed")
	})

	t.Run("missing required argument fails", func(t *testing.T) {
		_, err := tool.Invoke(map[string]any{"item_name": "laptop"})
		assert.Error(t, err)
	})
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "hr", snakeCase("HR"))
	assert.Equal(t, "tech_support", snakeCase("TechSupport"))
	assert.Equal(t, "marketing", snakeCase("Marketing"))
	assert.Equal(t, "generic", snakeCase("Generic"))
}

func TestRenderTemplate(t *testing.T) {
	t.Run("substitutes known placeholders", func(t *testing.T) {
		out := renderTemplate("Hello {name}, you are {age}.", map[string]any{
			"name": "Ada", "age": float64(36),
		})
		assert.Equal(t, "Hello Ada, you are 36.", out)
	})

	t.Run("leaves unknown placeholders visible", func(t *testing.T) {
		out := renderTemplate("Hello {name}.", map[string]any{})
		assert.Equal(t, "Hello {name}.", out)
	})

	t.Run("formats floats and bools", func(t *testing.T) {
		out := renderTemplate("{price} {active}", map[string]any{
			"price": 19.5, "active": true,
		})
		assert.Equal(t, "19.5 true", out)
	})

	t.Run("tolerates unclosed brace", func(t *testing.T) {
		out := renderTemplate("broken {name", map[string]any{"name": "Ada"})
		assert.Equal(t, "broken {name", out)
	})
}
