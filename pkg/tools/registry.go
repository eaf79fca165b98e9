// Package tools holds the per-specialist catalogs of callable tools.
// Tools are registered from JSON catalog files with explicit parameter
// schemas; invocation renders a deterministic Markdown confirmation
// from the tool's response template.
package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/taskmesh/taskmesh/pkg/llm"
	"github.com/taskmesh/taskmesh/pkg/models"
)

// InvokeFunc executes a tool against already-validated arguments.
type InvokeFunc func(args map[string]any) (string, error)

// Tool is one callable entry in a specialist's slice.
type Tool struct {
	Name        string
	Description string
	Parameters  []ParameterSpec
	Invoke      InvokeFunc
}

// Slice is the portion of the registry bound to one specialist.
type Slice struct {
	Agent         models.AgentName
	SystemMessage string

	order []string
	tools map[string]*Tool
}

// Registry maps every roster specialist to its tool slice.
type Registry struct {
	slices map[models.AgentName]*Slice
}

// NewRegistry builds an empty registry with a slice per specialist.
func NewRegistry() *Registry {
	r := &Registry{slices: make(map[models.AgentName]*Slice)}
	for _, a := range models.SpecialistAgents {
		r.slices[a] = &Slice{Agent: a, tools: make(map[string]*Tool)}
	}
	return r
}

// Slice returns the tool slice for the given specialist. Unknown agents
// get the Generic slice, mirroring roster fallback.
func (r *Registry) Slice(agent models.AgentName) *Slice {
	if s, ok := r.slices[agent]; ok {
		return s
	}
	return r.slices[models.AgentGeneric]
}

// Specialists returns the roster members with a registered slice, in
// stable order.
func (r *Registry) Specialists() []models.AgentName {
	out := make([]models.AgentName, 0, len(r.slices))
	for a := range r.slices {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Register adds a tool to the slice, replacing any same-named entry.
func (s *Slice) Register(t *Tool) {
	if _, exists := s.tools[t.Name]; !exists {
		s.order = append(s.order, t.Name)
	}
	s.tools[t.Name] = t
}

// List returns the slice's tools in registration order.
func (s *Slice) List() []*Tool {
	out := make([]*Tool, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tools[name])
	}
	return out
}

// Get returns the named tool, or an error naming the slice it was
// looked up in.
func (s *Slice) Get(name string) (*Tool, error) {
	t, ok := s.tools[name]
	if !ok {
		return nil, fmt.Errorf("tools: %s has no tool %q", s.Agent, name)
	}
	return t, nil
}

// LLMDefinitions converts the slice into the shape the LLM gateway
// expects: one function definition per tool with a JSON Schema built
// from the declared parameters.
func (s *Slice) LLMDefinitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(s.order))
	for _, t := range s.List() {
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  parameterSchema(t.Parameters),
		})
	}
	return defs
}

// parameterSchema builds the JSON Schema object for a parameter list.
func parameterSchema(params []ParameterSpec) json.RawMessage {
	properties := make(map[string]any, len(params))
	required := make([]string, 0, len(params))
	for _, p := range params {
		prop := map[string]any{"type": p.jsonType()}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		if p.IsRequired() {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)
	return raw
}

// fallbackToolName derives the catch-all tool name for a specialist,
// e.g. TechSupport -> tech_support_help_with_tasks.
func fallbackToolName(agent models.AgentName) string {
	return snakeCase(string(agent)) + "_help_with_tasks"
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] >= 'a' && s[i-1] <= 'z' {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ensureFallback guarantees the slice carries its catch-all tool.
func (s *Slice) ensureFallback() {
	name := fallbackToolName(s.Agent)
	if _, ok := s.tools[name]; ok {
		return
	}
	agent := s.Agent
	s.Register(&Tool{
		Name:        name,
		Description: fmt.Sprintf("Handle any %s request that no dedicated tool covers.", agent),
		Parameters: []ParameterSpec{
			{Name: "input", Type: "string", Description: "The request to handle."},
		},
		Invoke: func(args map[string]any) (string, error) {
			input, _ := args["input"].(string)
			return fmt.Sprintf("##### %s Assistance\n\n**Request:** %s\n\nThe %s team has taken note of this request and will handle it.",
				agent, input, agent), nil
		},
	})
}
