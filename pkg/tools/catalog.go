package tools

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/taskmesh/taskmesh/pkg/models"
)

//go:embed catalogs/*.json
var catalogFS embed.FS

// CatalogFile is the on-disk shape of one specialist's tool catalog.
type CatalogFile struct {
	AgentName     string     `json:"agent_name"`
	SystemMessage string     `json:"system_message"`
	Tools         []ToolSpec `json:"tools"`
}

// ToolSpec declares one tool: its signature and the Markdown template
// its invocation renders.
type ToolSpec struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Parameters       []ParameterSpec `json:"parameters"`
	ResponseTemplate string          `json:"response_template"`
}

// ParameterSpec is one typed field of a tool signature.
type ParameterSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    *bool  `json:"required,omitempty"`
}

// IsRequired treats parameters as required unless marked otherwise.
func (p ParameterSpec) IsRequired() bool {
	return p.Required == nil || *p.Required
}

// jsonType maps the catalog's type names onto JSON Schema types.
func (p ParameterSpec) jsonType() string {
	switch p.Type {
	case "int", "integer":
		return "integer"
	case "float", "number":
		return "number"
	case "bool", "boolean":
		return "boolean"
	default:
		return "string"
	}
}

// LoadEmbeddedCatalogs builds the registry from the catalogs compiled
// into the binary, then guarantees every slice has its fallback tool.
func LoadEmbeddedCatalogs(logger *slog.Logger) (*Registry, error) {
	return LoadCatalogs(catalogFS, "catalogs", logger)
}

// LoadCatalogs reads every *.json catalog under dir in fsys and
// registers the declared tools. Unknown agent names are skipped with a
// warning rather than failing startup.
func LoadCatalogs(fsys fs.FS, dir string, logger *slog.Logger) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("tools: read catalog dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	registry := NewRegistry()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("tools: read catalog %s: %w", entry.Name(), err)
		}
		var file CatalogFile
		if err := json.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("tools: parse catalog %s: %w", entry.Name(), err)
		}
		agent, known := models.ParseAgentName(file.AgentName)
		if !known {
			logger.Warn("catalog names unknown agent, skipping",
				"file", entry.Name(), "agent", file.AgentName)
			continue
		}
		slice := registry.Slice(agent)
		slice.SystemMessage = file.SystemMessage
		for _, spec := range file.Tools {
			slice.Register(buildTool(spec))
		}
		logger.Info("loaded tool catalog",
			"agent", agent, "tools", len(file.Tools))
	}

	for _, a := range models.SpecialistAgents {
		registry.Slice(a).ensureFallback()
	}
	return registry, nil
}

// buildTool turns a declared spec into an invocable tool whose
// invocation renders the response template against the arguments.
func buildTool(spec ToolSpec) *Tool {
	template := spec.ResponseTemplate
	params := spec.Parameters
	name := spec.Name
	return &Tool{
		Name:        spec.Name,
		Description: spec.Description,
		Parameters:  spec.Parameters,
		Invoke: func(args map[string]any) (string, error) {
			for _, p := range params {
				if !p.IsRequired() {
					continue
				}
				if _, ok := args[p.Name]; !ok {
					return "", fmt.Errorf("tools: %s missing required argument %q", name, p.Name)
				}
			}
			return renderTemplate(template, args), nil
		},
	}
}
