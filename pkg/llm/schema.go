package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// compiledSchema carries a compiled schema so callers outside this file
// do not need the jsonschema types directly.
type compiledSchema struct {
	Schema *jsonschema.Schema
}

// compileSchema compiles a raw JSON Schema document for validation.
func compileSchema(raw json.RawMessage) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// validateJSON checks that data is valid JSON conforming to schema.
func validateJSON(schema *jsonschema.Schema, data []byte) error {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("output is not valid JSON: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("output violates schema: %w", err)
	}
	return nil
}

// ValidateAgainstSchema compiles raw and validates data against it in
// one shot. Used for tool-call argument checking where schemas are
// small and per-call.
func ValidateAgainstSchema(raw json.RawMessage, data []byte) error {
	schema, err := compileSchema(raw)
	if err != nil {
		return err
	}
	return validateJSON(schema, data)
}
