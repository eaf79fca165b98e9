package agent

import (
	"encoding/json"
	"fmt"
)

// decodeArguments parses the model's tool-call argument string. An
// empty string means no arguments rather than malformed JSON.
func decodeArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return args, nil
}
