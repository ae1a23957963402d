package toolexec

import (
	"context"
	"encoding/json"
	"time"
)

// Kind selects how a tool body is executed.
type Kind string

const (
	// KindMock returns a canned static result without running any code.
	KindMock Kind = "mock"
	// KindBuiltin dispatches to a handler shipped with the binary.
	KindBuiltin Kind = "builtin"
	// KindInternal dispatches to a handler wired in by the host service.
	KindInternal Kind = "internal"
	// KindHTTP is recognized only so registration can reject it.
	KindHTTP Kind = "http"
)

// Property describes a single parameter in a tool schema.
// The subset mirrors what providers accept: type, description, enum, items.
type Property struct {
	Type        string    `json:"type,omitempty"`
	Description string    `json:"description,omitempty"`
	Enum        []any     `json:"enum,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// Schema is the JSON-Schema object subset describing tool parameters.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// ObjectSchema returns an object schema over the given properties.
func ObjectSchema(properties map[string]Property, required ...string) *Schema {
	return &Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// Definition describes a callable tool. Definitions are immutable once
// registered for a config generation.
type Definition struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Kind        Kind    `json:"type"`
	HandlerKey  string  `json:"handler,omitempty"`
	Parameters  *Schema `json:"parameters"`

	// StaticResult is returned verbatim for mock tools.
	StaticResult map[string]any `json:"static_result,omitempty"`

	// Timeout overrides the executor's default for this tool when > 0.
	Timeout time.Duration `json:"-"`
}

// HandlerFunc is the signature for builtin and internal tool bodies.
// The returned map is spread into the serialized execution result.
type HandlerFunc func(ctx context.Context, params map[string]any) (map[string]any, error)

// Result is the normalized outcome of one tool execution.
type Result struct {
	Success         bool
	ToolName        string
	ExecutionTimeMS int64
	Data            map[string]any
	Error           string
}

// MarshalJSON flattens Data next to the envelope fields, matching the
// shape tool-role transcript messages carry back to the model.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Data)+4)
	for k, v := range r.Data {
		out[k] = v
	}
	out["success"] = r.Success
	out["tool_name"] = r.ToolName
	out["execution_time_ms"] = r.ExecutionTimeMS
	if r.Error != "" {
		out["error"] = r.Error
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a Result from its flattened form.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["success"].(bool); ok {
		r.Success = v
	}
	if v, ok := raw["tool_name"].(string); ok {
		r.ToolName = v
	}
	if v, ok := raw["execution_time_ms"].(float64); ok {
		r.ExecutionTimeMS = int64(v)
	}
	if v, ok := raw["error"].(string); ok {
		r.Error = v
	}
	delete(raw, "success")
	delete(raw, "tool_name")
	delete(raw, "execution_time_ms")
	delete(raw, "error")
	if len(raw) > 0 {
		r.Data = raw
	}
	return nil
}

// failure builds an error result stamped with the elapsed time.
func failure(toolName string, start time.Time, message string) Result {
	return Result{
		Success:         false,
		ToolName:        toolName,
		ExecutionTimeMS: time.Since(start).Milliseconds(),
		Error:           message,
	}
}
