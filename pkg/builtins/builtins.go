// Package builtins ships the baseline tools every deployment can
// activate from configuration without writing a handler.
package builtins

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/marensys/toolgate/pkg/toolexec"
)

// Definitions returns the catalog entries for every builtin tool.
func Definitions() []toolexec.Definition {
	return []toolexec.Definition{
		calculatorTool(),
		currentTimeTool(),
		echoTool(),
		randomNumberTool(),
		weatherTool(),
	}
}

// NewManifest builds a manifest holding only the builtin tools.
func NewManifest() (*toolexec.Manifest, error) {
	return toolexec.NewManifest(Definitions()...)
}

// RegisterHandlers installs the builtin handlers into a handler table.
func RegisterHandlers(table *toolexec.HandlerTable) error {
	if table == nil {
		return errors.New("handler table is required")
	}

	handlers := map[string]toolexec.HandlerFunc{
		"calculator":    calculatorHandler,
		"current_time":  currentTimeHandler,
		"echo":          echoHandler,
		"random_number": randomNumberHandler,
	}

	for name, fn := range handlers {
		if err := table.Register(name, fn); err != nil {
			return fmt.Errorf("failed to register handler %s: %w", name, err)
		}
	}
	return nil
}

func calculatorTool() toolexec.Definition {
	return toolexec.Definition{
		Name:        "calculator",
		Description: "Evaluate an arithmetic expression with +, -, *, / and parentheses.",
		Kind:        toolexec.KindBuiltin,
		Parameters: toolexec.ObjectSchema(map[string]toolexec.Property{
			"expression": {Type: "string", Description: "Arithmetic expression, e.g. \"(2 + 3) * 4\""},
		}, "expression"),
	}
}

func calculatorHandler(ctx context.Context, params map[string]any) (map[string]any, error) {
	expression, _ := params["expression"].(string)
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("expression is required")
	}

	value, err := evaluate(expression)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"expression": expression,
		"result":     value,
	}, nil
}

func currentTimeTool() toolexec.Definition {
	return toolexec.Definition{
		Name:        "current_time",
		Description: "Return the current time in the requested format.",
		Kind:        toolexec.KindBuiltin,
		Parameters: toolexec.ObjectSchema(map[string]toolexec.Property{
			"format": {
				Type:        "string",
				Description: "Output format",
				Enum:        []any{"rfc3339", "unix", "human"},
			},
		}),
	}
}

func currentTimeHandler(ctx context.Context, params map[string]any) (map[string]any, error) {
	format, _ := params["format"].(string)
	now := time.Now()

	var rendered string
	switch format {
	case "", "rfc3339":
		rendered = now.Format(time.RFC3339)
	case "unix":
		rendered = fmt.Sprintf("%d", now.Unix())
	case "human":
		rendered = now.Format("Monday, January 2, 2006 at 3:04 PM MST")
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	return map[string]any{
		"time":   rendered,
		"format": formatOrDefault(format),
	}, nil
}

func formatOrDefault(format string) string {
	if format == "" {
		return "rfc3339"
	}
	return format
}

func echoTool() toolexec.Definition {
	return toolexec.Definition{
		Name:        "echo",
		Description: "Echo the provided message back unchanged.",
		Kind:        toolexec.KindBuiltin,
		Parameters: toolexec.ObjectSchema(map[string]toolexec.Property{
			"message": {Type: "string", Description: "Message to echo"},
		}, "message"),
	}
}

func echoHandler(ctx context.Context, params map[string]any) (map[string]any, error) {
	message, _ := params["message"].(string)
	return map[string]any{"message": message}, nil
}

func randomNumberTool() toolexec.Definition {
	return toolexec.Definition{
		Name:        "random_number",
		Description: "Generate a random integer within an inclusive range.",
		Kind:        toolexec.KindBuiltin,
		Parameters: toolexec.ObjectSchema(map[string]toolexec.Property{
			"min": {Type: "integer", Description: "Lower bound (default 0)"},
			"max": {Type: "integer", Description: "Upper bound (default 100)"},
		}),
	}
}

func randomNumberHandler(ctx context.Context, params map[string]any) (map[string]any, error) {
	min := int64(0)
	max := int64(100)
	if raw, ok := params["min"].(float64); ok {
		min = int64(raw)
	}
	if raw, ok := params["max"].(float64); ok {
		max = int64(raw)
	}
	if min > max {
		return nil, fmt.Errorf("min (%d) must not exceed max (%d)", min, max)
	}

	value := min + rand.Int64N(max-min+1)

	return map[string]any{
		"value": value,
		"min":   min,
		"max":   max,
	}, nil
}

// weatherTool is a mock used in demos and integration tests. It never
// reaches a backend; the static result is returned as-is.
func weatherTool() toolexec.Definition {
	return toolexec.Definition{
		Name:        "get_weather",
		Description: "Get the current weather for a city (mock data).",
		Kind:        toolexec.KindMock,
		Parameters: toolexec.ObjectSchema(map[string]toolexec.Property{
			"city": {Type: "string", Description: "City name"},
			"unit": {
				Type:        "string",
				Description: "Temperature unit",
				Enum:        []any{"celsius", "fahrenheit"},
			},
		}, "city"),
		StaticResult: map[string]any{
			"temperature": 21,
			"unit":        "celsius",
			"condition":   "partly cloudy",
		},
	}
}
