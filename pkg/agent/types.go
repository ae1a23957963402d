package agent

import (
	"strings"

	"github.com/marensys/toolgate/pkg/toolexec"
)

// Finish reasons reported by the provider collaborator.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
)

// Message is one entry in the conversation transcript.
type Message struct {
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
}

// ToolCallRequest is a tool invocation requested by the model.
// Arguments arrive as a JSON-encoded string.
type ToolCallRequest struct {
	ID       string       `json:"id"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// TokenUsage tracks token consumption across the turn.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ChatRequest is what the provider collaborator receives per model call.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []map[string]any
	Temperature float64
	MaxTokens   int
}

// ChatResponse is what the provider collaborator returns.
type ChatResponse struct {
	Content      string
	FinishReason string
	ToolCalls    []ToolCallRequest
	Usage        *TokenUsage
}

// ToolCallRecord is one append-only audit entry for an executed call.
type ToolCallRecord struct {
	ID        string          `json:"id"`
	Tool      string          `json:"tool"`
	Params    map[string]any  `json:"params"`
	Result    toolexec.Result `json:"result"`
	Iteration int             `json:"iteration"`
}

// RunParams configures one chat turn.
type RunParams struct {
	Messages     []Message
	Model        string
	AllowedTools []string // nil allows every activated tool
	DisableTools bool     // caller-level toggle
	Temperature  float64
	MaxTokens    int
	MaxRetries   int
}

// RunResult is the terminal response of one chat turn. ToolCalls is
// always non-nil, empty when no tool was invoked.
type RunResult struct {
	Content              string           `json:"content"`
	Model                string           `json:"model"`
	Service              string           `json:"service"`
	ToolCalls            []ToolCallRecord `json:"tool_calls"`
	MaxIterationsReached bool             `json:"max_iterations_reached,omitempty"`
	Usage                *TokenUsage      `json:"usage,omitempty"`
}

// IsRetryableError checks if a provider error should be retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	// Network errors
	if strings.Contains(msg, "connection reset") || strings.Contains(msg, "timeout") {
		return true
	}

	// Rate limits
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return true
	}

	// Server errors
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}

	return false
}
