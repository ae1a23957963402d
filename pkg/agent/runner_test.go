package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marensys/toolgate/internal/config"
	"github.com/marensys/toolgate/pkg/toolexec"
)

// stubProvider scripts responses per call and records every request.
type stubProvider struct {
	name    string
	respond func(call int, req ChatRequest) (*ChatResponse, error)
	calls   []ChatRequest
}

func (s *stubProvider) GenerateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	s.calls = append(s.calls, req)
	return s.respond(len(s.calls)-1, req)
}

func (s *stubProvider) Name() string {
	if s.name == "" {
		return toolexec.ProviderOpenAI
	}
	return s.name
}

func stopResponse(content string) *ChatResponse {
	return &ChatResponse{Content: content, FinishReason: FinishStop}
}

func toolCallResponse(calls ...ToolCallRequest) *ChatResponse {
	return &ChatResponse{FinishReason: FinishToolCalls, ToolCalls: calls}
}

func echoCall(id, arguments string) ToolCallRequest {
	return ToolCallRequest{
		ID:       id,
		Function: FunctionCall{Name: "echo", Arguments: arguments},
	}
}

func newTestManager(t *testing.T, maxIterations int) *toolexec.Manager {
	t.Helper()

	manifest, err := toolexec.NewManifest(
		toolexec.Definition{
			Name:        "echo",
			Description: "Echoes a message",
			Kind:        toolexec.KindBuiltin,
			Parameters: toolexec.ObjectSchema(map[string]toolexec.Property{
				"message": {Type: "string", Description: "Message to echo"},
			}, "message"),
		},
		toolexec.Definition{
			Name:        "broken",
			Description: "Always fails",
			Kind:        toolexec.KindBuiltin,
			Parameters:  toolexec.ObjectSchema(nil),
		},
	)
	require.NoError(t, err)

	handlers := toolexec.NewHandlerTable()
	require.NoError(t, handlers.Register("echo", func(ctx context.Context, params map[string]any) (map[string]any, error) {
		return map[string]any{"echoed": params["message"]}, nil
	}))
	require.NoError(t, handlers.Register("broken", func(ctx context.Context, params map[string]any) (map[string]any, error) {
		return nil, errors.New("backend exploded")
	}))

	m := toolexec.NewManager(toolexec.ManagerConfig{
		Manifest:      manifest,
		Handlers:      handlers,
		MaxIterations: maxIterations,
		Logger:        zerolog.Nop(),
	})
	m.LoadTools([]config.ToolActivation{{Name: "echo"}, {Name: "broken"}})
	return m
}

func newTestRunner(t *testing.T, tools *toolexec.Manager, provider Provider) *Runner {
	t.Helper()
	r, err := NewRunner(Config{Tools: tools, Provider: provider, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return r
}

func userTurn(prompt string) RunParams {
	return RunParams{
		Messages: []Message{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: prompt},
		},
		Model: "test-model",
	}
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(Config{Provider: &stubProvider{}})
	assert.Error(t, err)

	_, err = NewRunner(Config{Tools: newTestManager(t, 5)})
	assert.Error(t, err)
}

func TestRunner_FirstCallStops_EmptyToolCalls(t *testing.T) {
	provider := &stubProvider{
		respond: func(call int, req ChatRequest) (*ChatResponse, error) {
			return stopResponse("plain answer"), nil
		},
	}
	r := newTestRunner(t, newTestManager(t, 5), provider)

	result, err := r.Run(context.Background(), userTurn("hi"))
	require.NoError(t, err)

	assert.Equal(t, "plain answer", result.Content)
	assert.Equal(t, "test-model", result.Model)
	assert.Equal(t, toolexec.ProviderOpenAI, result.Service)
	require.NotNil(t, result.ToolCalls)
	assert.Empty(t, result.ToolCalls)
	assert.False(t, result.MaxIterationsReached)
	assert.Len(t, provider.calls, 1)
}

func TestRunner_AttachesProviderFormattedTools(t *testing.T) {
	provider := &stubProvider{
		respond: func(call int, req ChatRequest) (*ChatResponse, error) {
			return stopResponse("ok"), nil
		},
	}
	r := newTestRunner(t, newTestManager(t, 5), provider)

	_, err := r.Run(context.Background(), userTurn("hi"))
	require.NoError(t, err)

	require.Len(t, provider.calls, 1)
	tools := provider.calls[0].Tools
	require.Len(t, tools, 2)
	assert.Equal(t, "function", tools[0]["type"])
	fn := tools[0]["function"].(map[string]any)
	assert.Equal(t, "echo", fn["name"])
}

func TestRunner_AllowListFiltersTools(t *testing.T) {
	provider := &stubProvider{
		respond: func(call int, req ChatRequest) (*ChatResponse, error) {
			return stopResponse("ok"), nil
		},
	}
	r := newTestRunner(t, newTestManager(t, 5), provider)

	params := userTurn("hi")
	params.AllowedTools = []string{"echo"}
	_, err := r.Run(context.Background(), params)
	require.NoError(t, err)

	tools := provider.calls[0].Tools
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0]["function"].(map[string]any)["name"])
}

func TestRunner_DisabledToolsFallBackToPlainCall(t *testing.T) {
	provider := &stubProvider{
		respond: func(call int, req ChatRequest) (*ChatResponse, error) {
			return stopResponse("ok"), nil
		},
	}

	t.Run("caller toggle", func(t *testing.T) {
		r := newTestRunner(t, newTestManager(t, 5), provider)
		params := userTurn("hi")
		params.DisableTools = true

		_, err := r.Run(context.Background(), params)
		require.NoError(t, err)
		assert.Nil(t, provider.calls[len(provider.calls)-1].Tools)
	})

	t.Run("empty registry", func(t *testing.T) {
		empty := toolexec.NewManager(toolexec.ManagerConfig{Logger: zerolog.Nop()})
		r := newTestRunner(t, empty, provider)

		_, err := r.Run(context.Background(), userTurn("hi"))
		require.NoError(t, err)
		assert.Nil(t, provider.calls[len(provider.calls)-1].Tools)
	})

	t.Run("allow-list removes everything", func(t *testing.T) {
		r := newTestRunner(t, newTestManager(t, 5), provider)
		params := userTurn("hi")
		params.AllowedTools = []string{"no_such_tool"}

		_, err := r.Run(context.Background(), params)
		require.NoError(t, err)
		assert.Nil(t, provider.calls[len(provider.calls)-1].Tools)
	})
}

func TestRunner_SingleToolRoundThenStop(t *testing.T) {
	provider := &stubProvider{
		respond: func(call int, req ChatRequest) (*ChatResponse, error) {
			if call == 0 {
				return toolCallResponse(echoCall("call_1", `{"message":"ping"}`)), nil
			}
			return stopResponse("final answer"), nil
		},
	}
	r := newTestRunner(t, newTestManager(t, 5), provider)

	result, err := r.Run(context.Background(), userTurn("use echo"))
	require.NoError(t, err)

	assert.Equal(t, "final answer", result.Content)
	require.Len(t, result.ToolCalls, 1)
	record := result.ToolCalls[0]
	assert.Equal(t, "call_1", record.ID)
	assert.Equal(t, "echo", record.Tool)
	assert.Equal(t, map[string]any{"message": "ping"}, record.Params)
	assert.Equal(t, 0, record.Iteration)
	assert.True(t, record.Result.Success)

	// Second model call sees the assistant tool-call message and the
	// tool-role result tied to the originating call id.
	require.Len(t, provider.calls, 2)
	followup := provider.calls[1].Messages
	assistant := followup[len(followup)-2]
	assert.Equal(t, "assistant", assistant.Role)
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "call_1", assistant.ToolCalls[0].ID)

	toolMsg := followup[len(followup)-1]
	assert.Equal(t, "tool", toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolMsg.Content), &payload))
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "ping", payload["echoed"])
}

func TestRunner_MaxIterationsReached(t *testing.T) {
	provider := &stubProvider{
		respond: func(call int, req ChatRequest) (*ChatResponse, error) {
			return toolCallResponse(echoCall(fmt.Sprintf("call_%d", call), `{"message":"again"}`)), nil
		},
	}
	r := newTestRunner(t, newTestManager(t, 2), provider)

	result, err := r.Run(context.Background(), userTurn("loop forever"))
	require.NoError(t, err)

	assert.True(t, result.MaxIterationsReached)
	assert.Contains(t, result.Content, "reached the maximum number of tool calls")
	require.Len(t, result.ToolCalls, 2)
	assert.Equal(t, 0, result.ToolCalls[0].Iteration)
	assert.Equal(t, 1, result.ToolCalls[1].Iteration)

	// No further model call after the ceiling.
	assert.Len(t, provider.calls, 2)
}

func TestRunner_MalformedArgumentsSkipped(t *testing.T) {
	provider := &stubProvider{
		respond: func(call int, req ChatRequest) (*ChatResponse, error) {
			if call == 0 {
				return toolCallResponse(
					echoCall("bad", `{bad json`),
					echoCall("good", `{"message":"ok"}`),
				), nil
			}
			return stopResponse("done"), nil
		},
	}
	r := newTestRunner(t, newTestManager(t, 5), provider)

	result, err := r.Run(context.Background(), userTurn("go"))
	require.NoError(t, err)

	// The malformed call is skipped, the turn survives.
	assert.Equal(t, "done", result.Content)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "good", result.ToolCalls[0].ID)
}

func TestRunner_FailingToolSurfacedToModel(t *testing.T) {
	provider := &stubProvider{
		respond: func(call int, req ChatRequest) (*ChatResponse, error) {
			if call == 0 {
				return toolCallResponse(ToolCallRequest{
					ID:       "call_broken",
					Function: FunctionCall{Name: "broken", Arguments: `{}`},
				}), nil
			}
			return stopResponse("recovered"), nil
		},
	}
	r := newTestRunner(t, newTestManager(t, 5), provider)

	result, err := r.Run(context.Background(), userTurn("break it"))
	require.NoError(t, err)

	assert.Equal(t, "recovered", result.Content)
	require.Len(t, result.ToolCalls, 1)
	assert.False(t, result.ToolCalls[0].Result.Success)

	// The error message reaches the model through the tool-role message.
	followup := provider.calls[1].Messages
	toolMsg := followup[len(followup)-1]
	assert.Equal(t, "tool", toolMsg.Role)
	assert.Contains(t, toolMsg.Content, "backend exploded")
}

func TestRunner_UnknownToolSurfacedNotFatal(t *testing.T) {
	provider := &stubProvider{
		respond: func(call int, req ChatRequest) (*ChatResponse, error) {
			if call == 0 {
				return toolCallResponse(ToolCallRequest{
					ID:       "call_x",
					Function: FunctionCall{Name: "ghost", Arguments: `{}`},
				}), nil
			}
			return stopResponse("done"), nil
		},
	}
	r := newTestRunner(t, newTestManager(t, 5), provider)

	result, err := r.Run(context.Background(), userTurn("go"))
	require.NoError(t, err)

	require.Len(t, result.ToolCalls, 1)
	assert.False(t, result.ToolCalls[0].Result.Success)
	assert.Contains(t, result.ToolCalls[0].Result.Error, "tool not found")
}

func TestRunner_SynthesizesMissingCallIDs(t *testing.T) {
	provider := &stubProvider{
		respond: func(call int, req ChatRequest) (*ChatResponse, error) {
			if call == 0 {
				return toolCallResponse(echoCall("", `{"message":"x"}`)), nil
			}
			return stopResponse("done"), nil
		},
	}
	r := newTestRunner(t, newTestManager(t, 5), provider)

	result, err := r.Run(context.Background(), userTurn("go"))
	require.NoError(t, err)

	require.Len(t, result.ToolCalls, 1)
	assert.NotEmpty(t, result.ToolCalls[0].ID)
	assert.Contains(t, result.ToolCalls[0].ID, "call_")
}

func TestRunner_UnexpectedFinishReasonSoftTerminal(t *testing.T) {
	tests := []struct {
		name     string
		response *ChatResponse
		expected string
	}{
		{
			name:     "length cap with content",
			response: &ChatResponse{Content: "partial...", FinishReason: "length"},
			expected: "partial...",
		},
		{
			name:     "content filter without content",
			response: &ChatResponse{FinishReason: "content_filter"},
			expected: fallbackContent,
		},
		{
			name:     "tool call signal without calls",
			response: &ChatResponse{FinishReason: FinishToolCalls},
			expected: fallbackContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &stubProvider{
				respond: func(call int, req ChatRequest) (*ChatResponse, error) {
					return tt.response, nil
				},
			}
			r := newTestRunner(t, newTestManager(t, 5), provider)

			result, err := r.Run(context.Background(), userTurn("go"))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Content)
			assert.Empty(t, result.ToolCalls)
		})
	}
}

func TestRunner_RetriesTransientProviderErrors(t *testing.T) {
	provider := &stubProvider{
		respond: func(call int, req ChatRequest) (*ChatResponse, error) {
			if call == 0 {
				return nil, errors.New("429 rate limit exceeded")
			}
			return stopResponse("after retry"), nil
		},
	}
	r := newTestRunner(t, newTestManager(t, 5), provider)

	result, err := r.Run(context.Background(), userTurn("go"))
	require.NoError(t, err)
	assert.Equal(t, "after retry", result.Content)
	assert.Len(t, provider.calls, 2)
}

func TestRunner_NonRetryableProviderErrorReturned(t *testing.T) {
	provider := &stubProvider{
		respond: func(call int, req ChatRequest) (*ChatResponse, error) {
			return nil, errors.New("401 invalid api key")
		},
	}
	r := newTestRunner(t, newTestManager(t, 5), provider)

	_, err := r.Run(context.Background(), userTurn("go"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Len(t, provider.calls, 1)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
	}{
		{nil, false},
		{errors.New("429 too many requests"), true},
		{errors.New("rate limit hit"), true},
		{errors.New("503 service unavailable"), true},
		{errors.New("connection reset by peer"), true},
		{errors.New("401 unauthorized"), false},
		{errors.New("model not found"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.retryable, IsRetryableError(tt.err), "%v", tt.err)
	}
}
