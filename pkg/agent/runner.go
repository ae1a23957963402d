package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/marensys/toolgate/internal/observability"
	"github.com/marensys/toolgate/pkg/toolexec"
)

// maxToolPayload caps a serialized tool result before it re-enters the
// transcript.
const maxToolPayload = 10 * 1024

// fallbackContent is returned when the provider ends a turn without
// usable content.
const fallbackContent = "Sorry, I couldn't complete that request."

// maxIterationsContent closes a turn that hit the iteration ceiling.
const maxIterationsContent = "I reached the maximum number of tool calls allowed for this request, so I stopped before finishing. The tool results gathered so far are included above."

// Runner drives the tool-calling loop for one chat turn at a time:
// model call, tool executions, model call, until a terminal state.
type Runner struct {
	tools    *toolexec.Manager
	provider Provider
	logger   zerolog.Logger
}

// Config holds runner configuration
type Config struct {
	Tools    *toolexec.Manager
	Provider Provider
	Logger   zerolog.Logger
}

// NewRunner creates a new runner
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool manager is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}

	return &Runner{
		tools:    cfg.Tools,
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}, nil
}

// Run executes one chat turn. Tool failures, malformed arguments, and
// the iteration ceiling are all designed terminal or recoverable states;
// only a provider failure surfaces as an error.
func (r *Runner) Run(ctx context.Context, params RunParams) (RunResult, error) {
	start := time.Now()
	turnID := uuid.NewString()
	logger := r.logger.With().Str("turn_id", turnID).Logger()

	messages := make([]Message, len(params.Messages))
	copy(messages, params.Messages)

	providerTools := r.buildProviderTools(logger, params)

	executor := r.tools.Executor()
	maxIterations := r.tools.MaxIterations()
	records := []ToolCallRecord{}
	iteration := 0
	var usage *TokenUsage

	for {
		resp, err := r.callWithRetry(ctx, ChatRequest{
			Model:       params.Model,
			Messages:    messages,
			Tools:       providerTools,
			Temperature: params.Temperature,
			MaxTokens:   params.MaxTokens,
		}, params.MaxRetries, logger)
		if err != nil {
			observability.RecordLoopRun("provider_error", time.Since(start), iteration)
			return RunResult{}, err
		}
		usage = accumulateUsage(usage, resp.Usage)

		switch {
		case resp.FinishReason == FinishToolCalls && len(resp.ToolCalls) > 0 && providerTools != nil:
			messages = append(messages, Message{
				Role:      "assistant",
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})

			for _, call := range resp.ToolCalls {
				record, ok := r.executeCall(ctx, executor, call, iteration, logger)
				if !ok {
					continue
				}
				records = append(records, record)
				messages = append(messages, Message{
					Role:       "tool",
					Content:    serializeResult(record.Result),
					ToolCallID: record.ID,
				})
			}

			iteration++
			if iteration >= maxIterations {
				logger.Warn().
					Int("iterations", iteration).
					Msg("Tool loop hit iteration ceiling")
				observability.RecordLoopRun("max_iterations", time.Since(start), iteration)
				return RunResult{
					Content:              maxIterationsContent,
					Model:                params.Model,
					Service:              r.provider.Name(),
					ToolCalls:            records,
					MaxIterationsReached: true,
					Usage:                usage,
				}, nil
			}

		case resp.FinishReason == FinishStop || resp.FinishReason == "":
			observability.RecordLoopRun("done", time.Since(start), iteration)
			return RunResult{
				Content:   resp.Content,
				Model:     params.Model,
				Service:   r.provider.Name(),
				ToolCalls: records,
				Usage:     usage,
			}, nil

		default:
			// Soft terminal state: length caps, content filters, or a
			// tool-call signal with nothing usable attached.
			logger.Warn().
				Str("finish_reason", resp.FinishReason).
				Msg("Provider ended turn with unexpected finish reason")
			content := resp.Content
			if content == "" {
				content = fallbackContent
			}
			observability.RecordLoopRun("fallback", time.Since(start), iteration)
			return RunResult{
				Content:   content,
				Model:     params.Model,
				Service:   r.provider.Name(),
				ToolCalls: records,
				Usage:     usage,
			}, nil
		}
	}
}

// buildProviderTools checks the loop preconditions and renders the tool
// array for the provider. A nil return means a tool-less call.
func (r *Runner) buildProviderTools(logger zerolog.Logger, params RunParams) []map[string]any {
	if params.DisableTools {
		return nil
	}
	if !r.tools.Enabled() {
		return nil
	}

	formatted, err := r.tools.Registry().ToProviderFormat(r.provider.Name(), params.AllowedTools)
	if err != nil {
		logger.Warn().Err(err).Msg("Tool formatting failed, continuing without tools")
		return nil
	}
	if len(formatted) == 0 {
		logger.Warn().
			Strs("allowed", params.AllowedTools).
			Msg("No tools survived the allow-list, continuing without tools")
		return nil
	}

	return formatted
}

// executeCall parses one requested call's arguments and executes it.
// Malformed arguments are logged and the call is skipped.
func (r *Runner) executeCall(ctx context.Context, executor *toolexec.Executor, call ToolCallRequest, iteration int, logger zerolog.Logger) (ToolCallRecord, bool) {
	callID := call.ID
	if callID == "" {
		callID = "call_" + gonanoid.Must(12)
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(call.Function.Arguments), &parsed); err != nil {
		logger.Warn().
			Str("tool", call.Function.Name).
			Str("call_id", callID).
			Err(err).
			Msg("Malformed tool call arguments, skipping call")
		return ToolCallRecord{}, false
	}

	result := executor.Execute(ctx, call.Function.Name, parsed)

	return ToolCallRecord{
		ID:        callID,
		Tool:      call.Function.Name,
		Params:    parsed,
		Result:    result,
		Iteration: iteration,
	}, true
}

// callWithRetry calls the provider with exponential backoff on
// transient failures. Retries are transport-level and do not consume
// loop iterations.
func (r *Runner) callWithRetry(ctx context.Context, req ChatRequest, maxRetries int, logger zerolog.Logger) (*ChatResponse, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		callStart := time.Now()
		resp, err := r.provider.GenerateChat(ctx, req)
		observability.RecordProviderCall(r.provider.Name(), time.Since(callStart), err == nil)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !IsRetryableError(err) {
			return nil, err
		}

		if attempt == maxRetries-1 {
			break
		}

		// Exponential backoff: 1s, 2s, 4s
		delay := time.Duration(1<<attempt) * time.Second
		logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying provider call after error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
}

// serializeResult renders an execution result for a tool-role message,
// truncating oversized payloads.
func serializeResult(result toolexec.Result) string {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"tool_name":%q,"error":"failed to serialize result"}`, result.ToolName)
	}
	if len(data) > maxToolPayload {
		return string(data[:maxToolPayload]) + "... [output truncated]"
	}
	return string(data)
}

func accumulateUsage(total, delta *TokenUsage) *TokenUsage {
	if delta == nil {
		return total
	}
	if total == nil {
		return &TokenUsage{InputTokens: delta.InputTokens, OutputTokens: delta.OutputTokens}
	}
	total.InputTokens += delta.InputTokens
	total.OutputTokens += delta.OutputTokens
	return total
}
