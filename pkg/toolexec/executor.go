package toolexec

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/marensys/toolgate/internal/observability"
)

// Executor turns a (name, params) request into a normalized Result.
// Handler errors, panics, and timeouts never propagate past it.
type Executor struct {
	registry       *Registry
	handlers       *HandlerTable
	defaultTimeout time.Duration
	logger         zerolog.Logger
}

// NewExecutor creates an executor over the given registry and handler table.
func NewExecutor(registry *Registry, handlers *HandlerTable, defaultTimeout time.Duration, logger zerolog.Logger) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &Executor{
		registry:       registry,
		handlers:       handlers,
		defaultTimeout: defaultTimeout,
		logger:         logger,
	}
}

// Execute validates params against the tool's schema, dispatches by
// execution kind, and times the whole exchange. It never returns a Go
// error; every failure mode lands in the Result's error variant.
func (e *Executor) Execute(ctx context.Context, name string, params map[string]any) Result {
	start := time.Now()

	def, ok := e.registry.Get(name)
	if !ok {
		e.logger.Warn().Str("tool", name).Msg("Tool not found")
		res := failure(name, start, fmt.Sprintf("tool not found: %s", name))
		observability.RecordToolExecution(name, time.Since(start), false)
		return res
	}

	if err := e.validateParams(def, params); err != nil {
		e.logger.Warn().Str("tool", name).Err(err).Msg("Parameter validation failed")
		res := failure(name, start, err.Error())
		observability.RecordToolExecution(name, time.Since(start), false)
		return res
	}

	var res Result
	switch def.Kind {
	case KindMock:
		res = Result{
			Success:         true,
			ToolName:        name,
			ExecutionTimeMS: time.Since(start).Milliseconds(),
			Data:            def.StaticResult,
		}

	case KindBuiltin, KindInternal:
		res = e.dispatch(ctx, def, params, start)

	default:
		// Registration rejects every other kind.
		res = failure(name, start, fmt.Sprintf("unknown execution kind %q", def.Kind))
	}

	e.logger.Debug().
		Str("tool", name).
		Bool("success", res.Success).
		Int64("execution_time_ms", res.ExecutionTimeMS).
		Msg("Tool execution completed")
	observability.RecordToolExecution(name, time.Since(start), res.Success)

	return res
}

// dispatch resolves the handler and runs it under the tool's time box.
func (e *Executor) dispatch(ctx context.Context, def *Definition, params map[string]any, start time.Time) Result {
	key := def.HandlerKey
	if key == "" {
		key = def.Name
	}

	handler, ok := e.handlers.Get(key)
	if !ok {
		return failure(def.Name, start, fmt.Sprintf("no handler registered for tool %q (handler key %q)", def.Name, key))
	}

	timeout := e.defaultTimeout
	if def.Timeout > 0 {
		timeout = def.Timeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultChan := make(chan map[string]any, 1)
	errChan := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errChan <- fmt.Errorf("handler panic: %v", r)
			}
		}()

		data, err := handler(timeoutCtx, params)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- data
		}
	}()

	select {
	case data := <-resultChan:
		return Result{
			Success:         true,
			ToolName:        def.Name,
			ExecutionTimeMS: time.Since(start).Milliseconds(),
			Data:            data,
		}

	case err := <-errChan:
		return failure(def.Name, start, err.Error())

	case <-timeoutCtx.Done():
		return failure(def.Name, start, fmt.Sprintf("tool execution timeout after %v", timeout))
	}
}

// validateParams runs the ordered checks, stopping at the first
// violation: required presence, declared-type match, enum membership.
// The compiled schema then backstops anything else the definition
// declares.
func (e *Executor) validateParams(def *Definition, params map[string]any) error {
	schema := def.Parameters

	for _, field := range schema.Required {
		value, present := params[field]
		if !present || value == nil {
			return fmt.Errorf("missing required parameter %q for tool %q", field, def.Name)
		}
	}

	// Property order is deterministic so the first violation is stable.
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, field := range names {
		prop := schema.Properties[field]
		value, present := params[field]
		if !present || value == nil {
			continue
		}

		if prop.Type != "" && !typeMatches(prop.Type, value) {
			return fmt.Errorf("invalid type for parameter %q of tool %q: expected %s, got %s",
				field, def.Name, prop.Type, jsonTypeOf(value))
		}

		if len(prop.Enum) > 0 && !enumContains(prop.Enum, value) {
			return fmt.Errorf("invalid value for parameter %q of tool %q: must be one of %v",
				field, def.Name, prop.Enum)
		}
	}

	if compiled := e.registry.schema(def.Name); compiled != nil {
		result, err := compiled.Validate(gojsonschema.NewGoLoader(params))
		if err != nil {
			return fmt.Errorf("parameter validation failed for tool %q: %w", def.Name, err)
		}
		if !result.Valid() {
			first := result.Errors()[0]
			return fmt.Errorf("parameter validation failed for tool %q: %s", def.Name, first.String())
		}
	}

	return nil
}

// jsonTypeOf names the JSON type of a decoded Go value, distinguishing
// arrays from objects.
func jsonTypeOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "number"
	case map[string]any:
		return "object"
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map:
		return "object"
	default:
		return rv.Kind().String()
	}
}

// typeMatches checks a decoded value against a declared schema type.
func typeMatches(declared string, value any) bool {
	actual := jsonTypeOf(value)
	if declared == actual {
		return true
	}
	if declared == "integer" && actual == "number" {
		return isIntegral(value)
	}
	return false
}

// isIntegral reports whether a numeric value has no fractional part.
func isIntegral(value any) bool {
	switch v := value.(type) {
	case float64:
		return v == float64(int64(v))
	case float32:
		return v == float32(int64(v))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

// enumContains tests membership with JSON number normalization so that
// int-typed Go enum values match float64-decoded params.
func enumContains(allowed []any, value any) bool {
	for _, candidate := range allowed {
		if reflect.DeepEqual(candidate, value) {
			return true
		}
		cf, cok := asFloat(candidate)
		vf, vok := asFloat(value)
		if cok && vok && cf == vf {
			return true
		}
	}
	return false
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
