package toolexec

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// Provider identifiers understood by ToProviderFormat.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// Registry holds the currently-activated tool definitions and translates
// them into provider-specific wire shapes. Registration happens at
// startup or config reload; lookups are stable for the duration of any
// in-flight loop.
type Registry struct {
	tools   map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	order   []string
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a tool definition. A second registration of the same
// name fails and leaves the first intact.
func (r *Registry) Register(def Definition) error {
	if err := validateDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := compileSchema(def)
	if err != nil {
		return fmt.Errorf("failed to compile schema for tool %q: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %q is already registered", def.Name)
	}

	r.tools[def.Name] = &def
	r.schemas[def.Name] = schema
	r.order = append(r.order, def.Name)

	log.Debug().Str("tool", def.Name).Str("kind", string(def.Kind)).Msg("Tool registered")

	return nil
}

// Get returns the named definition.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.tools[name]
	return def, ok
}

// Has reports whether the named tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[name]
	return ok
}

// List returns all definitions in registration order.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

// schema returns the compiled parameter schema for a registered tool.
func (r *Registry) schema(name string) *gojsonschema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.schemas[name]
}

// ToProviderFormat maps the registered tools into the wire shape the
// given provider expects. When allowedNames is non-nil only those tools
// are included, in the given order. Unrecognized providers are an error.
func (r *Registry) ToProviderFormat(provider string, allowedNames []string) ([]map[string]any, error) {
	defs := r.filter(allowedNames)

	switch provider {
	case ProviderOpenAI, ProviderOpenRouter:
		out := make([]map[string]any, 0, len(defs))
		for _, def := range defs {
			params, err := schemaToMap(def.Parameters)
			if err != nil {
				return nil, fmt.Errorf("tool %q: %w", def.Name, err)
			}
			out = append(out, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        def.Name,
					"description": def.Description,
					"parameters":  params,
				},
			})
		}
		return out, nil

	case ProviderGemini:
		if len(defs) == 0 {
			return []map[string]any{}, nil
		}
		declarations := make([]map[string]any, 0, len(defs))
		for _, def := range defs {
			params, err := schemaToMap(def.Parameters)
			if err != nil {
				return nil, fmt.Errorf("tool %q: %w", def.Name, err)
			}
			declarations = append(declarations, map[string]any{
				"name":        def.Name,
				"description": def.Description,
				"parameters":  params,
			})
		}
		return []map[string]any{
			{"functionDeclarations": declarations},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported provider format: %s", provider)
	}
}

// filter resolves the allow-list against the registry, preserving the
// allow-list's order. A nil list means every tool, in registration order.
func (r *Registry) filter(allowedNames []string) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if allowedNames == nil {
		out := make([]*Definition, 0, len(r.order))
		for _, name := range r.order {
			out = append(out, r.tools[name])
		}
		return out
	}

	out := make([]*Definition, 0, len(allowedNames))
	for _, name := range allowedNames {
		if def, ok := r.tools[name]; ok {
			out = append(out, def)
		}
	}
	return out
}

// validateDefinition enforces the registration contract.
func validateDefinition(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty for %s", def.Name)
	}
	if def.Parameters == nil {
		return fmt.Errorf("tool parameters cannot be nil for %s", def.Name)
	}
	if def.Parameters.Type != "object" {
		return fmt.Errorf("tool %s: parameters.type must be \"object\", got %q", def.Name, def.Parameters.Type)
	}

	switch def.Kind {
	case KindMock, KindBuiltin, KindInternal:
	case KindHTTP:
		return fmt.Errorf("tool %s: http tools are not supported", def.Name)
	default:
		return fmt.Errorf("tool %s: unknown execution kind %q", def.Name, def.Kind)
	}

	return nil
}

// compileSchema compiles the parameter schema, rejecting malformed ones
// at registration time rather than at first execution.
func compileSchema(def Definition) (*gojsonschema.Schema, error) {
	raw, err := schemaToMap(def.Parameters)
	if err != nil {
		return nil, err
	}
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(raw))
}

// schemaToMap renders the typed schema as the plain map providers and
// the schema compiler consume.
func schemaToMap(s *Schema) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	return out, nil
}
