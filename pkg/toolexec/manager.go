package toolexec

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marensys/toolgate/internal/config"
	"github.com/marensys/toolgate/internal/observability"
)

// Manager is the configuration façade over the tool-calling core. It
// owns the registry and handler table and constructs the executor
// referencing both. Construction never fails; an empty configuration
// yields an empty registry and a disabled loop.
type Manager struct {
	manifest *Manifest
	handlers *HandlerTable

	registry *Registry
	executor *Executor

	maxIterations  int
	defaultTimeout time.Duration
	logger         zerolog.Logger
	mu             sync.RWMutex
}

// ManagerConfig configures a Manager. Every field is optional.
type ManagerConfig struct {
	Manifest       *Manifest
	Handlers       *HandlerTable
	MaxIterations  int
	DefaultTimeout time.Duration
	Logger         zerolog.Logger
}

// NewManager creates a manager with an empty registry.
func NewManager(cfg ManagerConfig) *Manager {
	manifest := cfg.Manifest
	if manifest == nil {
		manifest, _ = NewManifest()
	}
	handlers := cfg.Handlers
	if handlers == nil {
		handlers = NewHandlerTable()
	}

	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = config.DefaultMaxIterations
	}
	defaultTimeout := cfg.DefaultTimeout
	if defaultTimeout <= 0 {
		defaultTimeout = config.DefaultToolTimeout
	}

	m := &Manager{
		manifest:       manifest,
		handlers:       handlers,
		registry:       NewRegistry(),
		maxIterations:  maxIterations,
		defaultTimeout: defaultTimeout,
		logger:         cfg.Logger,
	}
	m.executor = NewExecutor(m.registry, handlers, defaultTimeout, cfg.Logger)

	return m
}

// NewManagerFromConfig builds a manager from the tools section of the
// service configuration and loads its activations.
func NewManagerFromConfig(cfg config.ToolsConfig, manifest *Manifest, handlers *HandlerTable, logger zerolog.Logger) *Manager {
	m := NewManager(ManagerConfig{
		Manifest:       manifest,
		Handlers:       handlers,
		MaxIterations:  cfg.MaxIterations,
		DefaultTimeout: cfg.DefaultTimeout(),
		Logger:         logger,
	})
	m.LoadTools(cfg.Enabled)
	return m
}

// LoadTools resolves activation entries against the manifest and
// registers the results. Unknown names are skipped with a warning;
// extra entry fields only draw a deprecation warning.
func (m *Manager) LoadTools(entries []config.ToolActivation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadInto(m.registry, entries)
	observability.SetRegisteredTools(m.registry.Len())
}

// Reload swaps in a freshly built registry for a new config generation.
// In-flight loops keep the executor they grabbed at start.
func (m *Manager) Reload(entries []config.ToolActivation) {
	registry := NewRegistry()
	m.loadInto(registry, entries)

	m.mu.Lock()
	m.registry = registry
	m.executor = NewExecutor(registry, m.handlers, m.defaultTimeout, m.logger)
	m.mu.Unlock()

	observability.SetRegisteredTools(registry.Len())
	m.logger.Info().Int("tools", registry.Len()).Msg("Tool registry reloaded")
}

func (m *Manager) loadInto(registry *Registry, entries []config.ToolActivation) {
	for _, entry := range entries {
		if len(entry.Extra) > 0 {
			keys := make([]string, 0, len(entry.Extra))
			for k := range entry.Extra {
				keys = append(keys, k)
			}
			m.logger.Warn().
				Str("tool", entry.Name).
				Strs("keys", keys).
				Msg("Deprecated fields in tool activation, only name and description are honored")
		}

		def, ok := m.manifest.Get(entry.Name)
		if !ok {
			m.logger.Warn().
				Str("tool", entry.Name).
				Msg("Unknown tool in configuration, skipping")
			continue
		}

		if entry.Description != "" {
			def.Description = entry.Description
		}

		if err := registry.Register(def); err != nil {
			m.logger.Warn().
				Str("tool", entry.Name).
				Err(err).
				Msg("Failed to register tool, skipping")
			continue
		}

		m.logger.Info().Str("tool", def.Name).Msg("Tool activated")
	}
}

// Enabled reports whether tool calling is on. A non-empty registry is
// the sole signal; there is no separate flag.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.registry.Len() > 0
}

// Registry returns the current registry generation.
func (m *Manager) Registry() *Registry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.registry
}

// Executor returns the executor for the current registry generation.
func (m *Manager) Executor() *Executor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.executor
}

// Manifest returns the static tool catalog.
func (m *Manager) Manifest() *Manifest {
	return m.manifest
}

// Handlers returns the handler table.
func (m *Manager) Handlers() *HandlerTable {
	return m.handlers
}

// MaxIterations returns the per-turn loop ceiling.
func (m *Manager) MaxIterations() int {
	return m.maxIterations
}

// DefaultTimeout returns the per-tool execution time box.
func (m *Manager) DefaultTimeout() time.Duration {
	return m.defaultTimeout
}
