package toolexec

import (
	"fmt"
	"sort"
	"sync"
)

// HandlerTable is the explicit name-keyed dispatch table for builtin and
// internal tool bodies. Handlers never run outside the executor's catch
// boundary.
type HandlerTable struct {
	handlers map[string]HandlerFunc
	mu       sync.RWMutex
}

// NewHandlerTable creates an empty handler table.
func NewHandlerTable() *HandlerTable {
	return &HandlerTable{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register binds a handler to a key. Nil handlers and empty keys are
// rejected; a key can only be bound once.
func (t *HandlerTable) Register(name string, fn HandlerFunc) error {
	if name == "" {
		return fmt.Errorf("handler name cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("handler for %q cannot be nil", name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.handlers[name]; exists {
		return fmt.Errorf("handler %q is already registered", name)
	}

	t.handlers[name] = fn
	return nil
}

// Get returns the handler bound to the given key.
func (t *HandlerTable) Get(name string) (HandlerFunc, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	fn, ok := t.handlers[name]
	return fn, ok
}

// Names returns the registered handler keys, sorted for determinism.
func (t *HandlerTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered handlers.
func (t *HandlerTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.handlers)
}
