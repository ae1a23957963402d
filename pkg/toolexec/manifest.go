package toolexec

import "fmt"

// Manifest is the static, code-level catalog of tool definitions.
// Configuration activates tools by name against it; it never changes
// after construction.
type Manifest struct {
	defs   []Definition
	byName map[string]int
}

// NewManifest builds a manifest from the given definitions.
// Duplicate names are rejected.
func NewManifest(defs ...Definition) (*Manifest, error) {
	m := &Manifest{
		defs:   make([]Definition, 0, len(defs)),
		byName: make(map[string]int, len(defs)),
	}

	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("manifest definition without a name")
		}
		if _, exists := m.byName[def.Name]; exists {
			return nil, fmt.Errorf("duplicate manifest definition: %s", def.Name)
		}
		m.byName[def.Name] = len(m.defs)
		m.defs = append(m.defs, def)
	}

	return m, nil
}

// Get returns a copy of the named definition.
func (m *Manifest) Get(name string) (Definition, bool) {
	idx, ok := m.byName[name]
	if !ok {
		return Definition{}, false
	}
	return m.defs[idx], true
}

// Has reports whether the manifest contains the named definition.
func (m *Manifest) Has(name string) bool {
	_, ok := m.byName[name]
	return ok
}

// List returns the definitions in declaration order.
func (m *Manifest) List() []Definition {
	out := make([]Definition, len(m.defs))
	copy(out, m.defs)
	return out
}

// Names returns tool names in declaration order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.defs))
	for i, def := range m.defs {
		names[i] = def.Name
	}
	return names
}

// Len returns the number of definitions.
func (m *Manifest) Len() int {
	return len(m.defs)
}
