package toolexec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManifest(t *testing.T) {
	m, err := NewManifest(testDefinition("a"), testDefinition("b"))
	require.NoError(t, err)

	assert.Equal(t, 2, m.Len())
	assert.True(t, m.Has("a"))
	assert.False(t, m.Has("c"))
	assert.Equal(t, []string{"a", "b"}, m.Names())
}

func TestNewManifest_Empty(t *testing.T) {
	m, err := NewManifest()
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestNewManifest_DuplicateRejected(t *testing.T) {
	_, err := NewManifest(testDefinition("a"), testDefinition("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate manifest definition")
}

func TestNewManifest_UnnamedRejected(t *testing.T) {
	_, err := NewManifest(Definition{Description: "nameless"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a name")
}

func TestManifest_GetReturnsCopy(t *testing.T) {
	m, err := NewManifest(testDefinition("a"))
	require.NoError(t, err)

	def, ok := m.Get("a")
	require.True(t, ok)
	def.Description = "mutated"

	again, _ := m.Get("a")
	assert.Equal(t, "A test tool", again.Description)
}
