package prune

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prune.yaml")
	content := `
- sparsity: 0.5
  op_types: [Linear]
- sparsity: 0.25
  op_names: [encoder.0.attn.q_proj]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	list, err := LoadConfigList(path)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.InDelta(t, 0.5, list[0].Sparsity, 1e-9)
	assert.Equal(t, []string{"Linear"}, list[0].OpTypes)
	assert.Equal(t, []string{"encoder.0.attn.q_proj"}, list[1].OpNames)
}

func TestLoadConfigList_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfigList(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sparsity: {"), 0o644))
		_, err := LoadConfigList(path)
		assert.Error(t, err)
	})

	t.Run("sparsity out of range", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "range.yaml")
		require.NoError(t, os.WriteFile(path, []byte("- sparsity: 1.0\n"), 0o644))
		_, err := LoadConfigList(path)
		assert.Error(t, err)
	})

	t.Run("empty list", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("[]\n"), 0o644))
		_, err := LoadConfigList(path)
		assert.Error(t, err)
	})
}

func TestSparsityFor_LastMatchWins(t *testing.T) {
	list := []Config{
		{Sparsity: 0.5, OpTypes: []string{"Linear"}},
		{Sparsity: 0.25, OpNames: []string{"encoder.0.attn.q_proj"}},
	}

	s, ok := sparsityFor("encoder.0.attn.q_proj", list)
	require.True(t, ok)
	assert.InDelta(t, 0.25, s, 1e-9)

	s, ok = sparsityFor("encoder.1.attn.q_proj", list)
	require.True(t, ok)
	assert.InDelta(t, 0.5, s, 1e-9)
}

func TestConfigMatches(t *testing.T) {
	assert.True(t, Config{Sparsity: 0.5}.matches("anything"))
	assert.True(t, Config{Sparsity: 0.5, OpTypes: []string{"Linear"}}.matches("x"))
	assert.False(t, Config{Sparsity: 0.5, OpTypes: []string{"Conv2d"}}.matches("x"))
	assert.False(t, Config{Sparsity: 0.5, OpNames: []string{"a"}}.matches("b"))

	_, ok := sparsityFor("b", []Config{{Sparsity: 0.5, OpNames: []string{"a"}}})
	assert.False(t, ok)
}
