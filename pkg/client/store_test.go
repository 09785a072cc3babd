package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := NewFileStore(path)

	_, ok, err := s.Get(KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(KeyToken, "abc"))
	require.NoError(t, s.Set(KeyUser, `{"id":1}`))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	v, ok, err := NewFileStore(path).Get(KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	require.NoError(t, s.Delete(KeyToken))
	_, ok, _ = s.Get(KeyToken)
	assert.False(t, ok)

	require.NoError(t, s.Delete(KeyUser))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, _, err := NewFileStore(path).Get(KeyToken)
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set("a", "1"))
	require.NoError(t, s.Set("b", "2"))
	require.NoError(t, s.Delete("a", "b", "missing"))
	_, ok, _ := s.Get("a")
	assert.False(t, ok)
}
