package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_SaveLoadDelete(t *testing.T) {
	storage := NewStorageWithPath(t.TempDir(), FormatYAML)

	err := storage.Save("workflows", "deploy", []byte("id: deploy\n"))
	require.NoError(t, err)

	data, err := storage.Load("workflows", "deploy")
	require.NoError(t, err)
	assert.Equal(t, "id: deploy\n", string(data))

	names, err := storage.List("workflows")
	require.NoError(t, err)
	assert.Equal(t, []string{"deploy"}, names)

	err = storage.Delete("workflows", "deploy")
	require.NoError(t, err)

	_, err = storage.Load("workflows", "deploy")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStorage_JSONFormat(t *testing.T) {
	storage := NewStorageWithPath(t.TempDir(), FormatJSON)

	err := storage.Save("tasks", "task_20260829_120000_abc123", []byte(`{"id":"x"}`))
	require.NoError(t, err)

	names, err := storage.List("tasks")
	require.NoError(t, err)
	assert.Equal(t, []string{"task_20260829_120000_abc123"}, names)
}

func TestStorage_EmptyArguments(t *testing.T) {
	storage := NewStorageWithPath(t.TempDir(), FormatYAML)

	assert.Error(t, storage.Save("", "name", nil))
	assert.Error(t, storage.Save("workflows", "", nil))
	_, err := storage.Load("", "name")
	assert.Error(t, err)
}

func TestStorage_SanitizeFilename(t *testing.T) {
	storage := NewStorageWithPath(t.TempDir(), FormatYAML)

	tests := []struct {
		in       string
		expected string
	}{
		{"simple", "simple"},
		{"with space", "with_space"},
		{"a/b\\c", "a_b_c"},
		{"  trimmed  ", "trimmed"},
		{"...", "unnamed"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, storage.sanitizeFilename(tt.in), tt.in)
	}
}

func TestStorage_ListMissingDirectory(t *testing.T) {
	storage := NewStorageWithPath(t.TempDir(), FormatYAML)

	names, err := storage.List("workflows")
	require.NoError(t, err)
	assert.Empty(t, names)
}
