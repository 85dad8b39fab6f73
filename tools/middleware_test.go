package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgString(t *testing.T) {
	args := map[string]any{"name": "alice"}
	assert.Equal(t, "alice", argString(args, "name", "bob"))
	assert.Equal(t, "bob", argString(args, "missing", "bob"))
}

func TestArgBool(t *testing.T) {
	args := map[string]any{"flag": true}
	assert.True(t, argBool(args, "flag", false))
	assert.False(t, argBool(args, "missing", false))
}

func TestArgInt(t *testing.T) {
	args := map[string]any{"count": float64(7)}
	assert.Equal(t, 7, argInt(args, "count", 0))
	assert.Equal(t, 3, argInt(args, "missing", 3))
}

func TestArgStringSlice(t *testing.T) {
	args := map[string]any{"tags": []any{"a", "b", 3}}
	assert.Equal(t, []string{"a", "b"}, argStringSlice(args, "tags"))
	assert.Nil(t, argStringSlice(args, "missing"))
}
