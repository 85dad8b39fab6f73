package budget

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceNoopWhenUnderBudget(t *testing.T) {
	payload := map[string]any{"title": "hi"}
	out, truncated, _, retry := Reduce(payload, 10000)
	assert.False(t, truncated)
	assert.Nil(t, retry)
	assert.Equal(t, payload, out)
}

func TestReduceTruncatesLargeStringAndSetsHint(t *testing.T) {
	payload := map[string]any{"html": strings.Repeat("x", 50000)}
	out, truncated, original, retry := Reduce(payload, 2000)
	require.True(t, truncated)
	assert.Equal(t, 50000+len(`{"html":""}`), original)
	assert.NotNil(t, retry)
	assert.LessOrEqual(t, len(out["html"].(string)), 2500)
}

func TestReduceIsIdempotent(t *testing.T) {
	payload := map[string]any{
		"items": makeItems(500),
		"html":  strings.Repeat("y", 20000),
	}
	out1, _, _, _ := Reduce(payload, 1500)
	out2, _, _, _ := Reduce(out1, 1500)
	assert.Equal(t, out1, out2)
}

func TestReduceHardGuaranteesUnderExtremeBudget(t *testing.T) {
	payload := map[string]any{
		"items":     makeItems(5000),
		"html":      strings.Repeat("z", 500000),
		"requestId": "req-1700000000000-1",
		"ok":        true,
	}
	out, truncated, _, _ := Reduce(payload, 40)
	require.True(t, truncated)
	assert.LessOrEqual(t, jsonSize(out), len(`{"truncated":true}`)+1)
}

func makeItems(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = map[string]any{"text": "item"}
	}
	return out
}
