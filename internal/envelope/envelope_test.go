package envelope

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/navigator/models"
)

func TestIDGeneratorProducesIncreasingSeq(t *testing.T) {
	g := NewIDGenerator()
	now := time.Unix(1700000000, 0)
	a := g.Next(now)
	b := g.Next(now)

	seqA, err := ParseSeq(a)
	require.NoError(t, err)
	seqB, err := ParseSeq(b)
	require.NoError(t, err)
	assert.Less(t, seqA, seqB)
}

func TestGovernorDeniesBeyondBurst(t *testing.T) {
	g := NewGovernor(1, 1)
	assert.True(t, g.Allow())
	assert.False(t, g.Allow())
}

func TestClassifyToolErrorPassesThroughCode(t *testing.T) {
	err := models.StaleRef("element el-1")
	detail := Classify(err)
	require.NotNil(t, detail)
	assert.Equal(t, models.ErrCodeStaleRef, detail.Code)
}

func TestClassifyPlainErrorBySubstring(t *testing.T) {
	assert.Equal(t, models.ErrCodeTimeout, Classify(errors.New("operation timeout after 30s")).Code)
	assert.Equal(t, models.ErrCodeNavigation, Classify(errors.New("NAVIGATION: failed to load")).Code)
	assert.Equal(t, models.ErrCodeInternal, Classify(errors.New("something unexpected exploded")).Code)
}

func TestMergePayloadRenamesCollidingKeys(t *testing.T) {
	env := models.Envelope{OK: true, RequestID: "req-1-1", Timestamp: "now"}
	merged := MergePayload(env, map[string]any{"ok": "totally different ok", "count": 3})

	assert.Equal(t, true, merged["ok"])
	assert.Equal(t, "totally different ok", merged["payloadOk"])
	assert.Equal(t, 3, merged["count"])
}

func TestApplyBudgetPreservesEnvelopeKeysUnderTruncation(t *testing.T) {
	merged := map[string]any{
		"ok": true, "requestId": "req-1-1", "timestamp": "now",
		"html": make([]byte, 0),
	}
	merged["html"] = string(make([]byte, 50000))

	out := ApplyBudget(merged, 2000)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, true, out["truncated"])
	assert.Equal(t, "response_payload_budget_exceeded", out["truncationReason"])
}

func TestApplyBudgetCatchesOversizedErrorMessage(t *testing.T) {
	merged := map[string]any{
		"ok": false, "requestId": "req-1-1", "timestamp": "now",
		"error": &models.ErrorDetail{Code: models.ErrCodeInternal, Message: string(make([]byte, 50000))},
	}

	out := ApplyBudget(merged, 2000)

	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(b), 2000, "full encoded response (envelope fields included) must respect maxBytes")
	assert.Equal(t, true, out["truncated"])
}
