package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCallTimeoutDefaultsWhenUnset(t *testing.T) {
	got := CallTimeout(0, 15*time.Second)
	assert.Equal(t, 15*time.Second, got)
}

func TestCallTimeoutHonorsRequestedValue(t *testing.T) {
	got := CallTimeout(2000, 15*time.Second)
	assert.Equal(t, 2*time.Second, got)
}

func TestCallTimeoutClampsToCap(t *testing.T) {
	got := CallTimeout(600_000, 15*time.Second)
	assert.Equal(t, 300*time.Second, got)
}
