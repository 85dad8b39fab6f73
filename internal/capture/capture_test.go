package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCaptureDefaultsReturnsShallowCopy(t *testing.T) {
	a := GetCaptureDefaults(ProfileLight, "snapshot", DetailLow)
	a["maxChars"] = 1

	b := GetCaptureDefaults(ProfileLight, "snapshot", DetailLow)
	assert.Equal(t, 6000, b["maxChars"], "mutating a returned copy must not affect the frozen table")
}

func TestGetCaptureDefaultsFallsBackForUnknownCombination(t *testing.T) {
	o := GetCaptureDefaults("nonexistent-profile", "snapshot", DetailHigh)
	assert.Equal(t, 6000, o["maxChars"], "falls back to light/low for the same tool")
}

func TestValidateProfile(t *testing.T) {
	assert.NoError(t, ValidateProfile(ProfileBalanced))
	assert.Error(t, ValidateProfile("nope"))
}

func TestRegistryDefaultsToLight(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, ProfileLight, r.Active())

	require.NoError(t, r.SetActive(ProfileFull))
	assert.Equal(t, ProfileFull, r.Active())

	assert.Error(t, r.SetActive("bogus"))
	assert.Equal(t, ProfileFull, r.Active(), "a rejected SetActive must not change the active profile")
}
