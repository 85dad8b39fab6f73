package security

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckReadAllowsWithinRootAndRejectsOutside(t *testing.T) {
	dir := t.TempDir()
	inside := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(inside, []byte("x"), 0o600))

	outsideDir := t.TempDir()
	outside := filepath.Join(outsideDir, "b.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))

	g, err := New([]string{dir}, []string{dir}, false, nil, 0, 0)
	require.NoError(t, err)

	_, err = g.CheckRead(inside)
	assert.NoError(t, err)

	_, err = g.CheckRead(outside)
	assert.Error(t, err)
}

func TestCheckWriteRejectsOutsideRoot(t *testing.T) {
	dir := t.TempDir()
	outsideDir := t.TempDir()

	g, err := New(nil, []string{dir}, false, nil, 0, 0)
	require.NoError(t, err)

	_, err = g.CheckWrite(filepath.Join(dir, "new.txt"))
	assert.NoError(t, err)

	_, err = g.CheckWrite(filepath.Join(outsideDir, "new.txt"))
	assert.Error(t, err)
}

func TestCheckEvaluateDisabledByDefault(t *testing.T) {
	g, err := New(nil, nil, false, nil, time.Second, 1000)
	require.NoError(t, err)

	_, _, err = g.CheckEvaluate("https://example.com")
	assert.Error(t, err)
}

func TestCheckEvaluateWildcardAndExactOrigin(t *testing.T) {
	g, err := New(nil, nil, true, []string{"*"}, time.Second, 1000)
	require.NoError(t, err)
	_, _, err = g.CheckEvaluate("https://anything.example")
	assert.NoError(t, err)

	g2, err := New(nil, nil, true, []string{"https://example.com"}, time.Second, 1000)
	require.NoError(t, err)
	_, _, err = g2.CheckEvaluate("https://example.com")
	assert.NoError(t, err)
	_, _, err = g2.CheckEvaluate("https://other.example")
	assert.Error(t, err)
}

func TestCheckEvaluateNormalizesUnicodeHost(t *testing.T) {
	g, err := New(nil, nil, true, []string{"https://xn--mller-kva.example"}, time.Second, 1000)
	require.NoError(t, err)
	_, _, err = g.CheckEvaluate("https://müller.example")
	assert.NoError(t, err)
}
