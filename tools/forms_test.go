package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatExtractorRecord(t *testing.T) {
	record := formatExtractorRecord("Staff Engineer", "https://example.com/jobs/1", "A role building platform tools.")
	assert.Contains(t, record, "Title: Staff Engineer\n")
	assert.Contains(t, record, "URL: https://example.com/jobs/1\n")
	assert.Contains(t, record, "Summary: A role building platform tools.\n")
}

func TestAppendExtractorRecordCreatesAndAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "digest.txt")

	require.NoError(t, appendExtractorRecord(path, "first\n"))
	require.NoError(t, appendExtractorRecord(path, "second\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}
