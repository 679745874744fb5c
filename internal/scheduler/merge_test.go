package scheduler

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteOrderedPagesSortsByNumericIndex(t *testing.T) {
	dir := t.TempDir()
	pageMap := map[string]string{
		"2": base64.StdEncoding.EncodeToString([]byte("page-two")),
		"0": base64.StdEncoding.EncodeToString([]byte("page-zero")),
		"10": base64.StdEncoding.EncodeToString([]byte("page-ten")),
	}

	paths, err := writeOrderedPages(dir, pageMap)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	// Lexical sort of "page-000000.pdf", "page-000002.pdf",
	// "page-000010.pdf" matches numeric order because of the %06d pad.
	assert.Equal(t, filepath.Join(dir, "page-000000.pdf"), paths[0])
	assert.Equal(t, filepath.Join(dir, "page-000002.pdf"), paths[1])
	assert.Equal(t, filepath.Join(dir, "page-000010.pdf"), paths[2])

	content, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "page-zero", string(content))
}

func TestWriteOrderedPagesRejectsNonNumericKey(t *testing.T) {
	dir := t.TempDir()
	pageMap := map[string]string{"not-a-number": base64.StdEncoding.EncodeToString([]byte("x"))}

	_, err := writeOrderedPages(dir, pageMap)
	assert.Error(t, err)
}

func TestWriteOrderedPagesRejectsInvalidBase64(t *testing.T) {
	dir := t.TempDir()
	pageMap := map[string]string{"0": "not-valid-base64!!"}

	_, err := writeOrderedPages(dir, pageMap)
	assert.Error(t, err)
}

func TestFinalKeyForUsesDeletableFinalPrefix(t *testing.T) {
	assert.Equal(t, "documents/final/job-123.pdf", finalKeyFor("job-123"))
}
