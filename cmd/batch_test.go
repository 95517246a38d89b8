package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeURLFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadURLFile(t *testing.T) {
	path := writeURLFile(t, `# job batch for this week
https://jobs.example.com/postings/1

https://jobs.example.com/postings/2
  https://jobs.example.com/postings/3

# trailing comment
`)

	urls, err := readURLFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://jobs.example.com/postings/1",
		"https://jobs.example.com/postings/2",
		"https://jobs.example.com/postings/3",
	}, urls)
}

func TestReadURLFile_Empty(t *testing.T) {
	path := writeURLFile(t, "\n# only comments\n\n")

	urls, err := readURLFile(path)
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestReadURLFile_Missing(t *testing.T) {
	_, err := readURLFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
