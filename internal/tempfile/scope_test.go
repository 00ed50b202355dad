package tempfile

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestScope_CreateSiblingRelease(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	htmlPath, err := s.CreateHTML("<p>hi</p>")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(htmlPath))
	assert.True(t, strings.HasSuffix(htmlPath, ".html"))

	data, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(data))

	pdfPath := s.Sibling(htmlPath, ".pdf")
	assert.Equal(t, strings.TrimSuffix(htmlPath, ".html")+".pdf", pdfPath)
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF"), 0o600))
	assert.Len(t, dirEntries(t, dir), 2)

	require.NoError(t, s.Release())
	assert.Empty(t, dirEntries(t, dir))
	require.NoError(t, s.Release(), "release is idempotent")
}

func TestScope_ReleaseIgnoresMissingSibling(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	htmlPath, err := s.CreateHTML("x")
	require.NoError(t, err)
	_ = s.Sibling(htmlPath, ".pdf")

	require.NoError(t, s.Release())
	assert.Empty(t, dirEntries(t, dir))
}

func TestScope_CreateHTMLBadDir(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"))
	_, err := s.CreateHTML("x")
	assert.Error(t, err)
	assert.Empty(t, s.Paths())
}

func TestScope_BodyCloseReleases(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	htmlPath, err := s.CreateHTML("<p>x</p>")
	require.NoError(t, err)
	pdfPath := s.Sibling(htmlPath, ".pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-body"), 0o600))

	rc, size, err := s.Body(pdfPath)
	require.NoError(t, err)
	assert.Equal(t, int64(len("%PDF-body")), size)

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-body", string(got))
	assert.Len(t, dirEntries(t, dir), 2, "files survive until the body is closed")

	require.NoError(t, rc.Close())
	require.NoError(t, rc.Close())
	assert.Empty(t, dirEntries(t, dir))
}

func TestScope_BodyMissingFile(t *testing.T) {
	s := New(t.TempDir())
	_, _, err := s.Body(filepath.Join(t.TempDir(), "nope.pdf"))
	assert.Error(t, err)
}

func TestScope_ConcurrentNamesAreUnique(t *testing.T) {
	dir := t.TempDir()
	const n = 32
	paths := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := New(dir).CreateHTML("x")
			assert.NoError(t, err)
			paths[i] = p
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, p := range paths {
		assert.False(t, seen[p], "duplicate temp name %s", p)
		seen[p] = true
	}
}
