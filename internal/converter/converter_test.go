package converter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfexport/internal/domain"
)

type recordingRenderer struct {
	got []domain.RenderRequest
	err error
}

func (r *recordingRenderer) Render(ctx context.Context, req domain.RenderRequest) ([]byte, error) {
	r.got = append(r.got, req)
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.7\n" + req.HTML), nil
}

func TestConvert_WritesPDFAndReturnsPath(t *testing.T) {
	rr := &recordingRenderer{}
	c := New(rr)
	out := filepath.Join(t.TempDir(), "out.pdf")

	path, err := c.Convert(context.Background(), "<h1>Title</h1><p>Body</p>", out)
	require.NoError(t, err)
	assert.Equal(t, out, path)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))

	require.Len(t, rr.got, 1)
	req := rr.got[0]
	assert.Contains(t, req.HTML, "<!DOCTYPE html>")
	assert.Contains(t, req.HTML, "<h1>Title</h1><p>Body</p>")
	assert.True(t, req.PreferCSSPageSize)
	assert.Empty(t, req.URL)
	assert.Equal(t, domain.PaperSize{Width: 8.27, Height: 11.69}, req.Paper)
}

func TestConvert_PropagatesRendererError(t *testing.T) {
	boom := errors.New("renderer exploded")
	c := New(&recordingRenderer{err: boom})
	out := filepath.Join(t.TempDir(), "out.pdf")

	_, err := c.Convert(context.Background(), "<p>x</p>", out)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no output expected on render failure")
}

func TestConvert_WriteError(t *testing.T) {
	c := New(&recordingRenderer{})
	_, err := c.Convert(context.Background(), "<p>x</p>", filepath.Join(t.TempDir(), "missing", "out.pdf"))
	assert.Error(t, err)
}

func TestWithPaper(t *testing.T) {
	rr := &recordingRenderer{}
	letter := domain.PaperSize{Width: 8.5, Height: 11}
	_, err := New(rr, WithPaper(letter)).Render(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, letter, rr.got[0].Paper)
}
