// Package converter turns an HTML fragment into a styled PDF file.
package converter

import (
	"context"
	"fmt"
	"os"

	"pdfexport/internal/document"
	"pdfexport/internal/domain"
)

// Converter wraps HTML in the default document skeleton and renders it.
type Converter struct {
	renderer domain.Renderer
	paper    domain.PaperSize
}

type Option func(*Converter)

// WithPaper overrides the default A4 paper size.
func WithPaper(p domain.PaperSize) Option {
	return func(c *Converter) { c.paper = p }
}

func New(r domain.Renderer, opts ...Option) *Converter {
	c := &Converter{
		renderer: r,
		paper:    domain.PaperSize{Width: 8.27, Height: 11.69},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Document returns the full HTML document that is rendered for html.
func (c *Converter) Document(html string) string {
	return document.Wrap(html)
}

// Request builds the render request for an already wrapped document. Page
// margins come from the stylesheet's @page rule.
func (c *Converter) Request(doc string) domain.RenderRequest {
	return domain.RenderRequest{
		HTML:              doc,
		Paper:             c.paper,
		PreferCSSPageSize: true,
	}
}

// Render wraps html and returns the PDF bytes.
func (c *Converter) Render(ctx context.Context, html string) ([]byte, error) {
	pdf, err := c.renderer.Render(ctx, c.Request(c.Document(html)))
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdf, nil
}

// Convert renders html and writes the PDF to outputPath, which is returned
// on success.
func (c *Converter) Convert(ctx context.Context, html, outputPath string) (string, error) {
	pdf, err := c.Render(ctx, html)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(outputPath, pdf, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", outputPath, err)
	}
	return outputPath, nil
}
