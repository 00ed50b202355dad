package domain

import "context"

// PaperSize is a page size in inches.
type PaperSize struct {
	Width  float64
	Height float64
}

// RenderRequest describes one HTML-to-PDF render. Exactly one of HTML or
// URL is set; URL is typically a file:// path to a transient HTML file.
type RenderRequest struct {
	HTML              string
	URL               string
	Paper             PaperSize
	Margin            float64
	PreferCSSPageSize bool
}

// Renderer turns an HTML document into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) ([]byte, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, req RenderRequest) ([]byte, error)

func (f RendererFunc) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	return f(ctx, req)
}
