package chrome

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"pdfexport/internal/config"
	"pdfexport/internal/domain"
	"pdfexport/internal/infra/logging"
)

const (
	acquireTimeout = 5 * time.Second
	renderReadyMax = 2 * time.Second
)

// Renderer implements domain.Renderer with headless Chrome. With a pool size
// of zero every render starts and stops its own browser.
type Renderer struct {
	cfg config.PDFConfig

	poolMu sync.Mutex
	pool   *Pool
}

var _ domain.Renderer = (*Renderer)(nil)

func NewRenderer(cfg config.PDFConfig) *Renderer {
	return &Renderer{cfg: cfg}
}

// Pool returns the shared pool, creating it on first use. It returns nil
// without error when pooling is disabled.
func (r *Renderer) Pool() (*Pool, error) {
	r.poolMu.Lock()
	defer r.poolMu.Unlock()

	if r.cfg.ChromePoolSize <= 0 {
		return nil, nil
	}
	if r.pool != nil {
		return r.pool, nil
	}
	pool, err := NewPool(r.cfg)
	if err != nil {
		return nil, err
	}
	r.pool = pool
	return r.pool, nil
}

// Stats reports pool usage; a disabled pool yields zero capacity.
func (r *Renderer) Stats() (Stats, error) {
	pool, err := r.Pool()
	if err != nil {
		return Stats{}, err
	}
	if pool == nil {
		return Stats{PoolSizeConf: r.cfg.ChromePoolSize, TimeoutSecs: r.cfg.TimeoutSecs}, nil
	}
	return pool.Stats(r.cfg.TimeoutSecs), nil
}

// Close shuts the pool down if one was started.
func (r *Renderer) Close() {
	r.poolMu.Lock()
	defer r.poolMu.Unlock()
	if r.pool != nil {
		r.pool.Close()
	}
}

// Render produces PDF bytes for req. A failed render is not retried; when the
// browser session was lost the pool is restarted for subsequent renders.
func (r *Renderer) Render(ctx context.Context, req domain.RenderRequest) ([]byte, error) {
	if req.HTML == "" && req.URL == "" {
		return nil, fmt.Errorf("render request has neither HTML nor URL")
	}

	pool, err := r.Pool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return renderWithChrome(ctx, req, r.cfg)
	}

	if err := pool.Start(); err != nil {
		return nil, err
	}

	acquireCtx, acquireCancel := context.WithTimeout(ctx, acquireTimeout)
	defer acquireCancel()
	tab, err := pool.Acquire(acquireCtx)
	if err != nil {
		return nil, fmt.Errorf("acquire chrome tab: %w", err)
	}

	tabCtx, cancel := context.WithTimeout(tab.Ctx, r.cfg.Timeout())
	stop := context.AfterFunc(ctx, cancel)
	pdf, renderErr := renderInTab(tabCtx, req)
	stop()
	cancel()
	pool.Release(tab, renderErr)

	if renderErr != nil && ctx.Err() == nil {
		recoverSession(pool, tab, renderErr)
	}
	return pdf, renderErr
}

// recoverSession restarts the tab's browser when renderErr shows it is gone.
// It reports whether a restart was requested.
func recoverSession(pool *Pool, tab *Tab, renderErr error) bool {
	if !pool.SessionLost(tab, renderErr) {
		return false
	}
	logging.Warn("Chrome session interrupted; restarting pool", "error", renderErr, "generation", tab.Generation())
	if err := pool.Restart(tab.Generation()); err != nil {
		logging.Error("Chrome pool restart failed", "error", err)
	}
	return true
}

// renderWithChrome starts a dedicated browser for a single render.
func renderWithChrome(ctx context.Context, req domain.RenderRequest, cfg config.PDFConfig) ([]byte, error) {
	profileDir, err := createProfileDir(cfg)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(profileDir)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(cfg, profileDir)...)
	defer allocCancel()
	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	chromeCtx, cancelTimeout := context.WithTimeout(chromeCtx, cfg.Timeout())
	defer cancelTimeout()

	return renderInTab(chromeCtx, req)
}

// renderInTab renders either inline HTML or a URL within a chromedp tab.
func renderInTab(ctx context.Context, req domain.RenderRequest) ([]byte, error) {
	var pdf []byte
	var actions []chromedp.Action

	if req.URL != "" {
		actions = append(actions,
			chromedp.Navigate(req.URL),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	} else {
		actions = append(actions,
			chromedp.Navigate("about:blank"),
			chromedp.ActionFunc(func(ctx context.Context) error {
				frame, err := page.GetFrameTree().Do(ctx)
				if err != nil {
					return err
				}
				return page.SetDocumentContent(frame.Frame.ID, req.HTML).Do(ctx)
			}),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	}

	actions = append(actions,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return waitForRenderReady(ctx, renderReadyMax)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(req.PreferCSSPageSize).
				WithPaperWidth(req.Paper.Width).
				WithPaperHeight(req.Paper.Height).
				WithMarginTop(req.Margin).
				WithMarginBottom(req.Margin).
				WithMarginLeft(req.Margin).
				WithMarginRight(req.Margin).
				Do(ctx)
			return err
		}),
	)

	if err := chromedp.Run(ctx, actions...); err != nil {
		return nil, err
	}
	return pdf, nil
}

// waitForRenderReady polls until the document and its web fonts finished
// loading, giving up silently after maxWait.
func waitForRenderReady(ctx context.Context, maxWait time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	const readyCheck = `document.readyState === "complete" && (!document.fonts || document.fonts.status === "loaded")`
	deadline := time.Now().Add(maxWait)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		var ready bool
		if err := chromedp.Evaluate(readyCheck, &ready).Do(ctx); err != nil {
			return err
		}
		if ready || time.Now().After(deadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
