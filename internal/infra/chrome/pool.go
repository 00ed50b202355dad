package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"pdfexport/internal/config"
	"pdfexport/internal/infra/logging"
)

var (
	errPoolDisabled = errors.New("chrome pool disabled")
	errPoolClosed   = errors.New("chrome pool closed")
)

// Pool shares one headless browser between a fixed number of tab slots.
type Pool struct {
	mu  sync.Mutex
	cfg config.PDFConfig
	sem chan struct{}

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	profileDir    string
	gen           uint64
	running       bool

	closed      bool
	restarts    int
	lastRestart time.Time
}

// Tab is a browser tab leased from the pool.
type Tab struct {
	Ctx     context.Context
	cancel  context.CancelFunc
	gen     uint64
	browser context.Context
}

// Generation identifies the browser the tab was opened in.
func (t *Tab) Generation() uint64 {
	return t.gen
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Enabled      bool      `json:"enabled"`
	Capacity     int       `json:"capacity"`
	Idle         int       `json:"idle"`
	InUse        int       `json:"in_use"`
	PoolSizeConf int       `json:"pool_size_conf"`
	ProfileDir   string    `json:"profile_dir"`
	TimeoutSecs  int       `json:"timeout_secs"`
	Restarts     int       `json:"restarts"`
	LastRestart  time.Time `json:"last_restart,omitempty"`
}

// NewPool prepares a browser allocator with a private profile directory.
// The browser process itself starts lazily on the first render.
func NewPool(cfg config.PDFConfig) (*Pool, error) {
	if cfg.ChromePoolSize <= 0 {
		return nil, errPoolDisabled
	}

	p := &Pool{
		cfg: cfg,
		sem: make(chan struct{}, cfg.ChromePoolSize),
	}
	if err := p.startBrowserLocked(); err != nil {
		return nil, err
	}
	for i := 0; i < cfg.ChromePoolSize; i++ {
		p.sem <- struct{}{}
	}

	logging.Info("Chrome pool ready", "size", cfg.ChromePoolSize, "profile_dir", p.profileDir)
	return p, nil
}

// Acquire blocks until a tab slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Tab, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, errPoolClosed
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.sem:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.sem <- struct{}{}
		return nil, errPoolClosed
	}
	if p.browserCtx == nil {
		p.sem <- struct{}{}
		return nil, errors.New("chrome browser not started")
	}
	tabCtx, cancel := chromedp.NewContext(p.browserCtx)
	return &Tab{Ctx: tabCtx, cancel: cancel, gen: p.gen, browser: p.browserCtx}, nil
}

// Start launches the browser of the current generation unless it already
// runs. Tabs only share one browser once it has been started.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errPoolClosed
	}
	if p.running {
		return nil
	}
	if p.browserCtx == nil {
		if err := p.startBrowserLocked(); err != nil {
			return err
		}
	}
	if err := chromedp.Run(p.browserCtx); err != nil {
		// The failed allocator is not reusable; the next call starts over.
		p.stopBrowserLocked()
		return fmt.Errorf("start chrome: %w", err)
	}
	p.running = true
	return nil
}

// Release closes the tab and returns its slot. renderErr is the outcome of
// the work done in the tab and is only used for logging.
func (p *Pool) Release(tab *Tab, renderErr error) {
	if tab == nil {
		return
	}
	if tab.cancel != nil {
		tab.cancel()
	}
	if renderErr != nil {
		logging.Debug("Chrome tab released after error", "error", renderErr)
	}
	p.sem <- struct{}{}
}

// SessionLost reports whether renderErr means the tab's browser went away.
// A render that merely ran out of time leaves the browser usable.
func (p *Pool) SessionLost(tab *Tab, renderErr error) bool {
	if tab == nil || renderErr == nil {
		return false
	}
	if tab.browser != nil && tab.browser.Err() != nil {
		return true
	}
	return IsSessionInterrupted(renderErr)
}

// Restart replaces the browser of generation gen and its profile directory.
// It does nothing when the pool already moved past gen, so tabs failing
// together trigger a single restart. Leased tabs of the old browser fail.
func (p *Pool) Restart(gen uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errPoolClosed
	}
	if gen != p.gen {
		return nil
	}

	p.stopBrowserLocked()
	if err := p.startBrowserLocked(); err != nil {
		return err
	}
	p.restarts++
	p.lastRestart = time.Now()
	logging.Warn("Chrome pool restarted", "restarts", p.restarts, "profile_dir", p.profileDir)
	return nil
}

// Close stops the browser and removes the profile directory. It is safe to
// call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.stopBrowserLocked()
}

func (p *Pool) Stats(timeoutSecs int) Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	capacity := cap(p.sem)
	idle := len(p.sem)
	return Stats{
		Enabled:      !p.closed && capacity > 0,
		Capacity:     capacity,
		Idle:         idle,
		InUse:        capacity - idle,
		PoolSizeConf: p.cfg.ChromePoolSize,
		ProfileDir:   p.profileDir,
		TimeoutSecs:  timeoutSecs,
		Restarts:     p.restarts,
		LastRestart:  p.lastRestart,
	}
}

func (p *Pool) startBrowserLocked() error {
	dir, err := createProfileDir(p.cfg)
	if err != nil {
		return err
	}
	p.profileDir = dir
	p.gen++
	p.running = false
	p.allocCtx, p.allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions(p.cfg, dir)...)
	p.browserCtx, p.browserCancel = chromedp.NewContext(p.allocCtx)
	return nil
}

func (p *Pool) stopBrowserLocked() {
	if p.browserCancel != nil {
		p.browserCancel()
		p.browserCancel = nil
	}
	if p.allocCancel != nil {
		p.allocCancel()
		p.allocCancel = nil
	}
	p.browserCtx = nil
	p.allocCtx = nil
	p.running = false
	if p.profileDir != "" {
		_ = os.RemoveAll(p.profileDir)
		p.profileDir = ""
	}
}

// createProfileDir makes a fresh Chrome user-data dir below UserDataDir, or
// below the system temp dir when unset.
func createProfileDir(cfg config.PDFConfig) (string, error) {
	base := cfg.UserDataDir
	if base == "" {
		base = os.TempDir()
	} else if err := os.MkdirAll(base, 0o700); err != nil {
		return "", fmt.Errorf("cannot create chrome profile base %q: %w", base, err)
	}
	dir, err := os.MkdirTemp(base, "chromedata-*")
	if err != nil {
		return "", fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	return dir, nil
}

func allocatorOptions(cfg config.PDFConfig, profileDir string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.UserDataDir(profileDir),
		// Force software rendering and avoid Vulkan/ANGLE issues in minimal container environments.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-gpu-compositing", true),
		chromedp.Flag("disable-features", "Vulkan,UseSkiaRenderer"),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("disable-dev-shm-usage", true),
		// Transient HTML files are loaded through file:// URLs.
		chromedp.Flag("allow-file-access-from-files", true),
	)
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}
	if cfg.ChromeNoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	return opts
}

// IsSessionInterrupted reports whether err carries a chromedp transport error,
// meaning the browser session went away rather than the document failing to
// render. Context cancellation and deadlines are not session failures.
func IsSessionInterrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"target closed",
		"session closed",
		"websocket",
		"browser has disconnected",
		"invalid context",
		"broken pipe",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
