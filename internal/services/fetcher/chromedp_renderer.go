// -----------------------------------------------------------------------
// ChromeDP Renderer - post-JavaScript HTML via a pooled headless browser
// -----------------------------------------------------------------------

package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/geoscope/internal/common"
	"github.com/ternarybob/geoscope/internal/interfaces"
	"github.com/ternarybob/geoscope/internal/models"
)

// ChromeRenderer manages a pool of ChromeDP browser contexts with
// round-robin allocation. The pool is created lazily on first Render so a
// missing Chrome binary degrades rendering instead of failing startup.
type ChromeRenderer struct {
	browsers         []context.Context
	browserCancels   []context.CancelFunc
	allocatorCancels []context.CancelFunc
	mu               sync.Mutex
	poolSize         int
	currentIndex     int
	userAgent        string
	waitTime         time.Duration
	navTimeout       time.Duration
	enabled          bool
	initialized      bool
	initErr          error
	logger           arbor.ILogger
}

// NewChromeRenderer creates a renderer from config
func NewChromeRenderer(config *common.Config, logger arbor.ILogger) *ChromeRenderer {
	cfg := config.Render
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}

	return &ChromeRenderer{
		poolSize:   poolSize,
		userAgent:  config.Fetcher.UserAgent,
		waitTime:   cfg.WaitTime,
		navTimeout: cfg.NavTimeout,
		enabled:    cfg.Enabled,
		logger:     logger,
	}
}

// Render navigates to the page, waits for JavaScript to settle, and returns
// the rendered outer HTML. Returns ErrRenderUnavailable when rendering is
// disabled or the browser pool cannot be used; callers degrade to the
// fetched HTML.
func (r *ChromeRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	if !r.enabled {
		return "", models.ErrRenderUnavailable
	}

	browserCtx, err := r.getBrowser()
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrRenderUnavailable, err)
	}

	timeout := r.navTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	// Tie the render to the caller's context as well
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	var html string
	err = chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(r.waitTime),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		r.logger.Warn().
			Str("url", pageURL).
			Err(err).
			Msg("Headless render failed")
		return "", fmt.Errorf("%w: %v", models.ErrRenderUnavailable, err)
	}

	r.logger.Debug().
		Str("url", pageURL).
		Int("bytes", len(html)).
		Msg("Page rendered")

	return html, nil
}

// getBrowser lazily initializes the pool and returns a browser context via
// round-robin
func (r *ChromeRenderer) getBrowser() (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		r.initErr = r.initPool()
		r.initialized = true
	}
	if r.initErr != nil {
		return nil, r.initErr
	}
	if len(r.browsers) == 0 {
		return nil, fmt.Errorf("no browser instances available")
	}

	index := r.currentIndex % len(r.browsers)
	r.currentIndex = (r.currentIndex + 1) % len(r.browsers)
	return r.browsers[index], nil
}

// initPool creates the browser instances (must be called with mutex held)
func (r *ChromeRenderer) initPool() error {
	r.logger.Info().
		Int("pool_size", r.poolSize).
		Str("user_agent", r.userAgent).
		Msg("Initializing headless browser pool")

	successCount := 0
	var lastErr error
	for i := 0; i < r.poolSize; i++ {
		if err := r.createBrowserInstance(i); err != nil {
			lastErr = err
			r.logger.Warn().
				Err(err).
				Int("browser_index", i).
				Msg("Failed to create browser instance")
			if successCount == 0 {
				r.cleanupInstances()
				return fmt.Errorf("failed to create any browser instances: %w", err)
			}
			continue
		}
		successCount++
	}

	if successCount < r.poolSize {
		r.logger.Warn().
			Int("requested", r.poolSize).
			Int("created", successCount).
			Err(lastErr).
			Msg("Created fewer browser instances than requested")
	}

	r.logger.Info().
		Int("browsers_created", len(r.browsers)).
		Msg("Headless browser pool initialized")

	return nil
}

// createBrowserInstance creates and smoke-tests one browser instance
func (r *ChromeRenderer) createBrowserInstance(index int) error {
	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(r.userAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser instance failed startup test: %w", err)
	}

	r.browsers = append(r.browsers, browserCtx)
	r.browserCancels = append(r.browserCancels, browserCancel)
	r.allocatorCancels = append(r.allocatorCancels, allocatorCancel)

	r.logger.Debug().
		Int("browser_index", index).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser instance created")

	return nil
}

// Close shuts down all browser instances
func (r *ChromeRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.browsers) == 0 {
		return nil
	}

	browserCount := len(r.browsers)
	done := make(chan struct{})
	go func() {
		for _, cancel := range r.browserCancels {
			cancel()
		}
		for _, cancel := range r.allocatorCancels {
			cancel()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		r.logger.Warn().
			Int("browser_count", browserCount).
			Msg("Browser pool shutdown timed out")
	}

	r.browsers = nil
	r.browserCancels = nil
	r.allocatorCancels = nil
	r.currentIndex = 0
	r.initialized = false

	r.logger.Info().
		Int("browsers_shutdown", browserCount).
		Msg("Headless browser pool shut down")

	return nil
}

// cleanupInstances cleans up all browser instances (must be called with mutex held)
func (r *ChromeRenderer) cleanupInstances() {
	for _, cancel := range r.browserCancels {
		if cancel != nil {
			cancel()
		}
	}
	for _, cancel := range r.allocatorCancels {
		if cancel != nil {
			cancel()
		}
	}
	r.browsers = nil
	r.browserCancels = nil
	r.allocatorCancels = nil
	r.currentIndex = 0
}

var _ interfaces.Renderer = (*ChromeRenderer)(nil)
