package screenshot

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromeOptions configures the headless browser.
type ChromeOptions struct {
	ExecPath       string
	NavTimeout     time.Duration
	ReadyTimeout   time.Duration
	ReadySelector  string
	PageSelector   string
	ViewportWidth  int64
	ViewportHeight int64
	Format         string
}

// Chrome captures pages with a fresh headless Chrome per render. The browser
// process is torn down when Capture returns, on success and on failure.
type Chrome struct {
	opts ChromeOptions
}

// NewChrome fills in defaults and returns a Chrome browser.
func NewChrome(opts ChromeOptions) *Chrome {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 20 * time.Second
	}
	if opts.ReadySelector == "" {
		opts.ReadySelector = "#resume-ready"
	}
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = 1240
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = 1754
	}
	if opts.Format == "" {
		opts.Format = "png"
	}
	return &Chrome{opts: opts}
}

// Capture implements Browser.
func (c *Chrome) Capture(ctx context.Context, target Target) ([]Page, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(int(c.opts.ViewportWidth), int(c.opts.ViewportHeight)),
	)
	if c.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	if err := chromedp.Run(tabCtx); err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	headers := network.Headers{}
	if target.AuthToken != "" {
		headers["Authorization"] = "Bearer " + target.AuthToken
	}

	navCtx, cancelNav := context.WithTimeout(tabCtx, c.opts.NavTimeout)
	defer cancelNav()
	if err := chromedp.Run(navCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		chromedp.EmulateViewport(c.opts.ViewportWidth, c.opts.ViewportHeight),
		chromedp.Navigate(target.URL),
	); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}

	readyCtx, cancelReady := context.WithTimeout(tabCtx, c.opts.ReadyTimeout)
	defer cancelReady()
	if err := chromedp.Run(readyCtx, chromedp.WaitVisible(c.opts.ReadySelector, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("wait for %q: %w", c.opts.ReadySelector, err)
	}

	if c.opts.Format == "pdf" {
		return c.printPDF(readyCtx)
	}
	return c.captureImages(readyCtx)
}

func (c *Chrome) captureImages(ctx context.Context) ([]Page, error) {
	var nodes []*cdp.Node
	if c.opts.PageSelector != "" {
		if err := chromedp.Run(ctx, chromedp.Nodes(c.opts.PageSelector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
			return nil, fmt.Errorf("query pages: %w", err)
		}
	}

	if len(nodes) == 0 {
		var buf []byte
		if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
			return nil, fmt.Errorf("capture viewport: %w", err)
		}
		return []Page{pngPage(buf)}, nil
	}

	pages := make([]Page, 0, len(nodes))
	for i, n := range nodes {
		var buf []byte
		if err := chromedp.Run(ctx, chromedp.Screenshot([]cdp.NodeID{n.NodeID}, &buf, chromedp.ByNodeID)); err != nil {
			return nil, fmt.Errorf("capture page %d: %w", i+1, err)
		}
		pages = append(pages, pngPage(buf))
	}
	return pages, nil
}

func (c *Chrome) printPDF(ctx context.Context) ([]Page, error) {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPreferCSSPageSize(true).
			Do(ctx)
		buf = data
		return err
	})); err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	if _, err := PDFPageCount(buf); err != nil {
		return nil, err
	}
	return []Page{{Data: buf, ContentType: "application/pdf", Ext: "pdf"}}, nil
}

func pngPage(data []byte) Page {
	return Page{Data: data, ContentType: "image/png", Ext: "png"}
}

var _ Browser = (*Chrome)(nil)
