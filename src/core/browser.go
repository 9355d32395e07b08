package core

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type ChromeOptions struct {
	Headless  bool
	UserAgent string
	Width     int
	Height    int
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
}

// Chrome drives a single tab of a locally started Chrome through chromedp.
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

func allocatorOptions(o ChromeOptions) []chromedp.ExecAllocatorOption {
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = 1920, 1080
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("lang", "it-IT"),
		chromedp.Flag("force-device-scale-factor", "1"),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(o.Width, o.Height),
		chromedp.UserAgent(o.UserAgent),
	)
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}

	return opts
}

// NewChrome starts the browser. Any error here is a setup failure.
func NewChrome(o ChromeOptions, logger *zap.Logger) (*Chrome, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(o)...)

	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		logger.Debug("chromedp", zap.String("message", fmt.Sprintf(format, v...)))
	}))

	// An empty Run launches the browser and opens the tab.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &Chrome{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// run executes actions on the tab, bounded by ctx's deadline and cancellation.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithCancel(c.ctx)
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		tctx, cancelDeadline = context.WithDeadline(tctx, deadline)
		defer cancelDeadline()
	}

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(tctx, actions...)
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	start := time.Now()
	err := c.run(ctx, chromedp.Navigate(url))
	c.logger.Debug("navigate", zap.String("url", url), zap.Duration("took", time.Since(start)), zap.Error(err))
	return err
}

func (c *Chrome) WaitVisible(ctx context.Context, sel string) error {
	return c.run(ctx, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

func (c *Chrome) Click(ctx context.Context, sel string) error {
	return c.run(ctx, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
}

func (c *Chrome) Text(ctx context.Context, sel string) (string, error) {
	var text string
	err := c.run(ctx, chromedp.Text(sel, &text, chromedp.ByQuery, chromedp.NodeVisible))
	return text, err
}

func (c *Chrome) InnerHTML(ctx context.Context, sel string) (string, error) {
	var domNode string
	err := c.run(ctx, chromedp.InnerHTML(sel, &domNode, chromedp.ByQuery))
	return domNode, err
}

// Close shuts the tab and the browser process down.
func (c *Chrome) Close() error {
	err := chromedp.Cancel(c.ctx)
	c.cancel()
	c.allocCancel()
	return err
}
