// Package browser runs long-lived headless Chrome sessions via chromedp. Each
// worker owns one session for its entire lifetime.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/JakeFAU/heir-finder/internal/poll"
	"github.com/JakeFAU/heir-finder/internal/scraper"
)

// Config controls how sessions are launched.
type Config struct {
	Headless          bool
	NoSandbox         bool
	ExecPath          string
	UserAgent         string
	WindowWidth       int
	WindowHeight      int
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	SlowMo            time.Duration
	Headers           map[string]string
}

// Launcher opens chromedp-backed sessions.
type Launcher struct {
	cfg    Config
	logger *zap.Logger
}

// NewLauncher validates cfg and returns a Launcher.
func NewLauncher(cfg Config, logger *zap.Logger) (*Launcher, error) {
	if cfg.NavigationTimeout < 0 || cfg.ActionTimeout < 0 || cfg.SlowMo < 0 {
		return nil, fmt.Errorf("browser timeouts must be >= 0")
	}
	if cfg.NavigationTimeout == 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.ActionTimeout == 0 {
		cfg.ActionTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{cfg: cfg, logger: logger}, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	opts = append(opts,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	return opts
}

// Open launches a browser and an initial tab. ctx bounds the launch only; the
// session outlives its cancellation and is torn down by Close, so the item in
// hand can finish after an interrupt.
func (l *Launcher) Open(ctx context.Context) (scraper.Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(l.cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	stopForward := forwardCancel(ctx, tabCancel)

	s := &Session{
		cfg:         l.cfg,
		tab:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		logger:      l.logger,
	}
	err := chromedp.Run(tabCtx, s.networkSetupAction())
	stopForward()
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	if err := ctx.Err(); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return s, nil
}

// Session is one browser tab implementing scraper.Page.
type Session struct {
	cfg         Config
	tab         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

var _ scraper.Session = (*Session)(nil)

func (s *Session) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(s.cfg.Headers) > 0 {
			headers := network.Headers{}
			for k, v := range s.cfg.Headers {
				headers[k] = v
			}
			if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

// run executes actions on the tab with a per-call timeout while honoring the
// caller's ctx. Failures after the tab died are reported as ErrSessionLost.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := s.tab.Err(); err != nil {
		return fmt.Errorf("%w: %v", scraper.ErrSessionLost, err)
	}
	runCtx, cancel := context.WithTimeout(s.tab, timeout)
	defer cancel()
	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if s.tab.Err() != nil {
			return fmt.Errorf("%w: %v", scraper.ErrSessionLost, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("browser action canceled: %w", ctxErr)
		}
		return err
	}
	return nil
}

func (s *Session) pause(actions ...chromedp.Action) []chromedp.Action {
	if s.cfg.SlowMo > 0 {
		actions = append(actions, chromedp.Sleep(s.cfg.SlowMo))
	}
	return actions
}

// Navigate loads url and waits for the body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.cfg.NavigationTimeout, s.pause(
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)...); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitVisible blocks until selector is visible or timeout elapses.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait visible %s: %w", selector, err)
	}
	return nil
}

// WaitHidden blocks until selector is absent or not rendered.
func (s *Session) WaitHidden(ctx context.Context, selector string, timeout time.Duration) error {
	script := fmt.Sprintf(`(() => {
	const els = document.querySelectorAll(%q);
	for (const el of els) { if (el.offsetParent !== null) { return false; } }
	return true;
})()`, selector)
	_, err := poll.Until(ctx, poll.Within(timeout, 250*time.Millisecond), func(ctx context.Context) (bool, bool, error) {
		var hidden bool
		if err := s.Evaluate(ctx, script, &hidden); err != nil {
			if errors.Is(err, scraper.ErrSessionLost) {
				return false, false, err
			}
			return false, false, nil
		}
		return hidden, hidden, nil
	})
	if err != nil {
		return fmt.Errorf("wait hidden %s: %w", selector, err)
	}
	return nil
}

// Click clicks the first element matching selector once visible.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, s.cfg.ActionTimeout, s.pause(
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	)...); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// Fill clears the input matching selector and types text into it.
func (s *Session) Fill(ctx context.Context, selector, text string) error {
	if err := s.run(ctx, s.cfg.ActionTimeout, s.pause(
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)...); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

var namedKeys = map[string]string{
	"Enter":     kb.Enter,
	"Tab":       kb.Tab,
	"Escape":    kb.Escape,
	"ArrowDown": kb.ArrowDown,
}

// Press sends a named key (Enter, Tab, Escape, ArrowDown) or literal text to selector.
func (s *Session) Press(ctx context.Context, selector, key string) error {
	if k, ok := namedKeys[key]; ok {
		key = k
	}
	if err := s.run(ctx, s.cfg.ActionTimeout, s.pause(
		chromedp.SendKeys(selector, key, chromedp.ByQuery),
	)...); err != nil {
		return fmt.Errorf("press on %s: %w", selector, err)
	}
	return nil
}

// Evaluate runs script in the page and decodes its result into out. A nil out
// discards the result.
func (s *Session) Evaluate(ctx context.Context, script string, out any) error {
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// Content returns the page's outer HTML.
func (s *Session) Content(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return html, nil
}

// Text returns the rendered text of the first element matching selector.
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	var text string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read text %s: %w", selector, err)
	}
	return text, nil
}

// Location returns the current page URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

// Close shuts the browser down.
func (s *Session) Close() error {
	err := chromedp.Cancel(s.tab)
	s.tabCancel()
	s.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
