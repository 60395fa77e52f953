package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/CaitMS/Web-Exploration-Engine/internal/metrics"
	"github.com/CaitMS/Web-Exploration-Engine/internal/proxy"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

type ChromeManager struct {
	cfg     *config.BrowserConfig
	proxies *proxy.Pool
	log     *slog.Logger
}

func NewChromeManager(cfg *config.BrowserConfig, proxies *proxy.Pool, log *slog.Logger) *ChromeManager {
	return &ChromeManager{cfg: cfg, proxies: proxies, log: log}
}

// Acquire launches a browser routed through the next proxy of the pool. The browser lives
// until the session is closed or ctx is done.
func (m *ChromeManager) Acquire(ctx context.Context) (Session, error) {
	var creds *proxy.Credentials
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if m.proxies != nil && m.proxies.Enabled() {
		c, err := m.proxies.Credentials()
		if err != nil {
			return nil, err
		}
		creds = &c
		opts = append(opts, chromedp.ProxyServer(m.proxies.GetProxy()))
	}
	if m.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.cfg.ExecPath))
	}
	if m.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	// The first Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	metrics.IncSessions()
	m.log.Debug("browser session started.")

	return &chromeSession{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		creds:         creds,
		navTimeout:    m.cfg.NavigationTimeout,
		log:           m.log,
	}, nil
}

type chromeSession struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	creds         *proxy.Credentials
	navTimeout    time.Duration
	log           *slog.Logger
	open          atomic.Int64
	closed        atomic.Bool
	closeOnce     sync.Once
}

func (s *chromeSession) NewPage(ctx context.Context) (Page, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	cancel := tabCancel
	if s.navTimeout > 0 {
		var timeoutCancel context.CancelFunc
		tabCtx, timeoutCancel = context.WithTimeout(tabCtx, s.navTimeout)
		cancel = func() {
			timeoutCancel()
			tabCancel()
		}
	}
	// Stop the tab if the job is abandoned before the page is closed.
	stop := context.AfterFunc(ctx, cancel)

	var actions []chromedp.Action
	if s.creds != nil {
		listenForAuth(tabCtx, *s.creds)
		actions = append(actions, fetch.Enable().WithHandleAuthRequests(true))
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		stop()
		cancel()
		return nil, fmt.Errorf("open page: %w", err)
	}
	s.open.Add(1)
	metrics.ObservePageOpened()

	return &chromePage{
		ctx: tabCtx,
		close: func() {
			stop()
			cancel()
			s.open.Add(-1)
			metrics.ObservePageClosed()
		},
	}, nil
}

func (s *chromeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if n := s.open.Load(); n > 0 {
			s.log.Warn("closing browser with open pages.", slog.Int64("pages", n))
		}
		err = chromedp.Cancel(s.browserCtx)
		s.browserCancel()
		s.allocCancel()
		metrics.DecSessions()
		s.log.Debug("browser session closed.")
	})
	return err
}

// listenForAuth answers proxy authentication challenges for the tab.
func listenForAuth(ctx context.Context, creds proxy.Credentials) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *fetch.EventRequestPaused:
			go func() {
				c := chromedp.FromContext(ctx)
				_ = fetch.ContinueRequest(e.RequestID).Do(cdp.WithExecutor(ctx, c.Target))
			}()
		case *fetch.EventAuthRequired:
			go func() {
				c := chromedp.FromContext(ctx)
				_ = fetch.ContinueWithAuth(e.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: creds.Username,
					Password: creds.Password,
				}).Do(cdp.WithExecutor(ctx, c.Target))
			}()
		}
	})
}

type chromePage struct {
	ctx       context.Context
	close     func()
	closeOnce sync.Once
}

func (p *chromePage) Navigate(url string, waitFor string) error {
	return chromedp.Run(p.ctx, enableLifeCycleEvents(), navigateAndWaitFor(url, waitFor))
}

func (p *chromePage) HTML() (string, error) {
	var html string
	err := chromedp.Run(p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		rootNode, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		html, err = dom.GetOuterHTML().WithNodeID(rootNode.NodeID).Do(ctx)
		return err
	}))
	return html, err
}

func (p *chromePage) Screenshot(quality int) ([]byte, error) {
	var buf []byte
	if err := chromedp.Run(p.ctx, chromedp.FullScreenshot(&buf, quality)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(p.close)
	return nil
}

func enableLifeCycleEvents() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		err := page.Enable().Do(ctx)
		if err != nil {
			return err
		}
		err = page.SetLifecycleEventsEnabled(true).Do(ctx)
		if err != nil {
			return err
		}
		return nil
	}
}

func navigateAndWaitFor(url string, eventName string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		_, _, errorText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("navigate %s: %s", url, errorText)
		}
		return waitFor(ctx, eventName)
	}
}

func waitFor(ctx context.Context, eventName string) error {
	ch := make(chan struct{})
	cctx, cancel := context.WithCancel(ctx)
	chromedp.ListenTarget(cctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventLifecycleEvent:
			if e.Name == eventName {
				cancel()
				close(ch)
			}
		}
	})
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}
