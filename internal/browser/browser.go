package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session is a playwright-driven Chromium session with one page.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	timeout time.Duration
	logger  *slog.Logger
}

type Options struct {
	Headless          bool
	IgnoreHTTPSErrors bool
	Timeout           time.Duration
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	AcceptLanguage    string
	Locale            string
	ProxyServer       string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:          true,
		IgnoreHTTPSErrors: true,
		Timeout:           30 * time.Second,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		AcceptLanguage:    "en-GB,en;q=0.9",
		Locale:            "en-GB",
	}
}

// Launch starts playwright, a Chromium instance and a fresh browser context.
// Every context is isolated, so the session behaves like an incognito window.
func Launch(opts *Options, logger *slog.Logger) (*Session, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--incognito",
			"--user-agent=" + opts.UserAgent,
		},
	}

	if opts.IgnoreHTTPSErrors {
		launchOpts.Args = append(launchOpts.Args, "--ignore-certificate-errors")
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		IgnoreHttpsErrors: playwright.Bool(opts.IgnoreHTTPSErrors),
		Locale:            &opts.Locale,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: map[string]string{
			"Accept-Language": opts.AcceptLanguage,
		},
	}

	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))

	return &Session{
		pw:      pw,
		browser: browser,
		context: bctx,
		page:    page,
		timeout: opts.Timeout,
		logger:  logger.With("component", "browser"),
	}, nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Debug("navigating", "url", url)

	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	return nil
}

func (s *Session) CurrentURL() string {
	return s.page.URL()
}

func (s *Session) FindOne(ctx context.Context, sel Selector) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	locator := s.page.Locator(playwrightSelector(sel))
	count, err := locator.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", sel, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%s: %w", sel, ErrElementNotFound)
	}

	return &locatorElement{locator: locator.First()}, nil
}

func (s *Session) FindMany(ctx context.Context, sel Selector) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	locators, err := s.page.Locator(playwrightSelector(sel)).All()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", sel, err)
	}

	elements := make([]Element, 0, len(locators))
	for _, l := range locators {
		elements = append(elements, &locatorElement{locator: l})
	}

	return elements, nil
}

func (s *Session) Close() error {
	var errs []error

	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close page: %w", err))
		}
	}

	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

type locatorElement struct {
	locator playwright.Locator
}

func (e *locatorElement) Text() (string, error) {
	text, err := e.locator.InnerText()
	if err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}
	return text, nil
}

func (e *locatorElement) Attribute(name string) (string, error) {
	value, err := e.locator.GetAttribute(name)
	if err != nil {
		return "", fmt.Errorf("failed to read attribute %q: %w", name, err)
	}
	if value == "" {
		return "", fmt.Errorf("%s: %w", name, ErrAttributeNotFound)
	}
	return value, nil
}

func (e *locatorElement) Type(text string) error {
	return e.locator.Fill(text)
}

func (e *locatorElement) Submit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.locator.Press("Enter")
}

func playwrightSelector(sel Selector) string {
	if sel.By == ByXPath {
		return "xpath=" + sel.Value
	}
	return sel.CSS()
}
