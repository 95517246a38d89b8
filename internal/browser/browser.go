// Package browser drives a headless Chromium instance for postings that
// hosted readers cannot render.
package browser

import (
	"context"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Capture is the rendered result of a page visit.
type Capture struct {
	Title string
	Text  string
}

// Scraper renders a URL in a real browser and returns its visible text.
type Scraper interface {
	Capture(ctx context.Context, url string) (*Capture, error)
	Close() error
}

// expandSelectors match the collapse widgets job boards hide descriptions
// behind. Each matching element is clicked once before text capture.
var expandSelectors = []string{
	`button:has-text("Show more")`,
	`button:has-text("See more")`,
	`button:has-text("Read more")`,
	`[aria-label="Show more"]`,
	`.show-more-less-html__button--more`,
}

type playwrightScraper struct {
	pw      *playwright.Playwright
	browser playwright.Browser

	headless   bool
	navTimeout time.Duration
	settleWait time.Duration
}

// Option configures the scraper.
type Option func(*playwrightScraper)

// WithHeadless toggles headless mode. Default true.
func WithHeadless(headless bool) Option {
	return func(s *playwrightScraper) {
		s.headless = headless
	}
}

// WithNavigationTimeout sets the per-page navigation timeout.
func WithNavigationTimeout(d time.Duration) Option {
	return func(s *playwrightScraper) {
		s.navTimeout = d
	}
}

// WithSettleWait sets how long to wait after navigation for late-rendering
// content before capture.
func WithSettleWait(d time.Duration) Option {
	return func(s *playwrightScraper) {
		s.settleWait = d
	}
}

// NewScraper launches a Chromium instance. The caller owns Close.
func NewScraper(opts ...Option) (Scraper, error) {
	s := &playwrightScraper{
		headless:   true,
		navTimeout: 30 * time.Second,
		settleWait: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, eris.Wrap(err, "browser: start playwright")
	}
	s.pw = pw

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.headless),
	})
	if err != nil {
		pw.Stop()
		return nil, eris.Wrap(err, "browser: launch chromium")
	}
	s.browser = b

	return s, nil
}

// Capture implements Scraper. Each call uses a fresh browser context so
// visits never share cookies or cache.
func (s *playwrightScraper) Capture(ctx context.Context, url string) (*Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("url", url))

	bctx, err := s.browser.NewContext()
	if err != nil {
		return nil, eris.Wrap(err, "browser: new context")
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return nil, eris.Wrap(err, "browser: new page")
	}

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.navTimeout.Milliseconds())),
	}); err != nil {
		return nil, eris.Wrapf(err, "browser: navigate to %s", url)
	}

	// Late-rendering boards populate the description after DOMContentLoaded.
	time.Sleep(s.settleWait)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.expandCollapsed(page, log)

	title, err := page.Title()
	if err != nil {
		title = ""
	}

	text, err := page.Locator("body").InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(5000),
	})
	if err != nil {
		return nil, eris.Wrap(err, "browser: read page text")
	}

	return &Capture{
		Title: strings.TrimSpace(title),
		Text:  strings.TrimSpace(text),
	}, nil
}

// expandCollapsed clicks show-more widgets so the full description is in the
// DOM before capture. Failures are ignored; a partial capture still feeds
// the completeness check downstream.
func (s *playwrightScraper) expandCollapsed(page playwright.Page, log *zap.Logger) {
	for _, selector := range expandSelectors {
		loc := page.Locator(selector)
		count, err := loc.Count()
		if err != nil || count == 0 {
			continue
		}
		for i := 0; i < count; i++ {
			if err := loc.Nth(i).Click(playwright.LocatorClickOptions{
				Timeout: playwright.Float(2000),
			}); err != nil {
				log.Debug("expand click failed",
					zap.String("selector", selector),
					zap.Error(err),
				)
			}
		}
	}
}

// Close shuts down the browser and the playwright driver.
func (s *playwrightScraper) Close() error {
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			return eris.Wrap(err, "browser: close chromium")
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			return eris.Wrap(err, "browser: stop playwright")
		}
	}
	return nil
}
