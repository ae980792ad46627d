// Package pwdom adapts Playwright pages to the dom element model so chains
// can run against a real browser.
package pwdom

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/chaincmds/internal/dom"
	"github.com/kuitang/chaincmds/internal/obs"
	"github.com/kuitang/chaincmds/internal/urlutil"
)

const (
	attributeJS = `(e, name) => e.getAttribute(name)`
	textNodesJS = `e => Array.from(e.childNodes).filter(n => n.nodeType === Node.TEXT_NODE).map(n => n.data)`
	describeJS  = `e => e.tagName.toLowerCase() + (e.id ? "#" + e.id : "") + Array.from(e.classList).map(c => "." + c).join("")`
)



// Options configures Launch.
type Options struct {
	BaseURL  string
	Headless *bool
	Timeout  time.Duration
}

// Browser owns a Playwright driver, a Chromium instance and one page.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	baseURL string
}

// Launch starts Playwright and opens a page in a fresh Chromium.
func Launch(opts Options) (*Browser, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("pwdom: start playwright: %w", err)
	}
	headless := opts.Headless
	if headless == nil {
		headless = playwright.Bool(true)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{Headless: headless})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("pwdom: launch chromium: %w", err)
	}
	page, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("pwdom: new page: %w", err)
	}
	if opts.Timeout > 0 {
		ms := float64(opts.Timeout.Milliseconds())
		page.SetDefaultTimeout(ms)
		page.SetDefaultNavigationTimeout(ms)
	}
	return &Browser{pw: pw, browser: browser, page: page, baseURL: opts.BaseURL}, nil
}

// Page returns the underlying Playwright page.
func (b *Browser) Page() playwright.Page {
	return b.page
}

// Visit implements dom.Visitor. Relative targets are resolved against the
// configured base URL.
func (b *Browser) Visit(ctx context.Context, target string) (dom.Root, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	url := urlutil.Resolve(b.baseURL, target)
	obs.From(ctx).Debug("visit", "pkg", "pwdom", "url", url)
	if _, err := b.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, fmt.Errorf("pwdom: visit %s: %w", url, err)
	}
	return Wrap(b.page), nil
}

// Close shuts down the browser and the driver.
func (b *Browser) Close() error {
	return errors.Join(b.browser.Close(), b.pw.Stop())
}

// Page is a dom.Root over a Playwright page.
type Page struct {
	page playwright.Page
}

// Wrap adapts an existing page.
func Wrap(page playwright.Page) *Page {
	return &Page{page: page}
}

// Query implements dom.Root.
func (p *Page) Query(ctx context.Context, selector string) (dom.Elements, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("pwdom: query %q: %w", selector, err)
	}
	return wrapAll(handles), nil
}

type element struct {
	handle playwright.ElementHandle
	label  string
}

func wrapAll(handles []playwright.ElementHandle) dom.Elements {
	out := make(dom.Elements, len(handles))
	for i, h := range handles {
		out[i] = newElement(h)
	}
	return out
}

func newElement(h playwright.ElementHandle) *element {
	label := "element"
	if v, err := h.Evaluate(describeJS); err == nil {
		if s, ok := v.(string); ok && s != "" {
			label = s
		}
	}
	return &element{handle: h, label: label}
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, err := e.handle.Evaluate(attributeJS, name)
	if err != nil {
		return "", false, fmt.Errorf("pwdom: read attribute %q: %w", name, err)
	}
	s, ok := v.(string)
	return s, ok, nil
}

func (e *element) TextNodes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := e.handle.Evaluate(textNodesJS)
	if err != nil {
		return nil, fmt.Errorf("pwdom: read text nodes: %w", err)
	}
	raw, _ := v.([]interface{})
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (e *element) Children(ctx context.Context) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := e.handle.QuerySelectorAll(":scope > *")
	if err != nil {
		return nil, fmt.Errorf("pwdom: read children: %w", err)
	}
	return wrapAll(handles), nil
}

func (e *element) Describe() string {
	return e.label
}
