// Package scrapertest provides in-memory fakes of the scraper interfaces.
package scrapertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/heir-finder/internal/scraper"
)

// Page is a scriptable scraper.Page. Every call is recorded as "op:arg".
// Errors registered in Fail under the same key are returned instead of
// performing the call.
type Page struct {
	mu sync.Mutex

	// HTML is returned by Content; HTMLFunc takes precedence when set.
	HTML     string
	HTMLFunc func() string

	// Texts maps selectors to Text results; TextFunc takes precedence when set.
	Texts    map[string]string
	TextFunc func(selector string) string

	// URL is the current location; Navigate updates it.
	URL string

	// EvalFunc answers Evaluate. Its return value is JSON-round-tripped into out.
	EvalFunc func(script string) (any, error)

	// Fail maps "op:arg" keys to injected errors.
	Fail map[string]error

	// OnCall runs after every recorded call.
	OnCall func(call string)

	calls  []string
	closed bool
}

var _ scraper.Session = (*Page)(nil)

func (p *Page) record(op, arg string) error {
	key := op + ":" + arg
	p.mu.Lock()
	p.calls = append(p.calls, key)
	err := p.Fail[key]
	hook := p.OnCall
	p.mu.Unlock()
	if hook != nil {
		hook(key)
	}
	return err
}

// Calls returns the recorded calls in order.
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// SetFail registers or clears an injected error.
func (p *Page) SetFail(key string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Fail == nil {
		p.Fail = map[string]error{}
	}
	if err == nil {
		delete(p.Fail, key)
		return
	}
	p.Fail[key] = err
}

// Navigate implements scraper.Page.
func (p *Page) Navigate(_ context.Context, url string) error {
	if err := p.record("navigate", url); err != nil {
		return err
	}
	p.mu.Lock()
	p.URL = url
	p.mu.Unlock()
	return nil
}

// WaitVisible implements scraper.Page.
func (p *Page) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	return p.record("visible", selector)
}

// WaitHidden implements scraper.Page.
func (p *Page) WaitHidden(_ context.Context, selector string, _ time.Duration) error {
	return p.record("hidden", selector)
}

// Click implements scraper.Page.
func (p *Page) Click(_ context.Context, selector string) error {
	return p.record("click", selector)
}

// Fill implements scraper.Page.
func (p *Page) Fill(_ context.Context, selector, text string) error {
	return p.record("fill", selector+"="+text)
}

// Press implements scraper.Page.
func (p *Page) Press(_ context.Context, selector, key string) error {
	return p.record("press", selector+"="+key)
}

// Evaluate implements scraper.Page.
func (p *Page) Evaluate(_ context.Context, script string, out any) error {
	if err := p.record("eval", ""); err != nil {
		return err
	}
	if p.EvalFunc == nil {
		return nil
	}
	v, err := p.EvalFunc(script)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("fake evaluate marshal: %w", err)
	}
	return json.Unmarshal(data, out)
}

// Content implements scraper.Page.
func (p *Page) Content(_ context.Context) (string, error) {
	if err := p.record("content", ""); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.HTMLFunc != nil {
		return p.HTMLFunc(), nil
	}
	return p.HTML, nil
}

// Text implements scraper.Page.
func (p *Page) Text(_ context.Context, selector string) (string, error) {
	if err := p.record("text", selector); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TextFunc != nil {
		return p.TextFunc(selector), nil
	}
	return p.Texts[selector], nil
}

// Location implements scraper.Page.
func (p *Page) Location(_ context.Context) (string, error) {
	if err := p.record("location", ""); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.URL, nil
}

// Close implements scraper.Session.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
