package scraper

import (
	"context"
	"errors"
	"time"
)

// ErrSessionLost marks failures of the browser session itself. It is the only
// error class that stops a worker early.
var ErrSessionLost = errors.New("browser session lost")

// Page is the browser surface the portal scripts drive.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	WaitHidden(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, text string) error
	Press(ctx context.Context, selector, key string) error
	Evaluate(ctx context.Context, script string, out any) error
	Content(ctx context.Context) (string, error)
	Text(ctx context.Context, selector string) (string, error)
	Location(ctx context.Context) (string, error)
}

// Session is a long-lived Page owned by exactly one worker.
type Session interface {
	Page
	Close() error
}

// SessionFactory opens a new browser session.
type SessionFactory func(ctx context.Context) (Session, error)

// Script is the site-specific interaction run against a session.
type Script interface {
	// Name identifies the portal in logs and metrics.
	Name() string
	// Warmup runs once per session before any search.
	Warmup(ctx context.Context, page Page) error
	// Search runs one identity through the portal. Returned errors are
	// converted to StatusError results by the caller.
	Search(ctx context.Context, page Page, id Identity) (Result, error)
	// Reset returns the page to the pre-search state.
	Reset(ctx context.Context, page Page) error
}

// OutcomeSink receives every kept outcome after it has been written to disk.
type OutcomeSink interface {
	Record(ctx context.Context, outcome SearchOutcome) error
}

// Limiter paces portal submissions.
type Limiter interface {
	Wait(ctx context.Context, target string) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}
