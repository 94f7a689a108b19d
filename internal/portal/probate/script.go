package probate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/heir-finder/internal/captcha"
	"github.com/JakeFAU/heir-finder/internal/metrics"
	"github.com/JakeFAU/heir-finder/internal/poll"
	"github.com/JakeFAU/heir-finder/internal/scraper"
)

// State names a step of the per-identity search.
type State int

// Search states in the order they are entered.
const (
	StateIdle State = iota
	StateFormFilled
	StateCaptchaSolved
	StateSubmitted
	StateResultsReady
	StateExtracted
	StateNoResults
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFormFilled:
		return "FORM_FILLED"
	case StateCaptchaSolved:
		return "CAPTCHA_SOLVED"
	case StateSubmitted:
		return "SUBMITTED"
	case StateResultsReady:
		return "RESULTS_READY"
	case StateExtracted:
		return "EXTRACTED"
	case StateNoResults:
		return "NO_RESULTS"
	default:
		return "UNKNOWN"
	}
}

// Script implements scraper.Script for the probate portal.
type Script struct {
	cfg     Config
	matcher Matcher
	solver  captcha.Solver
	logger  *zap.Logger
}

var _ scraper.Script = (*Script)(nil)

// New builds a Script. solver may be nil when the portal serves no challenge;
// a challenge detected without a solver fails the search.
func New(cfg Config, solver captcha.Solver, logger *zap.Logger) (*Script, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Script{
		cfg: cfg,
		matcher: Matcher{
			CardSelector:       cfg.ResultCard,
			DisqualifyingTypes: cfg.DisqualifyingTypes,
			OpenStatus:         cfg.OpenStatus,
		},
		solver: solver,
		logger: logger,
	}, nil
}

// Name implements scraper.Script.
func (s *Script) Name() string { return "probate" }

// Warmup opens the portal and fixes the advanced-search filters once per session.
func (s *Script) Warmup(ctx context.Context, page scraper.Page) error {
	if err := page.Navigate(ctx, s.cfg.URL); err != nil {
		return err
	}
	if s.cfg.AdvancedOptions != "" {
		if err := page.Click(ctx, s.cfg.AdvancedOptions); err != nil {
			return fmt.Errorf("open advanced options: %w", err)
		}
		if err := sleep(ctx, s.cfg.SettleDelay); err != nil {
			return err
		}
	}
	if s.cfg.LocationInput != "" {
		if err := s.choose(ctx, page, s.cfg.LocationInput, s.cfg.LocationValue); err != nil {
			return fmt.Errorf("select location: %w", err)
		}
	}
	if s.cfg.CaseTypeInput != "" {
		if err := s.choose(ctx, page, s.cfg.CaseTypeInput, s.cfg.CaseTypeValue); err != nil {
			return fmt.Errorf("select case type: %w", err)
		}
	}
	return nil
}

// choose types value into a dropdown and clicks the matching popup item,
// falling back to Enter when no item matches.
func (s *Script) choose(ctx context.Context, page scraper.Page, input, value string) error {
	if err := page.Click(ctx, input); err != nil {
		return err
	}
	if err := page.Fill(ctx, input, value); err != nil {
		return err
	}
	if err := sleep(ctx, s.cfg.SettleDelay/2); err != nil {
		return err
	}
	script, err := clickItemScript(s.cfg.DropdownItems, value)
	if err != nil {
		return err
	}
	var clicked bool
	if err := page.Evaluate(ctx, script, &clicked); err != nil || !clicked {
		if errors.Is(err, scraper.ErrSessionLost) {
			return err
		}
		if err := page.Press(ctx, input, "Enter"); err != nil {
			return err
		}
	}
	return sleep(ctx, s.cfg.SettleDelay)
}

func clickItemScript(itemSelector, value string) (string, error) {
	sel, err := json.Marshal(itemSelector)
	if err != nil {
		return "", fmt.Errorf("marshal selector: %w", err)
	}
	text, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return fmt.Sprintf(`(() => {
	for (const el of document.querySelectorAll(%s)) {
		if (el.offsetParent !== null && el.textContent.includes(%s)) { el.click(); return true; }
	}
	return false;
})()`, sel, text), nil
}

// Search runs one identity through the portal. A poll that never sees a
// recognizable page yields a TIMEOUT result; other failures are returned as
// errors.
func (s *Script) Search(ctx context.Context, page scraper.Page, id scraper.Identity) (scraper.Result, error) {
	run := &searchRun{script: s, page: page, id: id, state: StateIdle}
	return run.execute(ctx)
}

// Reset returns the session to an empty search form.
func (s *Script) Reset(ctx context.Context, page scraper.Page) error {
	if err := page.Click(ctx, s.cfg.ResetTab); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := page.WaitVisible(ctx, s.cfg.SearchInput, s.cfg.ResetTimeout); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

type searchRun struct {
	script *Script
	page   scraper.Page
	id     scraper.Identity
	state  State
}

func (r *searchRun) enter(next State) {
	r.script.logger.Debug("search state",
		zap.String("search_term", r.id.SearchTerm),
		zap.Stringer("from", r.state),
		zap.Stringer("to", next),
	)
	r.state = next
}

func (r *searchRun) execute(ctx context.Context) (scraper.Result, error) {
	cfg := r.script.cfg
	if err := r.page.Fill(ctx, cfg.SearchInput, r.id.SearchTerm); err != nil {
		return scraper.Result{}, fmt.Errorf("fill search: %w", err)
	}
	r.enter(StateFormFilled)

	if err := r.solveCaptcha(ctx); err != nil {
		return scraper.Result{}, err
	}
	r.enter(StateCaptchaSolved)

	if err := r.page.Click(ctx, cfg.SubmitButton); err != nil {
		return scraper.Result{}, fmt.Errorf("submit search: %w", err)
	}
	r.enter(StateSubmitted)

	ready, err := r.waitForResults(ctx)
	if errors.Is(err, poll.ErrExhausted) {
		return scraper.TimedOut(), nil
	}
	if err != nil {
		return scraper.Result{}, err
	}
	r.enter(StateResultsReady)

	if ready.Cards == 0 {
		r.enter(StateNoResults)
		return scraper.NotFound(), nil
	}
	html, err := r.page.Content(ctx)
	if err != nil {
		return scraper.Result{}, fmt.Errorf("read results: %w", err)
	}
	ev, err := r.script.matcher.Evaluate(html, r.id)
	if err != nil {
		return scraper.Result{}, fmt.Errorf("parse results: %w", err)
	}
	r.enter(StateExtracted)

	fields := map[string]string{"matched_cards": strconv.Itoa(ev.Matched)}
	if ev.Disqualified {
		fields["disqualifying_case"] = ev.CaseType
		return scraper.Disqualified(ready.Cards, fields), nil
	}
	return scraper.Clean(ready.Cards, fields), nil
}

func (r *searchRun) solveCaptcha(ctx context.Context) error {
	html, err := r.page.Content(ctx)
	if err != nil {
		return fmt.Errorf("read page for captcha: %w", err)
	}
	kind, siteKey := captcha.Detect(html)
	if kind == captcha.KindNone {
		return nil
	}
	if r.script.solver == nil {
		return fmt.Errorf("%w: %s challenge present and no solver configured", captcha.ErrUnsolved, kind)
	}
	pageURL, err := r.page.Location(ctx)
	if err != nil || pageURL == "" {
		pageURL = r.script.cfg.URL
	}
	start := time.Now()
	token, err := r.script.solver.Solve(ctx, kind, siteKey, pageURL)
	metrics.ObserveCaptcha(string(kind), err == nil, time.Since(start))
	if err != nil {
		return err
	}
	script, err := captcha.InjectScript(kind, token)
	if err != nil {
		return err
	}
	var injected bool
	if err := r.page.Evaluate(ctx, script, &injected); err != nil {
		return fmt.Errorf("inject captcha token: %w", err)
	}
	if !injected {
		r.script.logger.Warn("captcha response field missing", zap.String("kind", string(kind)))
	}
	return nil
}

type readiness struct {
	Cards int  `json:"cards"`
	Empty bool `json:"empty"`
}

func (r *searchRun) waitForResults(ctx context.Context) (readiness, error) {
	cfg := r.script.cfg
	if cfg.LoadingMask != "" {
		if err := r.page.WaitHidden(ctx, cfg.LoadingMask, cfg.MaskTimeout); errors.Is(err, scraper.ErrSessionLost) {
			return readiness{}, err
		}
	}
	script, err := readinessScript(cfg.ResultCard, cfg.NoResultsMarkers)
	if err != nil {
		return readiness{}, err
	}
	return poll.Until(ctx, cfg.ResultPoll, func(ctx context.Context) (readiness, bool, error) {
		var ready readiness
		if err := r.page.Evaluate(ctx, script, &ready); err != nil {
			if errors.Is(err, scraper.ErrSessionLost) {
				return ready, false, err
			}
			// page still navigating
			return ready, false, nil
		}
		return ready, ready.Cards > 0 || ready.Empty, nil
	})
}

func readinessScript(cardSelector string, markers []string) (string, error) {
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		lowered = append(lowered, strings.ToLower(m))
	}
	sel, err := json.Marshal(cardSelector)
	if err != nil {
		return "", fmt.Errorf("marshal selector: %w", err)
	}
	list, err := json.Marshal(lowered)
	if err != nil {
		return "", fmt.Errorf("marshal markers: %w", err)
	}
	return fmt.Sprintf(`(() => {
	if (!document.body) { return {cards: 0, empty: false}; }
	const cards = document.querySelectorAll(%s).length;
	const text = (document.body.innerText || "").toLowerCase();
	const empty = %s.some((m) => text.includes(m));
	return {cards: cards, empty: empty};
})()`, sel, list), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
