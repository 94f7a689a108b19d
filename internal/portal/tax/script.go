package tax

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/heir-finder/internal/poll"
	"github.com/JakeFAU/heir-finder/internal/scraper"
)

const (
	readyStateScript = `document.readyState === "complete"`
	yearRowsScript   = `Array.from(document.querySelectorAll("table tr")).map((r) => r.innerText || "")`
)

// Script implements scraper.Script for the tax-office portal.
type Script struct {
	cfg    Config
	logger *zap.Logger
}

var _ scraper.Script = (*Script)(nil)

// New builds a Script.
func New(cfg Config, logger *zap.Logger) (*Script, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Script{cfg: cfg, logger: logger}, nil
}

// Name implements scraper.Script.
func (s *Script) Name() string { return "tax" }

// Warmup opens the search page.
func (s *Script) Warmup(ctx context.Context, page scraper.Page) error {
	return s.Reset(ctx, page)
}

// Reset returns to an empty search form.
func (s *Script) Reset(ctx context.Context, page scraper.Page) error {
	if err := page.Navigate(ctx, s.cfg.SearchURL); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := page.WaitVisible(ctx, s.cfg.LastNameInput, s.cfg.PageTimeout); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// Search looks up estate accounts for id. The first qualifying account yields
// a FOUND_CLEAN result carrying the property fields; when every estate account
// is rejected the result is DISQUALIFIED; no estate account gives NOT_FOUND.
func (s *Script) Search(ctx context.Context, page scraper.Page, id scraper.Identity) (scraper.Result, error) {
	candidates, err := s.candidates(ctx, page, id)
	if errors.Is(err, poll.ErrExhausted) {
		return scraper.TimedOut(), nil
	}
	if err != nil {
		return scraper.Result{}, err
	}
	if len(candidates) == 0 {
		return scraper.NotFound(), nil
	}

	base, err := page.Location(ctx)
	if err != nil {
		return scraper.Result{}, fmt.Errorf("read location: %w", err)
	}
	var reasons []string
	for _, c := range candidates {
		fields, reason, err := s.inspect(ctx, page, base, c)
		if errors.Is(err, scraper.ErrSessionLost) || ctx.Err() != nil {
			if err == nil {
				err = ctx.Err()
			}
			return scraper.Result{}, err
		}
		if err != nil {
			s.logger.Warn("account inspection failed",
				zap.String("owner", c.Owner),
				zap.String("link", c.Link),
				zap.Error(err),
			)
			reasons = append(reasons, err.Error())
			continue
		}
		if fields != nil {
			return scraper.Clean(1, fields), nil
		}
		s.logger.Debug("account rejected", zap.String("owner", c.Owner), zap.String("reason", reason))
		reasons = append(reasons, reason)
	}
	return scraper.Disqualified(len(candidates), map[string]string{
		"rejections": strings.Join(reasons, "; "),
	}), nil
}

func (s *Script) candidates(ctx context.Context, page scraper.Page, id scraper.Identity) ([]Candidate, error) {
	if err := page.Fill(ctx, s.cfg.LastNameInput, id.LastName); err != nil {
		return nil, fmt.Errorf("fill last name: %w", err)
	}
	if err := page.Fill(ctx, s.cfg.FirstNameInput, id.FirstName); err != nil {
		return nil, fmt.Errorf("fill first name: %w", err)
	}
	if err := page.Click(ctx, s.cfg.SubmitButton); err != nil {
		return nil, fmt.Errorf("submit search: %w", err)
	}
	if err := s.waitLoaded(ctx, page); err != nil {
		return nil, err
	}
	html, err := page.Content(ctx)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return Candidates(html, s.cfg.ResultRows, s.cfg.EstateMarker, id.LastName, id.FirstName)
}

// inspect opens one account. It returns the output fields for a qualifying
// account, or the rejection reason.
func (s *Script) inspect(ctx context.Context, page scraper.Page, base string, c Candidate) (map[string]string, string, error) {
	link, err := resolve(base, c.Link)
	if err != nil {
		return nil, "", err
	}
	if err := page.Navigate(ctx, link); err != nil {
		return nil, "", fmt.Errorf("open account: %w", err)
	}
	if err := s.waitLoaded(ctx, page); err != nil {
		return nil, "", err
	}
	body, err := page.Text(ctx, "body")
	if err != nil {
		return nil, "", fmt.Errorf("read account: %w", err)
	}
	acct, err := ExtractAccount(body)
	if err != nil {
		return nil, "", err
	}
	if acct.PriorYearDue < acct.CurrentLevy {
		return nil, fmt.Sprintf("prior year due %s below current levy %s",
			FormatMoney(acct.PriorYearDue), FormatMoney(acct.CurrentLevy)), nil
	}

	html, err := page.Content(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("read account: %w", err)
	}
	href, ok := DetailLink(html, s.cfg.DetailLinkText)
	if !ok {
		return nil, "", fmt.Errorf("%q link not found", s.cfg.DetailLinkText)
	}
	here, err := page.Location(ctx)
	if err != nil || here == "" {
		here = link
	}
	detail, err := resolve(here, href)
	if err != nil {
		return nil, "", err
	}
	if err := page.Navigate(ctx, detail); err != nil {
		return nil, "", fmt.Errorf("open tax detail: %w", err)
	}
	if err := s.waitLoaded(ctx, page); err != nil {
		return nil, "", err
	}
	var rows []string
	if err := page.Evaluate(ctx, yearRowsScript, &rows); err != nil {
		return nil, "", fmt.Errorf("read tax detail: %w", err)
	}

	a := s.cfg.Criteria.Assess(acct.MarketValue, ParseYearRows(rows))
	if !a.Qualified {
		return nil, a.Reason, nil
	}
	return map[string]string{
		"owner":              c.Owner,
		"account_number":     acct.Number,
		"address":            acct.Address,
		"market_value":       FormatMoney(acct.MarketValue),
		"total_tax_owed":     FormatMoney(a.Total),
		"tax_to_value_ratio": strconv.FormatFloat(a.Ratio*100, 'f', 1, 64),
		"prior_year_due":     FormatMoney(acct.PriorYearDue),
		"current_levy":       FormatMoney(acct.CurrentLevy),
		"unpaid_years":       FormatYears(a.UnpaidYears),
	}, "", nil
}

func (s *Script) waitLoaded(ctx context.Context, page scraper.Page) error {
	_, err := poll.Until(ctx, poll.Within(s.cfg.PageTimeout, s.cfg.PagePoll), func(ctx context.Context) (bool, bool, error) {
		var complete bool
		if err := page.Evaluate(ctx, readyStateScript, &complete); err != nil {
			if errors.Is(err, scraper.ErrSessionLost) {
				return false, false, err
			}
			return false, false, nil
		}
		return complete, complete, nil
	})
	return err
}

func resolve(base, ref string) (string, error) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", ref, err)
	}
	if base == "" {
		return r.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse location %q: %w", base, err)
	}
	return b.ResolveReference(r).String(), nil
}
