package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/heir-finder/internal/scraper"
	"github.com/JakeFAU/heir-finder/internal/stats"
)

const (
	defaultOutcomeLimit = 50
	maxOutcomeLimit     = 500
)

// RunInfo describes the run the status server reports on.
type RunInfo struct {
	RunID     string    `json:"run_id"`
	Variant   string    `json:"variant"`
	Total     int       `json:"total"`
	Workers   int       `json:"workers"`
	StartedAt time.Time `json:"started_at"`
}

// ProgressHandler exposes read-only run progress endpoints.
type ProgressHandler struct {
	info   RunInfo
	stats  *stats.Stats
	recent *Recent
	clock  scraper.Clock
}

// NewProgressHandler wires the shared stats and the recent-outcomes buffer.
// recent may be nil.
func NewProgressHandler(info RunInfo, st *stats.Stats, recent *Recent, clock scraper.Clock) *ProgressHandler {
	return &ProgressHandler{info: info, stats: st, recent: recent, clock: clock}
}

type progressDTO struct {
	RunInfo
	Progress stats.Progress `json:"progress"`
	Elapsed  string         `json:"elapsed"`
	ETA      string         `json:"eta,omitempty"`
}

// GetProgress handles GET /v1/progress. It returns 503 before stats are wired.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, _ *http.Request) {
	if h == nil || h.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "progress unavailable")
		return
	}
	elapsed := h.clock.Now().Sub(h.info.StartedAt)
	p := h.stats.Snapshot().Progress(h.info.Total, elapsed)
	dto := progressDTO{
		RunInfo:  h.info,
		Progress: p,
		Elapsed:  elapsed.Truncate(time.Second).String(),
	}
	if p.ETA > 0 {
		dto.ETA = p.ETA.Truncate(time.Second).String()
	}
	writeJSON(w, http.StatusOK, dto)
}

// ListOutcomes handles GET /v1/outcomes?status=&limit=&offset=, newest first.
func (h *ProgressHandler) ListOutcomes(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.recent == nil {
		writeError(w, http.StatusServiceUnavailable, "outcome buffer unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultOutcomeLimit, maxOutcomeLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status scraper.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err = parseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outcomes": h.recent.List(status, limit, offset),
	})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (scraper.Status, error) {
	want := scraper.Status(strings.ToUpper(input))
	for _, s := range scraper.Statuses {
		if s == want {
			return s, nil
		}
	}
	return "", errors.New("invalid status")
}

// OutcomeView is the API rendering of a kept outcome.
type OutcomeView struct {
	Row        string               `json:"row"`
	Owner      string               `json:"owner"`
	SearchTerm string               `json:"search_term"`
	Property   scraper.PropertyInfo `json:"property"`
	Result     scraper.Result       `json:"result"`
	Worker     int                  `json:"worker"`
	FinishedAt time.Time            `json:"finished_at"`
}

// Recent is a bounded buffer of the latest kept outcomes. It implements
// scraper.OutcomeSink so the writer can feed it.
type Recent struct {
	mu   sync.Mutex
	buf  []OutcomeView
	next int
	full bool
}

var _ scraper.OutcomeSink = (*Recent)(nil)

// NewRecent returns a buffer holding up to size outcomes.
func NewRecent(size int) *Recent {
	if size <= 0 {
		size = maxOutcomeLimit
	}
	return &Recent{buf: make([]OutcomeView, size)}
}

// Record stores o, evicting the oldest entry once full.
func (b *Recent) Record(_ context.Context, o scraper.SearchOutcome) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf[b.next] = OutcomeView{
		Row:        o.Item.Label,
		Owner:      o.Item.Raw,
		SearchTerm: o.Identity.SearchTerm,
		Property:   o.Property,
		Result:     o.Result,
		Worker:     o.Worker,
		FinishedAt: o.FinishedAt,
	}
	b.next = (b.next + 1) % len(b.buf)
	if b.next == 0 {
		b.full = true
	}
	return nil
}

// List returns up to limit outcomes, newest first, optionally filtered by
// status.
func (b *Recent) List(status scraper.Status, limit, offset int) []OutcomeView {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.next
	if b.full {
		n = len(b.buf)
	}
	out := make([]OutcomeView, 0, min(limit, n))
	skipped := 0
	for i := 0; i < n && len(out) < limit; i++ {
		idx := (b.next - 1 - i + len(b.buf)) % len(b.buf)
		o := b.buf[idx]
		if status != "" && o.Result.Status() != status {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, o)
	}
	return out
}
