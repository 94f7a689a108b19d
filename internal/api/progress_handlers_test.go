package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/heir-finder/internal/scraper"
	"github.com/JakeFAU/heir-finder/internal/stats"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func nopLogger() *zap.Logger { return zap.NewNop() }

func kept(label string, r scraper.Result) scraper.SearchOutcome {
	return scraper.SearchOutcome{
		Item:     scraper.ItemRef{Label: label, Raw: "SMITH JOHN"},
		Identity: scraper.Identity{FirstName: "JOHN", LastName: "SMITH", SearchTerm: "SMITH JOHN"},
		Result:   r,
	}
}

func TestGetProgress(t *testing.T) {
	t.Parallel()

	st := stats.New()
	for range 2 {
		st.Begin()
		st.Finish()
	}
	st.AddQualified()
	st.Begin()

	info := RunInfo{RunID: "run-1", Variant: "tax", Total: 4, Workers: 2, StartedAt: time.Unix(0, 0)}
	s := NewServer(Config{}, NewProgressHandler(info, st, nil, fixedClock{time.Unix(120, 0)}), nil)

	rec := do(s, http.MethodGet, "/v1/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		RunID    string `json:"run_id"`
		Elapsed  string `json:"elapsed"`
		ETA      string `json:"eta"`
		Progress struct {
			Completed     int     `json:"completed"`
			Qualified     int     `json:"qualified"`
			InProgress    int     `json:"in_progress"`
			Percent       float64 `json:"percent"`
			RatePerMinute float64 `json:"rate_per_minute"`
		} `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, 2, body.Progress.Completed)
	assert.Equal(t, 1, body.Progress.Qualified)
	assert.Equal(t, 1, body.Progress.InProgress)
	assert.InDelta(t, 50.0, body.Progress.Percent, 0.001)
	assert.InDelta(t, 1.0, body.Progress.RatePerMinute, 0.001)
	assert.Equal(t, "2m0s", body.Elapsed)
	assert.Equal(t, "2m0s", body.ETA)
}

func TestGetProgressUnavailable(t *testing.T) {
	t.Parallel()

	s := NewServer(Config{}, NewProgressHandler(RunInfo{}, nil, nil, fixedClock{}), nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(s, http.MethodGet, "/v1/progress", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(s, http.MethodGet, "/v1/outcomes", nil).Code)
}

func TestListOutcomes(t *testing.T) {
	t.Parallel()

	recent := NewRecent(10)
	ctx := context.Background()
	require.NoError(t, recent.Record(ctx, kept("1", scraper.Clean(1, nil))))
	require.NoError(t, recent.Record(ctx, kept("2", scraper.NotFound())))
	require.NoError(t, recent.Record(ctx, kept("3", scraper.Clean(2, nil))))
	s := NewServer(Config{}, NewProgressHandler(RunInfo{}, stats.New(), recent, fixedClock{}), nil)

	tests := []struct {
		name  string
		query string
		code  int
		rows  []string
	}{
		{name: "all newest first", query: "", code: http.StatusOK, rows: []string{"3", "2", "1"}},
		{name: "status filter", query: "?status=found_clean", code: http.StatusOK, rows: []string{"3", "1"}},
		{name: "limit offset", query: "?limit=1&offset=1", code: http.StatusOK, rows: []string{"2"}},
		{name: "bad status", query: "?status=maybe", code: http.StatusBadRequest},
		{name: "bad limit", query: "?limit=0", code: http.StatusBadRequest},
		{name: "bad offset", query: "?offset=-1", code: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := do(s, http.MethodGet, "/v1/outcomes"+tc.query, nil)
			require.Equal(t, tc.code, rec.Code)
			if tc.code != http.StatusOK {
				return
			}
			var body struct {
				Outcomes []struct {
					Row string `json:"row"`
				} `json:"outcomes"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			rows := make([]string, 0, len(body.Outcomes))
			for _, o := range body.Outcomes {
				rows = append(rows, o.Row)
			}
			assert.Equal(t, tc.rows, rows)
		})
	}
}

func TestRecentEvictsOldest(t *testing.T) {
	t.Parallel()

	recent := NewRecent(3)
	for i := 1; i <= 5; i++ {
		require.NoError(t, recent.Record(context.Background(), kept(fmt.Sprint(i), scraper.NotFound())))
	}
	got := recent.List("", 10, 0)
	require.Len(t, got, 3)
	assert.Equal(t, "5", got[0].Row)
	assert.Equal(t, "3", got[2].Row)
}
