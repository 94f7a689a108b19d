package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/heir-finder/internal/scraper"
	"github.com/JakeFAU/heir-finder/internal/stats"
)

func TestRecordInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "", "")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	o := scraper.SearchOutcome{
		RunID:      "run-1",
		Item:       scraper.ItemRef{Index: 4, Label: "4.2", Raw: "SMITH JOHN & MARY"},
		Identity:   scraper.Identity{FirstName: "MARY", LastName: "SMITH", SearchTerm: "SMITH, MARY"},
		Property:   scraper.PropertyInfo{AccountNumber: "001"},
		Result:     scraper.Clean(2, map[string]string{"matched_cards": "1"}),
		Worker:     3,
		FinishedAt: now,
	}

	mock.ExpectExec("INSERT INTO search_outcomes").
		WithArgs(
			"run-1",
			4,
			"4.2",
			"SMITH JOHN & MARY",
			"MARY",
			"",
			"SMITH",
			"SMITH, MARY",
			"FOUND_CLEAN",
			2,
			false,
			[]byte(`{"matched_cards":"1"}`),
			[]byte(`{"account_number":"001"}`),
			3,
			now,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Record(context.Background(), o))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordWrapsExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "leads", "")
	require.NoError(t, err)
	mock.ExpectExec("INSERT INTO leads").
		WithArgs(anyArgs(15)...).
		WillReturnError(errors.New("conn reset"))

	err = store.Record(context.Background(), scraper.SearchOutcome{Result: scraper.NotFound()})
	require.ErrorContains(t, err, "insert outcome: conn reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "", "runs")
	require.NoError(t, err)

	started := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("INSERT INTO runs").
		WithArgs("run-1", "probate", 10, started, RunRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	summary := stats.Summary{RunID: "run-1", Total: 10, Completed: 10, Qualified: 3, Started: started, Elapsed: time.Minute}
	mock.ExpectExec("UPDATE runs").
		WithArgs(started.Add(time.Minute), RunCompleted, 10, 3, 0, "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE runs").
		WithArgs(started.Add(time.Minute), RunCompleted, 10, 3, 0, "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, store.StartRun(context.Background(), "run-1", "probate", 10, started))
	require.NoError(t, store.FinishRun(context.Background(), summary, StatusFor(summary, false)))
	require.ErrorContains(t, store.FinishRun(context.Background(), summary, RunCompleted), "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	done := stats.Summary{Total: 1, Completed: 1}
	assert.Equal(t, RunCompleted, StatusFor(done, false))
	assert.Equal(t, RunInterrupted, StatusFor(done, true))
	assert.Equal(t, RunIncomplete, StatusFor(stats.Summary{Total: 2, Completed: 1}, false))
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "", "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewWithPool(mock, "bad;table", "")
	require.Error(t, err)

	_, err = New(context.Background(), Config{})
	require.ErrorContains(t, err, "database.dsn is required")
}
