package probate

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/heir-finder/internal/scraper"
)

const resultsHTML = `<html><body>
<div class="party-card">
  <div class="party-name">SMITHSON, JOHN</div>
  <table class="kgrid-card-table"><tr>
    <td class="card-data party-case-type">HEIRSHIP</td>
    <td class="card-data party-case-status">OPEN</td>
  </tr></table>
</div>
<div class="party-card">
  <div class="party-name">SMITH, JOHN A</div>
  <table class="kgrid-card-table"><tr>
    <td class="card-data party-case-type">GUARDIANSHIP</td>
    <td class="card-data party-case-status">OPEN</td>
  </tr></table>
  <table class="kgrid-card-table"><tr>
    <td class="card-data party-case-type">DECEDENT - WILL PROBATE</td>
    <td class="card-data party-case-status">Closed</td>
  </tr></table>
  <table class="kgrid-card-table"><tr>
    <td class="card-data party-case-type">Decedent - Will Probate</td>
    <td class="card-data party-case-status">open</td>
  </tr></table>
</div>
<div class="party-card">
  <div class="party-name">SMITH, JOHN</div>
  <table class="kgrid-card-table"><tr>
    <td class="card-data party-case-type">HEIRSHIP</td>
    <td class="card-data party-case-status">OPEN</td>
  </tr></table>
</div>
</body></html>`

func testMatcher() Matcher {
	cfg := DefaultConfig()
	return Matcher{CardSelector: cfg.ResultCard, DisqualifyingTypes: cfg.DisqualifyingTypes, OpenStatus: cfg.OpenStatus}
}

func TestEvaluateStopsAtFirstDisqualifyingCase(t *testing.T) {
	t.Parallel()

	ev, err := testMatcher().Evaluate(resultsHTML, scraper.Identity{FirstName: "JOHN", LastName: "SMITH"})
	require.NoError(t, err)
	assert.Equal(t, 3, ev.Cards)
	assert.Equal(t, 1, ev.Matched, "scan stops after the second card")
	assert.True(t, ev.Disqualified)
	assert.Equal(t, "DECEDENT - WILL PROBATE", ev.CaseType)
}

func TestEvaluateClean(t *testing.T) {
	t.Parallel()

	html := `<div class="party-card"><span>DOE, JANE</span>
<table class="kgrid-card-table"><tr><td class="card-data party-case-type">HEIRSHIP</td><td class="card-data party-case-status">CLOSED</td></tr></table>
</div>
<div class="party-card"><span>ROE, RICHARD</span>
<table class="kgrid-card-table"><tr><td class="card-data party-case-type">HEIRSHIP</td><td class="card-data party-case-status">OPEN</td></tr></table>
</div>`
	ev, err := testMatcher().Evaluate(html, scraper.Identity{FirstName: "JANE", LastName: "DOE"})
	require.NoError(t, err)
	assert.Equal(t, Evaluation{Cards: 2, Matched: 1}, ev)
}

func TestNameMatches(t *testing.T) {
	t.Parallel()

	john := scraper.Identity{FirstName: "JOHN", LastName: "SMITH"}
	johnQ := scraper.Identity{FirstName: "JOHN", MiddleName: "QUINCY", LastName: "SMITH"}
	cases := []struct {
		name string
		text string
		id   scraper.Identity
		want bool
	}{
		{name: "exact", text: "Smith, John", id: john, want: true},
		{name: "one trailing token", text: "SMITH, JOHN ALLEN", id: john, want: true},
		{name: "two trailing tokens", text: "SMITH, JOHN ALLEN JR", id: john, want: false},
		{name: "middle initial form", text: "SMITH, JOHN Q.", id: johnQ, want: true},
		{name: "other surname", text: "SMITHSON, JOHNNY", id: john, want: false},
		{name: "different person", text: "SMITH, MARY", id: john, want: false},
		{name: "name inside long line", text: "Party: SMITH, JOHN\nCase 123", id: john, want: true},
		{name: "no surname", text: "SMITH, JOHN", id: scraper.Identity{FirstName: "JOHN"}, want: false},
		{name: "accented middle initial", text: "SMITH, JOHN É.", id: scraper.Identity{FirstName: "JOHN", MiddleName: "Émile", LastName: "SMITH"}, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, NameMatches(tc.text, tc.id))
		})
	}
}

func TestWithInitial(t *testing.T) {
	t.Parallel()

	cases := []struct {
		middle string
		want   string
	}{
		{middle: "QUINCY", want: "SMITH, JOHN Q."},
		{middle: "ÉMILE", want: "SMITH, JOHN É."},
		{middle: "ØYVIND", want: "SMITH, JOHN Ø."},
		{middle: "", want: ""},
	}
	for _, tc := range cases {
		got := withInitial("SMITH, JOHN", tc.middle)
		assert.Equal(t, tc.want, got)
		assert.True(t, utf8.ValidString(got))
	}
}
