package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/heir-finder/internal/scraper"
)

const probateExtract = `QUALIFIED ESTATE PROPERTIES - DYNAMIC WORK QUEUE
====================================================================================================
Started: 2025-01-02 03:04:05

Property #1 (Original Row #7) [Worker 3]
----------------------------------------------------------------------------------------------------
Owner: SMITH JOHN & MARY EST OF
Account Number: 00000123456000000
Address: SMITH JOHN EST OF 3147 MCDERMOTT AVE DALLAS, TX 75215-0000
Market Value: $120,000.00
Total Tax Owed: $9,500.50
Tax to Value Ratio: 7.9%
Prior Year Due: $3,100.00
Current Levy: $2,900.00
Unpaid Years: [2024, 2023, 2022]

Property #2 (Original Row #9) [Worker 1]
----------------------------------------------------------------------------------------------------
Account Number: 999

Property #3 (Original Row #12) [Worker 2]
----------------------------------------------------------------------------------------------------
Owner: EST OF
Address: 1 ELM ST

Property #4 (Original Row #15) [Worker 2]
----------------------------------------------------------------------------------------------------
Owner: DOE, JANE EST OF
Market Value: $50,000.00
`

func TestParseProbate(t *testing.T) {
	t.Parallel()

	res, err := ParseProbate(strings.NewReader(probateExtract))
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, 2, res.Skipped)

	first := res.Items[0]
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, "SMITH JOHN & MARY EST OF", first.Raw)
	require.Len(t, first.Identities, 2)
	assert.Equal(t, "SMITH, MARY", first.Identities[1].SearchTerm)
	assert.Equal(t, scraper.PropertyInfo{
		AccountNumber:   "00000123456000000",
		Address:         "SMITH JOHN EST OF 3147 MCDERMOTT AVE DALLAS, TX 75215-0000",
		MarketValue:     "120,000.00",
		TotalTaxOwed:    "9,500.50",
		TaxToValueRatio: "7.9",
		PriorYearDue:    "3,100.00",
		CurrentLevy:     "2,900.00",
		UnpaidYears:     "2024, 2023, 2022",
	}, first.Property)

	second := res.Items[1]
	assert.Equal(t, 3, second.Index, "unparseable owner still consumes an index")
	assert.Equal(t, "DOE, JANE", second.Identities[0].SearchTerm)
	assert.Equal(t, "50,000.00", second.Property.MarketValue)
	assert.Empty(t, second.Property.AccountNumber)
}

func TestParseTax(t *testing.T) {
	t.Parallel()

	input := "UNIQUE ESTATE OWNERS\n=====\nsmith john est of\nMALFORMED\n\nDOE JANE Q EST OF\n"
	res, err := ParseTax(strings.NewReader(input), 2)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, 1, res.Skipped)

	assert.Equal(t, 1, res.Items[0].Index)
	assert.Equal(t, scraper.Identity{FirstName: "JOHN", LastName: "SMITH", SearchTerm: "SMITH, JOHN"}, res.Items[0].Identities[0])
	assert.Equal(t, 4, res.Items[1].Index)
	assert.Equal(t, "DOE JANE Q EST OF", res.Items[1].Raw)
}

func TestSelect(t *testing.T) {
	t.Parallel()

	items := []scraper.WorkItem{{Index: 1}, {Index: 2}, {Index: 4}, {Index: 7}}
	indexes := func(in []scraper.WorkItem) []int {
		out := []int{}
		for _, it := range in {
			out = append(out, it.Index)
		}
		return out
	}
	assert.Equal(t, []int{1, 2, 4, 7}, indexes(Select(items, 0, 0)))
	assert.Equal(t, []int{2, 4}, indexes(Select(items, 2, 5)))
	assert.Equal(t, []int{4, 7}, indexes(Select(items, 3, 0)))
	assert.Equal(t, []int{}, indexes(Select(items, 8, 0)))
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "names.txt")
	require.NoError(t, os.WriteFile(path, []byte("h1\nh2\nDOE JANE\n"), 0o600))

	res, err := Load(path, VariantTax, 2)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	_, err = Load(path, Variant("other"), 0)
	require.Error(t, err)
	_, err = Load(filepath.Join(dir, "missing.txt"), VariantProbate, 0)
	require.Error(t, err)
	assert.True(t, VariantProbate.Valid())
	assert.False(t, Variant("x").Valid())
}
