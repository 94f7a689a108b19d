package tax

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Criteria decides whether a delinquency history qualifies a property.
type Criteria struct {
	MaxTotalTaxRatio    float64
	MinAnnualTaxRate    float64
	MinConsecutiveYears int
	CurrentYear         int
	LookbackYears       int
}

// Validate checks the thresholds.
func (c Criteria) Validate() error {
	switch {
	case c.MaxTotalTaxRatio <= 0:
		return fmt.Errorf("tax.max_total_tax_ratio must be > 0")
	case c.MinAnnualTaxRate <= 0:
		return fmt.Errorf("tax.min_annual_tax_rate must be > 0")
	case c.MinConsecutiveYears <= 0:
		return fmt.Errorf("tax.min_consecutive_years must be > 0")
	case c.CurrentYear <= 0:
		return fmt.Errorf("tax.current_year must be > 0")
	case c.LookbackYears < c.MinConsecutiveYears:
		return fmt.Errorf("tax.lookback_years must be >= tax.min_consecutive_years")
	}
	return nil
}

// Assessment is the outcome of applying Criteria to one property.
type Assessment struct {
	Total       float64
	Ratio       float64
	UnpaidYears []int
	Qualified   bool
	Reason      string
}

// Assess applies the criteria to the amounts due per year. A year counts as
// unpaid when its amount is at least market value times the annual rate; the
// streak starts at the year before CurrentYear and stops at the first year that
// is missing or below the threshold.
func (c Criteria) Assess(marketValue float64, years map[int]float64) Assessment {
	var a Assessment
	if len(years) == 0 {
		a.Reason = "no year data"
		return a
	}
	for _, amount := range years {
		a.Total += amount
	}
	if marketValue > 0 {
		a.Ratio = a.Total / marketValue
	}
	if a.Ratio > c.MaxTotalTaxRatio {
		a.Reason = fmt.Sprintf("tax ratio %.1f%% above %.1f%%", a.Ratio*100, c.MaxTotalTaxRatio*100)
		return a
	}
	expected := marketValue * c.MinAnnualTaxRate
	for year := c.CurrentYear - 1; year > c.CurrentYear-1-c.LookbackYears; year-- {
		amount, ok := years[year]
		if !ok || amount < expected {
			break
		}
		a.UnpaidYears = append(a.UnpaidYears, year)
	}
	if len(a.UnpaidYears) < c.MinConsecutiveYears {
		a.Reason = fmt.Sprintf("%d consecutive unpaid years, need %d", len(a.UnpaidYears), c.MinConsecutiveYears)
		return a
	}
	a.Qualified = true
	return a
}

var (
	yearPrefix = regexp.MustCompile(`^(\d{4})\s`)
	amountRe   = regexp.MustCompile(`\$?([\d,]+\.\d{2})`)
)

// ParseYearRows reads "YYYY ... $amount" table rows. The last amount on a row
// is its total due; rows without a leading year or an amount are ignored.
func ParseYearRows(rows []string) map[int]float64 {
	years := make(map[int]float64)
	for _, row := range rows {
		row = strings.TrimSpace(row)
		m := yearPrefix.FindStringSubmatch(row)
		if m == nil {
			continue
		}
		amounts := amountRe.FindAllStringSubmatch(row, -1)
		if len(amounts) == 0 {
			continue
		}
		amount, err := parseAmount(amounts[len(amounts)-1][1])
		if err != nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		years[year] = amount
	}
	return years
}

func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

// FormatMoney renders v with two decimals and thousands separators.
func FormatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// FormatYears renders years newest first, comma separated.
func FormatYears(years []int) string {
	sorted := append([]int(nil), years...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	parts := make([]string, len(sorted))
	for i, y := range sorted {
		parts[i] = strconv.Itoa(y)
	}
	return strings.Join(parts, ", ")
}
