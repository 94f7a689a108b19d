package writer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JakeFAU/heir-finder/internal/owner"
	"github.com/JakeFAU/heir-finder/internal/scraper"
	"github.com/JakeFAU/heir-finder/internal/source"
)

// Layout decides which outcomes are kept and how they are rendered.
type Layout interface {
	Name() string
	Title() string
	Keep(o scraper.SearchOutcome) bool
	// Block renders the text record for the n-th kept outcome (1-based).
	Block(n int, o scraper.SearchOutcome) string
	Header() []string
	Row(o scraper.SearchOutcome) []string
}

// LayoutFor returns the layout for a source variant.
func LayoutFor(v source.Variant) (Layout, error) {
	switch v {
	case source.VariantProbate:
		return ProbateLayout{}, nil
	case source.VariantTax:
		return TaxLayout{}, nil
	default:
		return nil, fmt.Errorf("no output layout for variant %q", v)
	}
}

// ProbateLayout keeps identities with no open disqualifying case on an item
// that no co-owner disqualified.
type ProbateLayout struct{}

// Name implements Layout.
func (ProbateLayout) Name() string { return "probate" }

// Title implements Layout.
func (ProbateLayout) Title() string { return "PROBATE SEARCH RESULTS - QUALIFIED PROPERTIES ONLY" }

// Keep implements Layout.
func (ProbateLayout) Keep(o scraper.SearchOutcome) bool {
	if o.ItemDisqualified {
		return false
	}
	s := o.Result.Status()
	return s == scraper.StatusFoundClean || s == scraper.StatusNotFound
}

// Block implements Layout.
func (ProbateLayout) Block(_ int, o scraper.SearchOutcome) string {
	p := o.Property
	var b strings.Builder
	fmt.Fprintf(&b, "Row: %s\n", o.Item.Label)
	fmt.Fprintf(&b, "Owner: %s\n", o.Item.Raw)
	fmt.Fprintf(&b, "Search Term: %s\n", o.Identity.SearchTerm)
	fmt.Fprintf(&b, "Account Number: %s\n", scraper.Or(p.AccountNumber))
	fmt.Fprintf(&b, "Address: %s\n", scraper.Or(p.Address))
	fmt.Fprintf(&b, "Market Value: $%s\n", scraper.Or(p.MarketValue))
	fmt.Fprintf(&b, "Total Tax Owed: $%s\n", scraper.Or(p.TotalTaxOwed))
	fmt.Fprintf(&b, "Tax to Value Ratio: %s%%\n", scraper.Or(p.TaxToValueRatio))
	fmt.Fprintf(&b, "Prior Year Due: $%s\n", scraper.Or(p.PriorYearDue))
	fmt.Fprintf(&b, "Current Levy: $%s\n", scraper.Or(p.CurrentLevy))
	fmt.Fprintf(&b, "Unpaid Years: %s\n", scraper.Or(p.UnpaidYears))
	b.WriteString(strings.Repeat("-", 50) + "\n")
	fmt.Fprintf(&b, "Probate Search Status: %s\n", o.Result.Status())
	fmt.Fprintf(&b, "Result Count: %d\n", o.Result.Count())
	b.WriteString(strings.Repeat("=", 100) + "\n\n")
	return b.String()
}

// Header implements Layout.
func (ProbateLayout) Header() []string {
	return []string{
		"First Name", "Last Name", "Middle Name",
		"Property Address", "Property City", "Property State", "Property Zip",
	}
}

// Row implements Layout.
func (ProbateLayout) Row(o scraper.SearchOutcome) []string {
	addr := owner.SplitAddress(owner.ExtractPropertyAddress(o.Property.Address))
	return []string{
		o.Identity.FirstName, o.Identity.LastName, o.Identity.MiddleName,
		addr.Street, addr.City, addr.State, addr.Zip,
	}
}

// TaxLayout keeps qualifying tax accounts. Its text blocks use the block
// format the probate source reads, so a tax run feeds a probate run.
type TaxLayout struct{}

// Name implements Layout.
func (TaxLayout) Name() string { return "tax" }

// Title implements Layout.
func (TaxLayout) Title() string { return "QUALIFIED ESTATE PROPERTIES - DYNAMIC WORK QUEUE" }

// Keep implements Layout.
func (TaxLayout) Keep(o scraper.SearchOutcome) bool {
	return o.Result.Status() == scraper.StatusFoundClean
}

// Block implements Layout.
func (TaxLayout) Block(n int, o scraper.SearchOutcome) string {
	r := o.Result
	var b strings.Builder
	fmt.Fprintf(&b, "Property #%d (Original Row #%s) [Worker %d]\n", n, o.Item.Label, o.Worker)
	b.WriteString(strings.Repeat("-", 100) + "\n")
	fmt.Fprintf(&b, "Owner: %s\n", scraper.Or(r.Field("owner")))
	fmt.Fprintf(&b, "Account Number: %s\n", scraper.Or(r.Field("account_number")))
	fmt.Fprintf(&b, "Address: %s\n", scraper.Or(r.Field("address")))
	fmt.Fprintf(&b, "Market Value: $%s\n", scraper.Or(r.Field("market_value")))
	fmt.Fprintf(&b, "Total Tax Owed: $%s\n", scraper.Or(r.Field("total_tax_owed")))
	fmt.Fprintf(&b, "Tax to Value Ratio: %s%%\n", scraper.Or(r.Field("tax_to_value_ratio")))
	fmt.Fprintf(&b, "Prior Year Due: $%s\n", scraper.Or(r.Field("prior_year_due")))
	fmt.Fprintf(&b, "Current Levy: $%s\n", scraper.Or(r.Field("current_levy")))
	fmt.Fprintf(&b, "Unpaid Years: [%s]\n", r.Field("unpaid_years"))
	b.WriteString("\n")
	return b.String()
}

// Header implements Layout.
func (TaxLayout) Header() []string {
	return []string{
		"Row", "Owner", "Account Number", "Address", "Market Value", "Total Tax Owed",
		"Tax to Value Ratio", "Prior Year Due", "Current Levy", "Unpaid Years", "Worker",
	}
}

// Row implements Layout.
func (TaxLayout) Row(o scraper.SearchOutcome) []string {
	r := o.Result
	return []string{
		o.Item.Label,
		r.Field("owner"),
		r.Field("account_number"),
		r.Field("address"),
		r.Field("market_value"),
		r.Field("total_tax_owed"),
		r.Field("tax_to_value_ratio"),
		r.Field("prior_year_due"),
		r.Field("current_levy"),
		r.Field("unpaid_years"),
		strconv.Itoa(o.Worker),
	}
}
