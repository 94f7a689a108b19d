package scraper

import (
	"fmt"
	"time"
)

// Identity is one normalized party parsed from an owner-of-record string.
type Identity struct {
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name"`
	SearchTerm string `json:"search_term"`
}

// FullName renders the identity as "FIRST MIDDLE LAST".
func (id Identity) FullName() string {
	name := id.FirstName
	if id.MiddleName != "" {
		name += " " + id.MiddleName
	}
	if id.LastName != "" {
		if name != "" {
			name += " "
		}
		name += id.LastName
	}
	return name
}

// PropertyInfo carries the property and tax metadata attached to a subject in
// the input extract. Empty fields render as NotAvailable.
type PropertyInfo struct {
	AccountNumber   string `json:"account_number,omitempty"`
	Address         string `json:"address,omitempty"`
	MarketValue     string `json:"market_value,omitempty"`
	TotalTaxOwed    string `json:"total_tax_owed,omitempty"`
	TaxToValueRatio string `json:"tax_to_value_ratio,omitempty"`
	PriorYearDue    string `json:"prior_year_due,omitempty"`
	CurrentLevy     string `json:"current_levy,omitempty"`
	UnpaidYears     string `json:"unpaid_years,omitempty"`
}

// NotAvailable is the placeholder for missing metadata.
const NotAvailable = "N/A"

// Or returns v, or NotAvailable when v is blank.
func Or(v string) string {
	if v == "" {
		return NotAvailable
	}
	return v
}

// WorkItem is one subject record to search. It is created once while the
// queue is populated and never mutated afterwards.
type WorkItem struct {
	Index      int          `json:"index"`
	Raw        string       `json:"raw"`
	Identities []Identity   `json:"identities"`
	Property   PropertyInfo `json:"property"`
}

// Label returns the row label used in output for the i-th identity: "12" for
// single-party items and "12.1", "12.2", ... for co-owned items.
func (w WorkItem) Label(i int) string {
	if len(w.Identities) <= 1 {
		return fmt.Sprintf("%d", w.Index)
	}
	return fmt.Sprintf("%d.%d", w.Index, i+1)
}

// ItemRef identifies the work item an outcome belongs to.
type ItemRef struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Raw   string `json:"raw"`
}

// SearchOutcome is the terminal record of one identity search. Workers build
// it, push it onto the results queue and never touch it again.
type SearchOutcome struct {
	RunID            string       `json:"run_id"`
	Item             ItemRef      `json:"item"`
	Identity         Identity     `json:"identity"`
	Property         PropertyInfo `json:"property"`
	Result           Result       `json:"-"`
	ItemDisqualified bool         `json:"item_disqualified"`
	Worker           int          `json:"worker"`
	FinishedAt       time.Time    `json:"finished_at"`
}
