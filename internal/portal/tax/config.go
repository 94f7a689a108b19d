// Package tax drives the county tax-office portal. For each identity it finds
// estate-held accounts, reads the account detail and keeps the first property
// whose delinquency history meets the configured criteria.
package tax

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the portal URL, selectors and qualification thresholds.
type Config struct {
	SearchURL      string
	LastNameInput  string
	FirstNameInput string
	SubmitButton   string
	ResultRows     string
	DetailLinkText string
	EstateMarker   string
	PageTimeout    time.Duration
	PagePoll       time.Duration
	Criteria       Criteria
}

// DefaultConfig returns the settings for the Dallas County tax office.
func DefaultConfig() Config {
	return Config{
		SearchURL:      "https://www.dallasact.com/act_webdev/dallas/index.jsp",
		LastNameInput:  `input[name="criteria"]`,
		FirstNameInput: `input[name="criteria2"]`,
		SubmitButton:   `input[value="Search"]`,
		ResultRows:     `table tr[valign="top"]`,
		DetailLinkText: "Taxes Due Detail by Year and Jurisdiction",
		EstateMarker:   "EST OF",
		PageTimeout:    30 * time.Second,
		PagePoll:       250 * time.Millisecond,
		Criteria: Criteria{
			MaxTotalTaxRatio:    0.70,
			MinAnnualTaxRate:    0.015,
			MinConsecutiveYears: 3,
			CurrentYear:         time.Now().Year(),
			LookbackYears:       9,
		},
	}
}

// Validate checks selectors and thresholds.
func (c Config) Validate() error {
	required := map[string]string{
		"tax.search_url":       c.SearchURL,
		"tax.last_name_input":  c.LastNameInput,
		"tax.first_name_input": c.FirstNameInput,
		"tax.submit_button":    c.SubmitButton,
		"tax.result_rows":      c.ResultRows,
		"tax.detail_link_text": c.DetailLinkText,
		"tax.estate_marker":    c.EstateMarker,
	}
	for key, v := range required {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", key)
		}
	}
	if c.PageTimeout <= 0 {
		return fmt.Errorf("tax.page_timeout must be > 0")
	}
	return c.Criteria.Validate()
}
