// Package probate drives the county courts portal search for one identity at
// a time and decides whether any matching party has an open disqualifying
// probate case.
package probate

import (
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/heir-finder/internal/poll"
)

// Config holds the portal URL, selectors and timing for the probate script.
type Config struct {
	URL                string
	SearchInput        string
	SubmitButton       string
	AdvancedOptions    string
	ResetTab           string
	LocationInput      string
	LocationValue      string
	CaseTypeInput      string
	CaseTypeValue      string
	DropdownItems      string
	LoadingMask        string
	ResultCard         string
	NoResultsMarkers   []string
	DisqualifyingTypes []string
	OpenStatus         string
	ResultPoll         poll.Policy
	MaskTimeout        time.Duration
	ResetTimeout       time.Duration
	SettleDelay        time.Duration
}

// DefaultConfig returns the settings for the Dallas County courts portal.
func DefaultConfig() Config {
	return Config{
		URL:                "https://courtsportal.dallascounty.org/DALLASPROD/Home/Dashboard/29",
		SearchInput:        "#caseCriteria_SearchCriteria",
		SubmitButton:       "#btnSSSubmit",
		AdvancedOptions:    "#AdvOptions",
		ResetTab:           "#tcControllerLink_0",
		LocationInput:      "#AdvOptionsMask > div:nth-child(1) > div > div > div:nth-child(2) > div > span > span > input",
		LocationValue:      "County Courts - Probate",
		CaseTypeInput:      "#caseCriteria_SearchCases_Section > fieldset:nth-child(2) > span > span > input",
		CaseTypeValue:      "All Available Probate Case Types",
		DropdownItems:      ".k-list-container.k-popup .k-item",
		LoadingMask:        ".k-loading-mask",
		ResultCard:         "div.party-card",
		NoResultsMarkers:   []string{"No cases match your search", "No records", "no results found"},
		DisqualifyingTypes: []string{"DECEDENT - WILL", "HEIRSHIP"},
		OpenStatus:         "OPEN",
		ResultPoll:         poll.Fixed(20, time.Second),
		MaskTimeout:        15 * time.Second,
		ResetTimeout:       5 * time.Second,
		SettleDelay:        time.Second,
	}
}

// Validate ensures the selectors needed by every search are present.
func (c Config) Validate() error {
	required := map[string]string{
		"probate.url":           c.URL,
		"probate.search_input":  c.SearchInput,
		"probate.submit_button": c.SubmitButton,
		"probate.reset_tab":     c.ResetTab,
		"probate.result_card":   c.ResultCard,
	}
	for key, v := range required {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", key)
		}
	}
	if c.ResultPoll.Attempts <= 0 {
		return fmt.Errorf("probate.result_poll_attempts must be > 0")
	}
	if len(c.DisqualifyingTypes) == 0 {
		return fmt.Errorf("probate.disqualifying_case_types must not be empty")
	}
	return nil
}
