package source

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/JakeFAU/heir-finder/internal/owner"
	"github.com/JakeFAU/heir-finder/internal/scraper"
)

var (
	blockHeader = regexp.MustCompile(`(?m)^Property #\d+.*\r?\n-+\r?\n`)
	ownerLine   = regexp.MustCompile(`(?m)^Owner:[ \t]*(.*?)[ \t]*\r?$`)

	accountField     = regexp.MustCompile(`Account Number:[ \t]*(.+?)[ \t]*\r?(?:\n|$)`)
	addressField     = regexp.MustCompile(`Address:[ \t]*(.+?)[ \t]*\r?(?:\n|$)`)
	marketValueField = regexp.MustCompile(`Market Value:[ \t]*\$?([\d,]+\.?\d*)`)
	totalTaxField    = regexp.MustCompile(`Total Tax Owed:[ \t]*\$?([\d,]+\.?\d*)`)
	ratioField       = regexp.MustCompile(`Tax to Value Ratio:[ \t]*([\d.]+)%`)
	priorYearField   = regexp.MustCompile(`Prior Year Due:[ \t]*\$?([\d,]+\.?\d*)`)
	currentLevyField = regexp.MustCompile(`Current Levy:[ \t]*\$?([\d,]+\.?\d*)`)
	unpaidYearsField = regexp.MustCompile(`Unpaid Years:[ \t]*\[(.+?)\]`)
)

// ParseProbate reads the block-format extract. Every Owner: line becomes one
// work item carrying its block's property fields. Owners that parse to no
// identity are skipped but still consume an index.
func ParseProbate(r io.Reader) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("read input: %w", err)
	}
	blocks := blockHeader.Split(string(data), -1)

	var (
		res   Result
		index int
	)
	for i, block := range blocks {
		if strings.TrimSpace(block) == "" {
			continue
		}
		owners := ownerLine.FindAllStringSubmatch(block, -1)
		if len(owners) == 0 {
			// text before the first header is a preamble, not a record
			if i > 0 {
				res.Skipped++
			}
			continue
		}
		prop := parseProperty(block)
		for _, m := range owners {
			raw := strings.TrimSpace(m[1])
			if raw == "" {
				continue
			}
			index++
			ids := owner.Parse(raw)
			if len(ids) == 0 {
				res.Skipped++
				continue
			}
			res.Items = append(res.Items, scraper.WorkItem{
				Index:      index,
				Raw:        raw,
				Identities: ids,
				Property:   prop,
			})
		}
	}
	return res, nil
}

func parseProperty(block string) scraper.PropertyInfo {
	return scraper.PropertyInfo{
		AccountNumber:   capture(accountField, block),
		Address:         capture(addressField, block),
		MarketValue:     capture(marketValueField, block),
		TotalTaxOwed:    capture(totalTaxField, block),
		TaxToValueRatio: capture(ratioField, block),
		PriorYearDue:    capture(priorYearField, block),
		CurrentLevy:     capture(currentLevyField, block),
		UnpaidYears:     capture(unpaidYearsField, block),
	}
}

func capture(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
