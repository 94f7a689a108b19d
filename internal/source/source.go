// Package source loads input extracts into ordered work items with stable
// 1-based indexes.
package source

import (
	"fmt"
	"os"

	"github.com/JakeFAU/heir-finder/internal/scraper"
)

// Variant selects the extract format.
type Variant string

const (
	// VariantProbate reads "Property #n" blocks with an Owner: line each.
	VariantProbate Variant = "probate"
	// VariantTax reads a flat "LAST FIRST ..." name list.
	VariantTax Variant = "tax"
)

// Valid reports whether v names a known extract format.
func (v Variant) Valid() bool {
	return v == VariantProbate || v == VariantTax
}

// Result is the outcome of loading an extract.
type Result struct {
	Items   []scraper.WorkItem
	Skipped int
}

// Load reads and parses the extract at path.
func Load(path string, variant Variant, headerLines int) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open input: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	switch variant {
	case VariantProbate:
		return ParseProbate(f)
	case VariantTax:
		return ParseTax(f, headerLines)
	default:
		return Result{}, fmt.Errorf("unknown source variant %q", variant)
	}
}

// Select keeps items whose index lies in [start, end]. start < 1 means from the
// first item and end < 1 means through the last. Order is preserved.
func Select(items []scraper.WorkItem, start, end int) []scraper.WorkItem {
	out := make([]scraper.WorkItem, 0, len(items))
	for _, item := range items {
		if start > 0 && item.Index < start {
			continue
		}
		if end > 0 && item.Index > end {
			continue
		}
		out = append(out, item)
	}
	return out
}
