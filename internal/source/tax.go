package source

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/JakeFAU/heir-finder/internal/owner"
	"github.com/JakeFAU/heir-finder/internal/scraper"
)

// ParseTax reads a flat name list, skipping headerLines lines. The first two
// whitespace tokens of each line are the surname and given name. Lines with
// fewer tokens are skipped but still consume an index.
func ParseTax(r io.Reader, headerLines int) (Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		res  Result
		line int
	)
	for scanner.Scan() {
		line++
		if line <= headerLines {
			continue
		}
		index := line - headerLines
		text := strings.TrimSpace(scanner.Text())
		parts := strings.Fields(text)
		if len(parts) < 2 {
			if text != "" {
				res.Skipped++
			}
			continue
		}
		last, first := strings.ToUpper(parts[0]), strings.ToUpper(parts[1])
		res.Items = append(res.Items, scraper.WorkItem{
			Index: index,
			Raw:   text,
			Identities: []scraper.Identity{{
				FirstName:  first,
				LastName:   last,
				SearchTerm: owner.SearchTerm(last, first),
			}},
		})
	}
	if err := scanner.Err(); err != nil {
		return Result{}, fmt.Errorf("scan input: %w", err)
	}
	return res, nil
}
