// Package owner normalizes owner-of-record strings from county extracts into
// searchable identities.
//
// Parsing is a best-effort heuristic tied to the county extract format. Names
// without a comma are assumed to be written surname first ("SMITH JOHN A"),
// which misreads single-token names and given-name-first records.
package owner

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/heir-finder/internal/scraper"
)

// boilerplate matches estate and et-al phrases as whole words, longest first.
var boilerplate = regexp.MustCompile(`\b(?:ESTATE OF|EST OF|ET AL|ESTATE|EST)\b`)

// Normalize uppercases raw, removes boilerplate phrases and collapses whitespace.
func Normalize(raw string) string {
	cleaned := boilerplate.ReplaceAllString(strings.ToUpper(raw), " ")
	return strings.Join(strings.Fields(cleaned), " ")
}

// Parse maps a raw owner string to one identity per party. Joint owners
// separated by "&" become separate identities; a lone given name after the
// delimiter inherits the first party's surname.
func Parse(raw string) []scraper.Identity {
	cleaned := Normalize(raw)
	if cleaned == "" {
		return nil
	}
	if strings.Contains(cleaned, "&") {
		return parseJoint(cleaned)
	}
	if last, rest, ok := strings.Cut(cleaned, ","); ok {
		words := strings.Fields(rest)
		var first, middle string
		if len(words) > 0 {
			first = words[0]
			middle = strings.Join(words[1:], " ")
		}
		return []scraper.Identity{identity(strings.TrimSpace(last), first, middle)}
	}
	return []scraper.Identity{positional(strings.Fields(cleaned))}
}

func parseJoint(cleaned string) []scraper.Identity {
	parts := strings.Split(cleaned, "&")
	lead := strings.Fields(strings.ReplaceAll(parts[0], ",", " "))

	var out []scraper.Identity
	if len(lead) >= 2 {
		out = append(out, positional(lead))
	}
	for _, part := range parts[1:] {
		words := strings.Fields(strings.ReplaceAll(part, ",", " "))
		switch {
		case len(words) == 1 && len(lead) >= 1:
			out = append(out, identity(lead[0], words[0], ""))
		case len(words) >= 2:
			out = append(out, positional(words))
		}
	}
	return out
}

// positional treats the first token as the surname and the second as the given name.
func positional(words []string) scraper.Identity {
	switch len(words) {
	case 0:
		return scraper.Identity{}
	case 1:
		return identity(words[0], "", "")
	default:
		return identity(words[0], words[1], strings.Join(words[2:], " "))
	}
}

func identity(last, first, middle string) scraper.Identity {
	return scraper.Identity{
		FirstName:  first,
		MiddleName: middle,
		LastName:   last,
		SearchTerm: SearchTerm(last, first),
	}
}

// SearchTerm renders the portal search key "LAST, FIRST", or just LAST when no
// given name is known.
func SearchTerm(last, first string) string {
	if first == "" {
		return last
	}
	return last + ", " + first
}
