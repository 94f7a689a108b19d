package probate

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/heir-finder/internal/scraper"
)

// Matcher evaluates rendered search results for one identity.
type Matcher struct {
	CardSelector       string
	DisqualifyingTypes []string
	OpenStatus         string
}

// Evaluation summarizes the result cards for one identity.
type Evaluation struct {
	Cards        int
	Matched      int
	Disqualified bool
	CaseType     string
}

// Evaluate scans result cards in html. Scanning stops at the first open case
// of a disqualifying type on a card whose party name matches id.
func (m Matcher) Evaluate(html string, id scraper.Identity) (Evaluation, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Evaluation{}, err
	}
	cards := doc.Find(m.CardSelector)
	ev := Evaluation{Cards: cards.Length()}
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if !NameMatches(card.Text(), id) {
			return true
		}
		ev.Matched++
		if caseType, ok := m.openDisqualifyingCase(card); ok {
			ev.Disqualified = true
			ev.CaseType = caseType
			return false
		}
		return true
	})
	return ev, nil
}

func (m Matcher) openDisqualifyingCase(card *goquery.Selection) (string, bool) {
	var found string
	card.Find("table.kgrid-card-table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		caseType := cellText(table, "td.card-data.party-case-type")
		if caseType == "" || !m.disqualifyingType(caseType) {
			return true
		}
		if strings.EqualFold(cellText(table, "td.card-data.party-case-status"), m.OpenStatus) {
			found = caseType
			return false
		}
		return true
	})
	return found, found != ""
}

func (m Matcher) disqualifyingType(caseType string) bool {
	for _, category := range m.DisqualifyingTypes {
		if strings.Contains(caseType, strings.ToUpper(category)) {
			return true
		}
	}
	return false
}

func cellText(table *goquery.Selection, selector string) string {
	return strings.ToUpper(strings.TrimSpace(table.Find(selector).First().Text()))
}

// NameMatches reports whether a result card's text names id. An exact
// "LAST, FIRST" or "LAST, FIRST M." line matches; otherwise a line containing
// "LAST, FIRST" matches when at most one other word remains.
func NameMatches(cardText string, id scraper.Identity) bool {
	last := strings.ToUpper(strings.TrimSpace(id.LastName))
	first := strings.ToUpper(strings.TrimSpace(id.FirstName))
	if last == "" {
		return false
	}
	exact := last
	if first != "" {
		exact = last + ", " + first
	}
	withMiddle := ""
	if first != "" {
		withMiddle = withInitial(exact, strings.ToUpper(strings.TrimSpace(id.MiddleName)))
	}

	text := strings.ToUpper(cardText)
	candidate := ""
	for _, line := range strings.Split(text, "\n") {
		clean := strings.Join(strings.Fields(line), " ")
		if !strings.Contains(clean, ",") || len(clean) <= 5 || len(clean) >= 100 {
			continue
		}
		if strings.Contains(clean, exact) || (withMiddle != "" && strings.Contains(clean, withMiddle)) {
			candidate = clean
			break
		}
	}
	if candidate == "" {
		flat := strings.Join(strings.Fields(text), " ")
		switch {
		case strings.Contains(flat, exact):
			candidate = exact
		case withMiddle != "" && strings.Contains(flat, withMiddle):
			candidate = withMiddle
		default:
			return false
		}
	}

	if candidate == exact || candidate == withMiddle {
		return true
	}
	if !strings.Contains(candidate, exact) {
		return false
	}
	rest := strings.Fields(strings.Replace(candidate, exact, "", 1))
	return len(rest) <= 1
}

// withInitial appends the middle initial as "LAST, FIRST M.". It returns ""
// when there is no middle name.
func withInitial(exact, middle string) string {
	initial, size := utf8.DecodeRuneInString(middle)
	if size == 0 || initial == utf8.RuneError {
		return ""
	}
	return exact + " " + string(initial) + "."
}
