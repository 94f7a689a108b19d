package tax

import (
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoMarketValue is returned when an account page carries no market value.
var ErrNoMarketValue = errors.New("market value not found")

// Candidate is a search result row held by the estate of the searched owner.
type Candidate struct {
	Owner string
	Link  string
}

// Candidates returns the rows of a result page whose owner cell starts with
// "LAST FIRST" and names an estate. A first line that continues past the
// estate marker names someone else and is rejected.
func Candidates(html, rowSelector, marker, last, first string) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	prefix := strings.ToUpper(strings.TrimSpace(last + " " + first))
	var out []Candidate
	doc.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		owner := cellLines(cells.Eq(1))
		if !strings.HasPrefix(strings.ToUpper(owner), prefix) || !strings.Contains(owner, marker) {
			return
		}
		firstLine, _, _ := strings.Cut(owner, "\n")
		firstLine = strings.TrimSpace(firstLine)
		if pos := strings.Index(firstLine, marker); pos >= 0 {
			if strings.TrimSpace(firstLine[pos+len(marker):]) != "" {
				return
			}
		}
		href, ok := cells.First().Find("a").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		out = append(out, Candidate{Owner: firstLine, Link: strings.TrimSpace(href)})
	})
	return out, nil
}

// cellLines returns the text of a cell with <br> rendered as line breaks.
func cellLines(cell *goquery.Selection) string {
	var b strings.Builder
	cell.Contents().Each(func(_ int, n *goquery.Selection) {
		if goquery.NodeName(n) == "br" {
			b.WriteByte('\n')
			return
		}
		b.WriteString(n.Text())
	})
	lines := strings.Split(b.String(), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

// DetailLink returns the href of the first anchor whose text contains text.
func DetailLink(html, text string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	var href string
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !strings.Contains(strings.Join(strings.Fields(a.Text()), " "), text) {
			return true
		}
		href, _ = a.Attr("href")
		return href == ""
	})
	return href, href != ""
}

// Account is the data read from an account detail page.
type Account struct {
	Number       string
	Address      string
	MarketValue  float64
	CurrentLevy  float64
	PriorYearDue float64
}

var (
	marketValueRe  = regexp.MustCompile(`Market Value:\s*\$?([\d,]+\.?\d*)`)
	currentLevyRe  = regexp.MustCompile(`Current Tax Levy:\s*\$?([\d,]+\.?\d*)`)
	priorYearDueRe = regexp.MustCompile(`Prior Year Amount Due:\s*\$?([\d,]+\.?\d*)`)
	accountRe      = regexp.MustCompile(`Account Number:\s*(\S+)`)
	addressRe      = regexp.MustCompile(`(?s)Address:\s*(.+?)(?:Property Site Address:|$)`)
)

const unknown = "Unknown"

// ExtractAccount parses the visible text of an account detail page. Missing
// levy and prior-year amounts read as zero.
func ExtractAccount(body string) (Account, error) {
	acct := Account{Number: unknown, Address: unknown}
	m := marketValueRe.FindStringSubmatch(body)
	if m == nil {
		return acct, ErrNoMarketValue
	}
	var err error
	if acct.MarketValue, err = parseAmount(m[1]); err != nil {
		return acct, ErrNoMarketValue
	}
	acct.CurrentLevy = firstAmount(currentLevyRe, body)
	acct.PriorYearDue = firstAmount(priorYearDueRe, body)
	if m := accountRe.FindStringSubmatch(body); m != nil {
		acct.Number = m[1]
	}
	if m := addressRe.FindStringSubmatch(body); m != nil {
		if addr := strings.Join(strings.Fields(m[1]), " "); addr != "" {
			acct.Address = addr
		}
	}
	return acct, nil
}

func firstAmount(re *regexp.Regexp, body string) float64 {
	m := re.FindStringSubmatch(body)
	if m == nil {
		return 0
	}
	v, err := parseAmount(m[1])
	if err != nil {
		return 0
	}
	return v
}
