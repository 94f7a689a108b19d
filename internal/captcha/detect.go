package captcha

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Kind is the vendor task type for a challenge.
type Kind string

const (
	// KindNone means no challenge was detected.
	KindNone Kind = ""
	// KindRecaptchaV2 is the checkbox-style reCAPTCHA.
	KindRecaptchaV2 Kind = "ReCaptchaV2TaskProxyLess"
	// KindRecaptchaV3 is the invisible score-based reCAPTCHA.
	KindRecaptchaV3 Kind = "ReCaptchaV3TaskProxyLess"
	// KindHCaptcha is the hCaptcha widget.
	KindHCaptcha Kind = "HCaptchaTaskProxyLess"
)

var v3Execute = regexp.MustCompile(`grecaptcha\.execute\(\s*["']([^"']+)["']`)

// Detect inspects page HTML for a known challenge and returns its kind and
// site key, or KindNone.
func Detect(html string) (Kind, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		if key := siteKey(doc, ".g-recaptcha"); key != "" {
			return KindRecaptchaV2, key
		}
	}
	if m := v3Execute.FindStringSubmatch(html); m != nil {
		return KindRecaptchaV3, m[1]
	}
	if err == nil {
		if key := siteKey(doc, ".h-captcha"); key != "" {
			return KindHCaptcha, key
		}
	}
	return KindNone, ""
}

func siteKey(doc *goquery.Document, selector string) string {
	key, _ := doc.Find(selector).First().Attr("data-sitekey")
	return strings.TrimSpace(key)
}
