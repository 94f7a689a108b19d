package captcha

import (
	"encoding/json"
	"fmt"
)

// responseFields maps each challenge kind to the hidden input that carries its token.
var responseFields = map[Kind]string{
	KindRecaptchaV2: "#g-recaptcha-response",
	KindRecaptchaV3: "#g-recaptcha-response",
	KindHCaptcha:    `[name="h-captcha-response"]`,
}

// ResponseField returns the selector of the token input for kind.
func ResponseField(kind Kind) (string, bool) {
	sel, ok := responseFields[kind]
	return sel, ok
}

// InjectScript returns JavaScript that writes token into the response field for
// kind. The script evaluates to true when the field existed.
func InjectScript(kind Kind, token string) (string, error) {
	sel, ok := responseFields[kind]
	if !ok {
		return "", fmt.Errorf("no response field for captcha kind %q", kind)
	}
	selJSON, err := json.Marshal(sel)
	if err != nil {
		return "", fmt.Errorf("marshal selector: %w", err)
	}
	tokenJSON, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("marshal token: %w", err)
	}
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) { return false; }
	el.innerHTML = %s;
	el.value = %s;
	return true;
})()`, selJSON, tokenJSON, tokenJSON), nil
}
