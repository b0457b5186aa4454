package domain

import (
	"regexp"
	"strings"
)

var (
	bracketToken  = regexp.MustCompile(`\[[^\]]*\]`)
	templateToken = regexp.MustCompile(`\{\{.*?\}\}`)
)

// Validate rejects letters that are not ready to send.
func Validate(body, companyName string, senderPresent bool) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyBody
	}
	if templateToken.MatchString(body) {
		return ErrPlaceholder
	}
	for _, token := range bracketToken.FindAllString(body, -1) {
		if !senderPresent && token == SenderPlaceholder {
			continue
		}
		return ErrPlaceholder
	}
	if name := strings.TrimSpace(companyName); name != "" && !strings.Contains(strings.ToLower(body), strings.ToLower(name)) {
		return ErrMissingCompany
	}
	return nil
}

var bracketSwap = strings.NewReplacer("[", "(", "]", ")", "{{", "(", "}}", ")")

// Neutralize rewrites bracket and template tokens in user-supplied text so it
// cannot pass for a placeholder once it is part of a letter.
func Neutralize(text string) string {
	return bracketSwap.Replace(text)
}

// NeutralizeBody neutralizes every token in a drafted body except the sender
// placeholder, which survives only when no sender is on file.
func NeutralizeBody(body string, senderPresent bool) string {
	if senderPresent {
		return Neutralize(body)
	}
	parts := strings.Split(body, SenderPlaceholder)
	for i := range parts {
		parts[i] = Neutralize(parts[i])
	}
	return strings.Join(parts, SenderPlaceholder)
}
