package validation

import (
	"regexp"
	"strings"
)

// emailRe is the usual browser-side check: something@something.tld, no spaces.
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// MinPasswordLength is the identity provider's minimum.
const MinPasswordLength = 6

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// IsValidPassword only enforces the minimum length; the identity provider accepts any characters.
func IsValidPassword(password string) bool {
	return len([]rune(password)) >= MinPasswordLength
}

// NormalizeEmail trims and lowercases so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
