// Package sanitizer provides pure string sanitization for user-submitted
// form input. All functions are deterministic, side-effect free, and
// idempotent on already-clean input.
package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultMaxLength bounds text inputs that have no field-specific limit.
const DefaultMaxLength = 500

// Field-specific length limits, applied by keyword match on the field name.
// The email limit follows RFC 5321.
const (
	MaxEmailLength   = 254
	MaxNameLength    = 100
	MaxCompanyLength = 200
	MaxPhoneLength   = 20
)

// MetadataPrefix marks internal metadata keys that bypass sanitization.
// Callers must only set such keys to literal internal values, never raw
// user input.
const MetadataPrefix = "_"

var (
	htmlSpecialChars   = regexp.MustCompile(`[<>"'&]`)
	javascriptProtocol = regexp.MustCompile(`(?i)javascript:`)
	eventHandlers      = regexp.MustCompile(`(?i)on\w+\s*=`)
)

// Sanitize removes injection vectors from user input: HTML-special
// characters, the javascript: scheme, and inline event-handler patterns.
// The cleaned string is trimmed and then truncated, so the length limit
// applies to what actually remains. A non-positive maxLength falls back to
// DefaultMaxLength.
func Sanitize(input string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	s := htmlSpecialChars.ReplaceAllString(input, "")
	s = javascriptProtocol.ReplaceAllString(s, "")
	s = eventHandlers.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	return MaxLength(s, maxLength)
}

// SanitizeFormData sanitizes every field of a form snapshot, picking the
// length limit from the field name. Keys starting with MetadataPrefix pass
// through untouched.
func SanitizeFormData(fields map[string]string) map[string]string {
	sanitized := make(map[string]string, len(fields))

	for key, value := range fields {
		if strings.HasPrefix(key, MetadataPrefix) {
			sanitized[key] = value
			continue
		}
		sanitized[key] = Sanitize(value, LimitFor(key))
	}

	return sanitized
}

// LimitFor returns the length limit for a field, selected by keyword match
// on the field name.
func LimitFor(field string) int {
	switch {
	case strings.Contains(field, "email"):
		return MaxEmailLength
	case strings.Contains(field, "name"):
		return MaxNameLength
	case strings.Contains(field, "company"):
		return MaxCompanyLength
	case strings.Contains(field, "phone"):
		return MaxPhoneLength
	default:
		return DefaultMaxLength
	}
}

// MaxLength truncates to maxLen runes, handling Unicode properly.
func MaxLength(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	return string(runes[:maxLen])
}

// KeepDigits keeps only numeric digits, removing all other characters.
func KeepDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
