// Package validator implements per-field validation rules for lead capture
// forms. Rules run in a fixed order and short-circuit on the first failure,
// so a field reports exactly one problem at a time.
package validator

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nimbleresolve/leadgate/core/sanitizer"
)

// Kind classifies a form field for kind-specific validation rules.
type Kind int

const (
	KindText Kind = iota
	KindEmail
	KindName
	KindCompany
	KindPhone
)

// Length bounds, shared with the sanitizer where both apply.
const (
	MaxInputLength   = sanitizer.DefaultMaxLength
	MinEmailLength   = 5
	MaxEmailLength   = sanitizer.MaxEmailLength
	MinNameLength    = 2
	MaxNameLength    = sanitizer.MaxNameLength
	MinCompanyLength = 2
	MaxCompanyLength = sanitizer.MaxCompanyLength
	MinPhoneDigits   = 10
	MaxPhoneDigits   = 15
	MaxPhoneLength   = sanitizer.MaxPhoneLength
)

// User-facing validation messages.
const (
	MsgRequired      = "This field is required."
	MsgInputTooLong  = "Input is too long. Please limit to 500 characters."
	MsgEmailInvalid  = "Please enter a valid email address."
	MsgEmailLength   = "Email address must be between 5 and 254 characters."
	MsgEmailBusiness = "Business email addresses are preferred for faster processing."
	MsgNameLength    = "Name must be between 2 and 100 characters."
	MsgNameChars     = "Name should only contain letters, spaces, hyphens, and apostrophes."
	MsgCompanyLength = "Company name must be between 2 and 200 characters."
	MsgCompanyChars  = "Company name contains invalid characters."
	MsgPhoneLength   = "Phone number must be between 10 and 20 characters."
	MsgPhoneInvalid  = "Please enter a valid phone number (10-15 digits)."
	MsgFormFixErrors = "Please fix the errors in the form before submitting."
)

var (
	// RFC 5322 compliant email pattern (simplified): local part, then
	// domain labels of at most 63 chars without leading or trailing hyphens.
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

	namePattern    = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	companyPattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-.,&()]+$`)
	phonePattern   = regexp.MustCompile(`^[\d\s\-+()]+$`)
)

// personalEmailDomains lists consumer mail providers. The match is anchored
// as "@(domain)." so a corporate host like company.mail.com is not flagged.
var personalEmailDomains = []string{
	"gmail", "yahoo", "hotmail", "outlook", "aol",
	"icloud", "protonmail", "live", "msn", "ymail", "rocketmail",
}

var personalEmailPattern = regexp.MustCompile(
	`(?i)@(` + strings.Join(personalEmailDomains, "|") + `)\.`)

// Result is the outcome of validating a single field.
// Message is empty when the field is valid.
type Result struct {
	Valid   bool
	Message string
}

func valid() Result             { return Result{Valid: true} }
func invalid(msg string) Result { return Result{Message: msg} }

// DetectKind derives a field's validation kind from its name.
// A field named like "company_name" is a company, not a person name.
func DetectKind(field string) Kind {
	switch {
	case strings.Contains(field, "email"):
		return KindEmail
	case strings.Contains(field, "company"):
		return KindCompany
	case strings.Contains(field, "name"):
		return KindName
	case strings.Contains(field, "phone"):
		return KindPhone
	default:
		return KindText
	}
}

// ValidEmail reports whether the address has a plausible RFC 5322 shape and
// an acceptable length.
func ValidEmail(email string) bool {
	if email == "" || utf8.RuneCountInString(email) > MaxEmailLength {
		return false
	}
	return emailPattern.MatchString(email)
}

// IsBusinessEmail reports whether the address is NOT hosted on a known
// consumer mail provider. Empty input counts as non-business.
func IsBusinessEmail(email string) bool {
	if email == "" {
		return false
	}
	return !personalEmailPattern.MatchString(email)
}

// ValidateField validates a single field value for the given kind.
// Rules run in fixed order: presence, global length bound, then
// kind-specific length and character rules. The first failing rule wins.
//
// The business-email rule currently blocks submission; its distinct message
// lets a caller downgrade it to a warning without touching this package.
func ValidateField(kind Kind, value string, required bool) Result {
	value = strings.TrimSpace(value)

	if value == "" {
		if required {
			return invalid(MsgRequired)
		}
		return valid()
	}

	// Length rules count runes, not bytes, so multibyte input is bounded
	// the same way the sanitizer truncates it.
	length := utf8.RuneCountInString(value)

	if length > MaxInputLength {
		return invalid(MsgInputTooLong)
	}

	switch kind {
	case KindEmail:
		if length < MinEmailLength || length > MaxEmailLength {
			return invalid(MsgEmailLength)
		}
		if !ValidEmail(value) {
			return invalid(MsgEmailInvalid)
		}
		if !IsBusinessEmail(value) {
			return invalid(MsgEmailBusiness)
		}

	case KindName:
		if length < MinNameLength || length > MaxNameLength {
			return invalid(MsgNameLength)
		}
		if !namePattern.MatchString(value) {
			return invalid(MsgNameChars)
		}

	case KindCompany:
		if length < MinCompanyLength || length > MaxCompanyLength {
			return invalid(MsgCompanyLength)
		}
		if !companyPattern.MatchString(value) {
			return invalid(MsgCompanyChars)
		}

	case KindPhone:
		if length < MinPhoneDigits || length > MaxPhoneLength {
			return invalid(MsgPhoneLength)
		}
		digits := sanitizer.KeepDigits(value)
		if !phonePattern.MatchString(value) ||
			len(digits) < MinPhoneDigits || len(digits) > MaxPhoneDigits {
			return invalid(MsgPhoneInvalid)
		}
	}

	return valid()
}
