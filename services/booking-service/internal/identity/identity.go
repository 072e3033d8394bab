package identity

import (
	"regexp"
	"strings"
)

// Client identity normalization. Public bookings are deduplicated by
// normalized phone number; portal-created clients by lowercased email.

var (
	nonDigits    = regexp.MustCompile(`\D`)
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizePhone strips everything but digits, prefixes 8-digit Danish
// national numbers with country code 45, and collapses a 0045 international
// prefix to 45. Idempotent on already-normalized numbers.
func NormalizePhone(phone string) string {
	digits := nonDigits.ReplaceAllString(phone, "")
	if len(digits) == 8 {
		return "45" + digits
	}
	if strings.HasPrefix(digits, "0045") {
		return digits[2:]
	}
	return digits
}

// NormalizeEmail lowercases and trims; empty input stays empty.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PhoneParts are the denormalized phone fields stored on client records:
// country prefix, national part, and the combined display form.
type PhoneParts struct {
	Country  string
	National string
	Full     string
}

// SplitPhone derives the display fields from the raw phone as entered plus
// its normalized form.
func SplitPhone(raw, normalized string) PhoneParts {
	parts := PhoneParts{National: raw}
	digits := nonDigits.ReplaceAllString(raw, "")

	switch {
	case strings.HasPrefix(raw, "+"):
		fields := strings.SplitN(raw, " ", 2)
		parts.Country = fields[0]
		if len(fields) > 1 {
			parts.National = fields[1]
		} else {
			parts.National = ""
		}
	case strings.HasPrefix(normalized, "45") && len(normalized) >= 10:
		parts.Country = "+45"
		parts.National = normalized[2:]
	case len(digits) == 8:
		parts.Country = "+45"
		parts.National = digits
	}

	parts.Full = raw
	if parts.Full == "" {
		parts.Full = strings.TrimSpace(parts.Country + " " + parts.National)
	}
	return parts
}

// OwnerIdentifier slugs an owner display name or email into the lowercase
// identifier stamped onto client records for provenance.
func OwnerIdentifier(source string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(source), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "unknown-user"
	}
	return slug
}

// IsBlank reports whether a value is empty or all whitespace.
func IsBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}
