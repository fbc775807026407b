package validation

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordLength = 72

	MaxNameLength  = 200
	MaxTitleLength = 255
	MaxTextLength  = 10000
)

var (
	// EmailRegex validates email format
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	slugRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// IsValidEmail checks if the string is a valid email format
func IsValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// IsValidSlug accepts lowercase dash-separated identifiers like "google-calendar".
func IsValidSlug(s string) bool {
	return len(s) <= 64 && slugRegex.MatchString(s)
}

// IsValidPassword checks length bounds and rejects all-whitespace passwords.
// Returns (valid, error message)
func IsValidPassword(password string) (bool, string) {
	if len(password) < MinPasswordLength {
		return false, "Password must be at least 8 characters"
	}
	if len(password) > MaxPasswordLength {
		return false, "Password must be at most 72 bytes"
	}
	if strings.TrimSpace(password) == "" {
		return false, "Password must not be blank"
	}
	return true, ""
}

// RequiredText returns a message when s is blank or longer than max runes.
func RequiredText(s, field string, max int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return field + " is required"
	}
	return OptionalText(s, field, max)
}

// OptionalText only enforces the length limit.
func OptionalText(s, field string, max int) string {
	if utf8.RuneCountInString(s) > max {
		return field + " is too long"
	}
	return ""
}

// IsValidTimeRange reports whether end, when set, is after start.
func IsValidTimeRange(start time.Time, end *time.Time) bool {
	return end == nil || end.After(start)
}

// SanitizeString removes potentially dangerous characters for display
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	// Remove control characters except newlines and tabs
	var result strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}

	return result.String()
}
