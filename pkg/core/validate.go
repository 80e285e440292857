package core

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Limits applied at enqueue and registration time.
const (
	// MaxKindNameLength is the maximum length for job kind names.
	MaxKindNameLength = 255

	// MaxParamsSize is the maximum size in bytes for job parameters (1MB).
	MaxParamsSize = 1 << 20

	// MaxRetriesLimit is the hard cap for retry budgets.
	MaxRetriesLimit = 100

	// MaxConcurrency is the hard cap for worker pool size.
	MaxConcurrency = 1000

	// MaxErrorMessageLength is the maximum length for stored error messages.
	MaxErrorMessageLength = 4096
)

// validKindName matches alphanumeric, hyphens, underscores, and dots.
var validKindName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// ValidateKindName validates a job kind name.
func ValidateKindName(kind string) error {
	if kind == "" {
		return ErrInvalidKindName
	}
	if len(kind) > MaxKindNameLength {
		return ErrKindNameTooLong
	}
	if !validKindName.MatchString(kind) {
		return ErrInvalidKindName
	}
	return nil
}

// ValidatePriority checks the 1-10 priority range.
func ValidatePriority(p int) error {
	if p < MinPriority || p > MaxPriority {
		return ErrInvalidPriority
	}
	return nil
}

// SanitizeErrorMessage strips control characters and truncates error
// messages before they are written to last_error.
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampRetries keeps retry budgets within limits.
func ClampRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxRetriesLimit {
		return MaxRetriesLimit
	}
	return n
}

// ClampConcurrency keeps worker pool size within limits.
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}
