// Package validation checks and canonicalizes user-supplied feed URLs.
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError reports unusable feed URL input.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// FeedURLValidator validates and normalizes feed URLs. It is a pure
// transformation: no network lookups, no side effects.
type FeedURLValidator struct {
	// MaxLength is the maximum accepted URL length.
	MaxLength int
}

// NewFeedURLValidator returns a validator with default limits.
func NewFeedURLValidator() *FeedURLValidator {
	return &FeedURLValidator{MaxLength: 2048}
}

// ValidateAndNormalize trims the input, defaults the scheme to https
// when none is given, and returns the canonical string form. Only http
// and https URLs are accepted.
func (v *FeedURLValidator) ValidateAndNormalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)

	if trimmed == "" {
		return "", validationErrorf("feed url cannot be empty")
	}
	if v.MaxLength > 0 && len(trimmed) > v.MaxLength {
		return "", validationErrorf("feed url too long (max %d characters)", v.MaxLength)
	}

	// no scheme separator means a bare host/path; assume https
	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", validationErrorf("invalid feed url: %v", err)
	}

	switch parsed.Scheme {
	case "http", "https":
		return parsed.String(), nil
	default:
		return "", validationErrorf("unsupported url scheme %q, only http and https are allowed", parsed.Scheme)
	}
}
