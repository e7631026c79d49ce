// Package inputval validates the raw credential and profile input the
// UI collects before it is handed to the identity provider or the
// directory. These are pure shape checks; the provider remains the
// authority on whether credentials are actually accepted.
package inputval

import (
	"regexp"
	"strings"
)

// emailRe accepts the practical shape of an email address. The
// provider performs its own verification; this only catches typos
// before a round trip.
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)

// phoneRe accepts an optional leading + followed by 7 to 15 digits
// (E.164 length bounds) after normalization.
var phoneRe = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// MinPasswordLen matches the identity provider's weak-password floor.
const MinPasswordLen = 6

// IsValidEmail reports whether s looks like an email address.
func IsValidEmail(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

// IsValidPhone reports whether s looks like a dialable phone number.
// Callers should normalize separators first (see normalize.Phone).
func IsValidPhone(s string) bool {
	return phoneRe.MatchString(strings.TrimSpace(s))
}

// PasswordProblems returns the reasons a password fails the local
// policy, or nil when it passes. The policy mirrors what the provider
// rejects as weak so users hear about it without a round trip.
func PasswordProblems(s string) []string {
	var problems []string
	if len(s) < MinPasswordLen {
		problems = append(problems, "must be at least 6 characters")
	}

	var hasLetter, hasDigit bool
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		}
	}
	if !hasLetter {
		problems = append(problems, "must contain a letter")
	}
	if !hasDigit {
		problems = append(problems, "must contain a digit")
	}
	return problems
}

// IsValidPassword reports whether s passes the local password policy.
func IsValidPassword(s string) bool {
	return len(PasswordProblems(s)) == 0
}
