// Package url provides URL manipulation utilities for the shell.
package url

import (
	"strings"
)

// Normalize adds an https:// prefix if missing for URL-like inputs.
// Returns the input unchanged if it already has a scheme or doesn't look
// like a URL.
func Normalize(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}

	if hasHTTPScheme(input) {
		return input
	}

	// Looks like a URL (contains . and no whitespace)
	if strings.Contains(input, ".") && !containsWhitespace(input) {
		return "https://" + input
	}

	return input
}

// LooksLikeURL checks if the input appears to be a URL (not a search query).
// Returns true for strings like "github.com", "google.com/search", and
// anything with an explicit http(s) scheme.
func LooksLikeURL(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}

	if hasHTTPScheme(input) {
		return true
	}

	return strings.Contains(input, ".") && !containsWhitespace(input)
}

// hasHTTPScheme matches http:// and https:// prefixes, case-insensitive.
func hasHTTPScheme(input string) bool {
	lower := strings.ToLower(input)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func containsWhitespace(input string) bool {
	return strings.ContainsAny(input, " \t")
}
