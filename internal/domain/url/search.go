package url

import (
	"net/url"
	"strings"
)

// DefaultSearchTemplate is used when no search engine is configured.
const DefaultSearchTemplate = "https://www.google.com/search?q=%s"

// ParseBangShortcut extracts a bang shortcut from input.
// Input must start with "!" followed by shortcut key and a space.
// Returns (shortcutKey, query, found).
//
// Examples:
//
//	"!g golang"      → ("g", "golang", true)
//	"!gh repo name"  → ("gh", "repo name", true)
//	"!g"             → ("", "", false) - no query
//	"plain text"     → ("", "", false)
func ParseBangShortcut(input string) (shortcut, query string, found bool) {
	if !strings.HasPrefix(input, "!") {
		return "", "", false
	}

	spaceIdx := strings.Index(input, " ")
	if spaceIdx == -1 || spaceIdx == 1 {
		// No space found or empty shortcut ("! query")
		return "", "", false
	}

	shortcut = input[1:spaceIdx]
	query = strings.TrimSpace(input[spaceIdx+1:])

	if query == "" {
		return "", "", false
	}

	return shortcut, query, true
}

// BuildSearchURL constructs a navigable URL from user input. It checks for
// bang shortcuts first, then URL-like input, then falls back to wrapping the
// input in the default search engine template. The query is URL-escaped
// before substitution.
//
// Parameters:
//   - input: user input (e.g., "!g golang", "example.com", "search query")
//   - shortcutURLs: map of shortcut keys to URL templates (e.g., {"g": "https://google.com/search?q=%s"})
//   - defaultSearch: default search engine URL template
func BuildSearchURL(input string, shortcutURLs map[string]string, defaultSearch string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}

	// Check for bang shortcut (e.g., "!g query")
	if shortcutKey, query, found := ParseBangShortcut(input); found {
		if urlTemplate, ok := shortcutURLs[shortcutKey]; ok {
			return strings.Replace(urlTemplate, "%s", url.QueryEscape(query), 1)
		}
		// Unknown bang falls through to default search with original input
	}

	if LooksLikeURL(input) {
		return Normalize(input)
	}

	if defaultSearch == "" {
		defaultSearch = DefaultSearchTemplate
	}
	return strings.Replace(defaultSearch, "%s", url.QueryEscape(input), 1)
}
