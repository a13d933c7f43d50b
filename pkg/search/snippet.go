package search

import (
	"strings"
	"unicode/utf8"
)

// makeSnippet returns a bounded window of content around the first query-term
// occurrence, with ellipses marking truncation. When no term matches, the
// leading window is returned instead.
func makeSnippet(content string, terms []string, window int) string {
	if window <= 0 {
		window = 200
	}
	if len(content) <= window {
		return content
	}

	lower := strings.ToLower(content)
	pos := -1
	for _, term := range terms {
		if idx := strings.Index(lower, term); idx >= 0 && (pos < 0 || idx < pos) {
			pos = idx
		}
	}

	if pos < 0 {
		return content[:snapToRuneStart(content, window)] + "..."
	}

	start := pos - window/2
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(content) {
		end = len(content)
		start = end - window
		if start < 0 {
			start = 0
		}
	}
	start = snapToRuneStart(content, start)
	end = snapToRuneStart(content, end)

	snippet := content[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet = snippet + "..."
	}
	return snippet
}

// snapToRuneStart moves a byte offset left until it lands on a rune boundary,
// so window cuts never split a multibyte sequence.
func snapToRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
