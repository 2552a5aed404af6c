// Package strings holds text helpers for messages shown to users.
package strings

import (
	"strings"
)

// MinMessageLen is the smallest maxLen SingleLine honors. Smaller values
// leave no room for content before the ellipsis.
const MinMessageLen = 4

// SingleLine collapses every run of whitespace (including newlines) into a
// single space and truncates the result to at most maxLen runes, ending in
// "..." when shortened. Backend error bodies such as HTML error pages pass
// through here before they are shown as a one-line message.
func SingleLine(s string, maxLen int) string {
	if maxLen < MinMessageLen {
		maxLen = MinMessageLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
