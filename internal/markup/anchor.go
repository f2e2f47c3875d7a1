package markup

import "strings"

// AnchorKey returns the key held by the hidden anchor of a tokenized Test
// Name cell: the unescaped text between the first hidden-division
// placeholders.
func AnchorKey(cell string) (string, bool) {
	_, after, ok := strings.Cut(cell, TokenHiddenOpen)
	if !ok {
		return "", false
	}
	key, _, ok := strings.Cut(after, TokenHiddenClose)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(textOf(key)), true
}

// VisibleText returns the displayed part of a Test Name cell as plain text.
func VisibleText(cell string) string {
	if _, after, ok := strings.Cut(cell, TokenHiddenClose); ok {
		cell = after
	}
	return strings.TrimSpace(textOf(tokenPattern.ReplaceAllString(cell, "")))
}

// WithAnchor builds a Test Name cell value for a new row. The key is
// escaped; visible is inserted as given.
func WithAnchor(key, visible string) string {
	return TokenHiddenOpen + EscapeText(key) + TokenHiddenClose + visible
}

// ReplaceVisible keeps the anchor of cell and replaces what follows it.
// A cell without an anchor is replaced entirely.
func ReplaceVisible(cell, visible string) string {
	i := strings.Index(cell, TokenHiddenClose)
	if i < 0 || !strings.Contains(cell[:i], TokenHiddenOpen) {
		return visible
	}
	return cell[:i+len(TokenHiddenClose)] + visible
}
