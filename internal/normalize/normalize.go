// Package normalize holds canonical-form helpers for stored identifiers.
package normalize

import "strings"

// Email returns the normalized form of an email address used for storage
// and comparisons: surrounding whitespace trimmed, lower-cased.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
