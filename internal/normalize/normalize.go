// Package normalize folds user-supplied identifiers so lookups are
// insensitive to case and Unicode representation.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Identity folds an email or username for use as a unique index key.
// "Ｒeader@Example.COM " and "reader@example.com" map to the same key.
func Identity(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	return cases.Fold().String(s)
}

// DisplayName trims and NFC-composes a username for storage without changing its case.
func DisplayName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
