// Package sqlident guards strings that end up in SQL identifier positions
// (schema, table, column and index names). Those positions cannot be bound as
// query parameters, so every such name must pass Valid before it is
// interpolated into a statement.
package sqlident

import (
	"errors"
	"fmt"
	"regexp"
)

// MaxLength is the longest identifier accepted (SQL Server sysname).
const MaxLength = 128

// ErrInvalidIdentifier is returned when a name fails the allow-pattern.
var ErrInvalidIdentifier = errors.New("invalid sql identifier")

var pattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Valid reports whether s is a non-empty identifier made only of ASCII
// letters, digits and underscore.
func Valid(s string) bool {
	return len(s) <= MaxLength && pattern.MatchString(s)
}

// Validate returns ErrInvalidIdentifier wrapped with the kind of name
// ("schema", "table", "column") when s is not Valid.
func Validate(kind, s string) error {
	if !Valid(s) {
		return fmt.Errorf("%s %q: %w", kind, s, ErrInvalidIdentifier)
	}
	return nil
}

// QuoteBracket returns s as a SQL Server bracket-delimited identifier.
// It panics if s is not Valid; callers validate first.
func QuoteBracket(s string) string {
	mustValid(s)
	return "[" + s + "]"
}

// QuoteANSI returns s as a double-quoted identifier.
// It panics if s is not Valid; callers validate first.
func QuoteANSI(s string) string {
	mustValid(s)
	return `"` + s + `"`
}

func mustValid(s string) {
	if !Valid(s) {
		panic(fmt.Sprintf("sqlident: unvalidated identifier %q", s))
	}
}
