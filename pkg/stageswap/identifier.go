package stageswap

import (
	"fmt"
	"regexp"
)

// MaxIdentifierLength is PostgreSQL's NAMEDATALEN-1.
const MaxIdentifierLength = 63

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier allow-lists schema, table, and column names before they
// reach statement text. Only letters, digits, and underscores are accepted,
// and the name must not start with a digit.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier is empty: %w", ErrInvalidConfig)
	}
	if len(name) > MaxIdentifierLength {
		return fmt.Errorf("identifier %q exceeds %d bytes: %w", name, MaxIdentifierLength, ErrInvalidConfig)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("identifier %q contains characters outside [A-Za-z0-9_]: %w", name, ErrInvalidConfig)
	}
	return nil
}
