package stageswap

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the failure kinds a run can end with.
// Typed errors below wrap these so callers can use errors.Is for the kind
// and errors.As for the diagnostics.
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates the warehouse connection could not be established.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrSourceUnavailable indicates the upstream fetch failed or returned an unrecognized shape.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrUniquenessViolation indicates the declared key is not unique in staged data.
	ErrUniquenessViolation = errors.New("primary key uniqueness failed")

	// ErrDuplicateRows indicates business-key duplicates in staged data.
	ErrDuplicateRows = errors.New("duplicate rows detected")

	// ErrStoreOperationFailed indicates a DDL/DML statement failed.
	ErrStoreOperationFailed = errors.New("store operation failed")
)

// SourceUnavailableError carries the provider's diagnostic text.
// A throttle notice and a real provider error both land here; the provider
// answers HTTP 200 for both and only the text tells them apart.
type SourceUnavailableError struct {
	Diagnostic string
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSourceUnavailable, e.Diagnostic)
}

func (e *SourceUnavailableError) Unwrap() error { return ErrSourceUnavailable }

// NewSourceUnavailable builds a SourceUnavailableError with the diagnostic
// truncated to MaxDiagnosticLength characters.
func NewSourceUnavailable(diagnostic string) *SourceUnavailableError {
	return &SourceUnavailableError{Diagnostic: Truncate(diagnostic, MaxDiagnosticLength)}
}

// UniquenessViolationError reports the worst offending key and how often it occurs.
type UniquenessViolationError struct {
	Key   string
	Count int64
}

func (e *UniquenessViolationError) Error() string {
	return fmt.Sprintf("%s: key %s appears %d times", ErrUniquenessViolation, e.Key, e.Count)
}

func (e *UniquenessViolationError) Unwrap() error { return ErrUniquenessViolation }

// DuplicateRowsError reports how many rows exceed the distinct business-key count.
type DuplicateRowsError struct {
	Excess int64
}

func (e *DuplicateRowsError) Error() string {
	return fmt.Sprintf("%s: %d duplicates", ErrDuplicateRows, e.Excess)
}

func (e *DuplicateRowsError) Unwrap() error { return ErrDuplicateRows }

// StoreError wraps a failed statement with the step that issued it.
func StoreError(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreOperationFailed, step, err)
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrSourceUnavailable):
		return ExitSourceUnavailable
	case errors.Is(err, ErrUniquenessViolation):
		return ExitUniquenessViolation
	case errors.Is(err, ErrDuplicateRows):
		return ExitDuplicateRows
	case errors.Is(err, ErrStoreOperationFailed):
		return ExitStoreFailed
	}

	errStr := err.Error()
	if strings.Contains(errStr, "unknown flag") ||
		strings.Contains(errStr, "unknown shorthand flag") ||
		strings.Contains(errStr, "unknown command") ||
		strings.Contains(errStr, "accepts ") ||
		strings.Contains(errStr, "invalid argument") {
		return ExitUsageError
	}
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
