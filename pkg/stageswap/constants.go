package stageswap

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
//
// The scheduler marks a run failed on any non-zero code; the specific value
// only tells an operator which stage gave up.
const (
	ExitSuccess             = 0  // Run committed (or dry run validated)
	ExitGeneralError        = 1  // Unknown or unclassified error
	ExitUsageError          = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic               = 3  // Internal panic (unexpected crash)
	ExitConfigError         = 10 // Invalid configuration
	ExitConnectionError     = 11 // Failed to connect to the warehouse
	ExitSourceUnavailable   = 20 // Upstream fetch failed or returned an unrecognized shape
	ExitUniquenessViolation = 21 // Declared key not unique in staged data
	ExitDuplicateRows       = 22 // Business-key duplicates in staged data
	ExitStoreFailed         = 23 // DDL/DML execution failed
)

const (
	// DefaultLookbackDays is the number of most recent daily records a price run keeps.
	DefaultLookbackDays = 90

	// DefaultSymbol is the ticker loaded when no symbol is configured.
	DefaultSymbol = "IBM"

	// DefaultTargetSchema and DefaultTargetTable name the price table.
	DefaultTargetSchema = "RAW"
	DefaultTargetTable  = "STOCK_PRICE"

	// DefaultSessionSchema and DefaultSessionTable name the session summary table.
	DefaultSessionSchema = "analytics"
	DefaultSessionTable  = "session_summary"

	// DefaultScratchPrefix is prepended to the target name to build the scratch table name.
	DefaultScratchPrefix = "temp_"

	// DefaultAPITimeout bounds the single upstream HTTP request.
	DefaultAPITimeout = 60 * time.Second

	// DefaultAPIBaseURL is the Alpha Vantage endpoint root.
	DefaultAPIBaseURL = "https://www.alphavantage.co"

	// MaxDiagnosticLength caps provider diagnostic text carried by SourceUnavailable errors.
	MaxDiagnosticLength = 300

	// DefaultRetryInitialDelay is the initial delay before the first connect retry.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the maximum delay between connect retries.
	DefaultRetryMaxDelay = 10 * time.Second

	// DefaultRetryMaxAttempts is the number of connect retries on transient failures.
	// Retries only cover establishing the pool; pipeline stages never retry.
	DefaultRetryMaxAttempts = 3

	// DefaultRunTimeout is the catastrophic-failure guard for a whole run.
	DefaultRunTimeout = 10 * time.Minute
)

// Session summary keys used when stageswap.yaml leaves them out. Callers must
// copy before modifying.
var (
	DefaultSessionPrimaryKey  = []string{"sessionid"}
	DefaultSessionBusinessKey = []string{"userid", "sessionid", "channel", "ts"}
)
