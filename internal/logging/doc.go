// Package logging provides concrete implementations of the stageswap.Logger interface.
//
// Available implementations:
//   - ConsoleLogger: Writes prefixed lines to stderr, colored when stderr is a terminal
//   - NullLogger: Discards all messages (useful for testing)
//
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging
