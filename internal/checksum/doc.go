// Package checksum fingerprints raw provider payloads.
//
// The archive stores the fingerprint next to each payload so an archived
// object can be matched to the run that loaded it, and a re-download can be
// checked against it.
//
// SHA256 is safe for concurrent use by multiple goroutines.
package checksum
