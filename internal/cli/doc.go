// Package cli holds the terminal presentation helpers used by the healthdash
// commands.
//
//   - Error types with actionable guidance (AuthRequiredError,
//     AuthExpiredError, AuthFailedError) and classification of connection
//     failures into TLS, DNS, timeout and network errors
//   - SpinnerView, the terminal rendering of a callback resolution
//   - Rounded key/value tables for status output
//   - A masked credential prompt
package cli
