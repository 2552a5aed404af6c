// Package logging provides subsystem-tagged structured logging for healthdash.
//
// It is a thin layer over log/slog. Every entry carries a subsystem attribute
// (Session, CSRF, Gateway, Callback, AuthInit, Config, CLI) so that output from
// the session bootstrap can be filtered per component.
//
// # Initialization
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stderr)
//
// # Usage
//
//	logging.Info("Gateway", "request %s %s", method, path)
//	logging.Error("Session", err, "failed to persist session")
//	logging.Audit("Session", "session_written", slog.Bool("has_refresh_token", true))
//
// Secrets (access tokens, refresh tokens, CSRF tokens, authorization codes)
// must never be logged verbatim; use Redact for correlation prefixes.
package logging
