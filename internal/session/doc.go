// Package session owns the persisted session: the access/refresh token pair
// and the cached user identity.
//
// The store is a scoped key-value layout of three keys (token, refresh,
// user) that are always written and cleared together. A write replaces the
// whole record, so a token written without a refresh token never inherits
// the refresh token of a previous session.
//
// # Backends
//
//   - FileBackend: ~/.config/healthdash/session/session.json (default)
//   - MemoryBackend: process memory, for --ephemeral runs and tests
//   - RedisBackend: shared between processes, replaced in one MULTI/EXEC
//
// # Failure semantics
//
// Read never fails: an unreadable store is reported as "no session". Write
// and Clear return errors wrapping ErrStorageFailure so that callers can
// decide whether the session really persisted before navigating away.
package session
