// Package app provides application bootstrap and wiring for healthdash.
//
// It is the only package that knows about every other one: it loads the
// configuration, initializes logging and builds the session bootstrap
// components in dependency order.
//
// # Components
//
//  1. **Configuration (`config.go`)**: runtime flags for one invocation
//  2. **Bootstrap (`bootstrap.go`)**: NewApplication, logging setup
//  3. **Services (`services.go`)**: session backend and store, CSRF manager,
//     API gateway, typed auth API, terminal navigator, metrics
//  4. **Modes (`modes.go`)**: factories for the callback resolver and the
//     sign-in initiator, plus the session watch loop
//
// # Shared state
//
// The CSRF manager and the gateway share one http.Client and its cookie
// jar, so a cookie-delivered CSRF token is visible to both. Clearing the
// session (or a change made by another process) invalidates the cached
// CSRF token.
//
// # Session backends
//
//   - file: ~/.config/healthdash/session/session.json (default)
//   - memory: selected by --ephemeral or session.backend: memory
//   - redis: session.backend: redis, shared by several processes
package app
