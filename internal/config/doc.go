// Package config provides configuration management for healthdash.
//
// Configuration is loaded from config.yaml in a single directory. The default
// directory is ~/.config/healthdash; the --config-path flag selects another.
// A missing file means defaults. Any field can be overridden from the
// environment with the HEALTHDASH_ prefix, for example:
//
//	HEALTHDASH_API_BASE_URL=https://api.example.com
//	HEALTHDASH_SESSION_BACKEND=redis
//	HEALTHDASH_SESSION_REDIS_ADDR=localhost:6379
//	HEALTHDASH_OAUTH_MODE=popup
//
// # Example
//
//	api:
//	  baseURL: http://127.0.0.1:8000
//	  appURL: http://localhost:5173
//	session:
//	  backend: file
//	routes:
//	  home: /dashboard
//	  signIn: /auth?mode=signin
//	oauth:
//	  mode: redirect
//	  successDelay: 500ms
//	  failureDelay: 5s
//
// The session directory defaults to <config dir>/session.
package config
