// Package callback resolves the identity provider's redirect back into the
// dashboard.
//
// A callback carries either the token pair directly (?token=&refresh=) or an
// authorization code (?code=). The Resolver tries, in order: storing the
// direct tokens; exchanging the code with a GET; exchanging the same code
// with a POST. The first success is persisted and the user is sent home
// after a short grace period. A backend-requested provider redirect is
// followed with a hard navigation. When everything fails the reason is
// shown and the user is sent to the sign-in route with an error flag.
//
//	INIT ─┬─> CHECKING_DIRECT_TOKENS ─┬─> SUCCEEDED
//	      │                           └─> (storage failed, code present)
//	      ├─> EXCHANGING_CODE_GET ─┬─> SUCCEEDED | REDIRECTED | FAILED
//	      │                        └─> EXCHANGING_CODE_POST ─> SUCCEEDED | REDIRECTED | FAILED
//	      └─> FAILED (no parameters)
package callback
