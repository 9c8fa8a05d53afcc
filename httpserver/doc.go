// Package httpserver provides the HTTP API of the whitelist service: the X
// OAuth dance, session inspection, follower verification, wallet linking,
// public whitelist status and mint proof issuance, plus a token-guarded
// admin API.
//
// # Architecture
//
// The Server owns the listener lifecycle (liveness, readiness, drain,
// graceful shutdown) and the Prometheus metrics server running beside the
// API. The Handler is the authorization orchestrator: it composes the
// session codec, the link store, the follower verifier, the OAuth client
// and the proof issuer, and translates every failure into a stable
// machine-readable reason code. Handlers hold no mutable state; all
// concurrency control lives in the link store.
//
// # Endpoints
//
//	POST   /api/auth/x              Start the OAuth dance
//	GET    /api/auth/x/callback     Complete it, set the session cookie
//	GET    /api/session             Inspect the current session
//	POST   /api/session/logout      Clear the session cookie
//	POST   /api/verify-follower     Run the follower check, update session
//	POST   /api/link-wallet         Link the session identity to a wallet
//	GET    /api/whitelist/{address} Public whitelist status
//	POST   /api/sign-whitelist      Issue the one mint authorization
//	GET    /api/admin/entries       List all link records (admin)
//	GET    /api/admin/stats         Registry totals (admin)
//	DELETE /api/admin/links/{id}    Purge a link (admin)
//	GET    /livez, /readyz          Health checks
//	GET    /drain, /undrain         Readiness toggling for rollouts
package httpserver
