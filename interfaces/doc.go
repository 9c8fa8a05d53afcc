// Package interfaces defines the core types and contracts for the whitelist
// mint-authorization service. It provides the boundary between components
// without implementation details.
//
// The central types are:
//
//   - IdentityID: opaque external social-account identifier from OAuth.
//   - WalletAddress: canonicalized (lowercase) Ethereum address.
//   - LinkRecord: the unique, bidirectional identity-wallet association.
//
// The central contracts are:
//
//   - LinkStore: persistent 1:1 identity-wallet registry with an atomic
//     conditional mint-claim transition.
//   - FollowerVerifier: the (possibly bypassed) follow check gating link
//     eligibility.
//   - ProfileProvider: OAuth code exchange and profile lookup.
//   - NonceReader: on-chain per-wallet mint nonce lookup.
//
// Error values follow two patterns: plain sentinels for conditions that
// carry no context (ErrNotLinked, ErrNoSigningKey), and typed errors that
// unwrap to a sentinel while carrying the conflicting counterpart
// (AlreadyLinkedIdentityError, AlreadyLinkedWalletError, AlreadyMintedError)
// so callers can both match with errors.Is and extract detail with
// errors.As.
package interfaces
