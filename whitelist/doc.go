// Package whitelist provides the persistent identity-wallet link registry
// with pluggable backends.
//
// The registry enforces a strict 1:1 bidirectional mapping: an identity
// links at most one wallet and a wallet belongs to at most one identity.
// Link creation and the mint-claim transition are atomic read-modify-write
// operations; a lost update between concurrent requests would break the
// uniqueness guarantee the whole service exists to provide, so every
// backend serializes them.
//
// # Backend URI Format
//
// Backends are selected by URI scheme through StoreFor:
//
//   - file:///var/lib/whitelist/whitelist.json
//   - redis://[:password@]host:port/db
//
// The file backend keeps the whole registry in one JSON document behind a
// mutex and replaces it atomically (temp file + rename) on every write. It
// suits single-node deployments and tests.
//
// The redis backend stores one record per identity and per wallet key and
// runs CreateLink and ClaimMint as WATCH transactions over both keys, so
// concurrent writers on different service instances still serialize per
// wallet and per identity.
package whitelist
