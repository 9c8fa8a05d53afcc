package interfaces

import "context"

// LinkStore is the persistent bidirectional identity-wallet registry.
//
// Implementations must make CreateLink, ClaimMint and MarkMintClaimed
// atomic read-modify-write operations with respect to each other and
// themselves: of two concurrent CreateLink calls for the same wallet
// exactly one succeeds, and of N concurrent ClaimMint calls for the same
// wallet exactly one succeeds. No ordering is required across distinct
// wallets or identities.
type LinkStore interface {
	// CreateLink creates the one link record for the identity-wallet pair.
	// It fails with *AlreadyLinkedIdentityError or *AlreadyLinkedWalletError
	// if either side already has a record; it never overwrites. On success
	// the record is durably persisted before the call returns.
	CreateLink(ctx context.Context, id IdentityID, handle string, wallet WalletAddress) (LinkRecord, error)

	// ByIdentity looks up the record for an identity. The second return
	// value reports whether a record exists.
	ByIdentity(ctx context.Context, id IdentityID) (LinkRecord, bool, error)

	// ByWallet looks up the record for a wallet address.
	ByWallet(ctx context.Context, wallet WalletAddress) (LinkRecord, bool, error)

	// ClaimMint atomically checks and sets the mint flag for a wallet. It
	// fails with ErrNotLinked if no record exists and with
	// *AlreadyMintedError if the flag is already set. The eligibility read
	// and the flag write happen in one critical section.
	ClaimMint(ctx context.Context, wallet WalletAddress) (LinkRecord, error)

	// MarkMintClaimed sets the mint flag without checking it first. A
	// second call re-stamps the claim time; callers that need at-most-once
	// semantics use ClaimMint instead. Fails with ErrNotLinked if no record
	// exists.
	MarkMintClaimed(ctx context.Context, wallet WalletAddress) error

	// All returns every link record, ordered by link time.
	All(ctx context.Context) ([]LinkRecord, error)

	// Remove deletes the record for an identity from both indexes. This is
	// the administrative purge path, outside normal flow. Removing an
	// absent identity is a no-op.
	Remove(ctx context.Context, id IdentityID) error

	// Stats reports registry totals.
	Stats(ctx context.Context) (Stats, error)
}
