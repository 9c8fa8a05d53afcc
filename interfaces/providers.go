package interfaces

import "context"

// FollowerVerifier reports whether an identity follows the project account.
// Deployments choose between a real X API lookup and an auto-approve policy;
// the orchestrator cannot tell which is wired.
type FollowerVerifier interface {
	IsFollowing(ctx context.Context, id IdentityID) (bool, error)
}

// ProfileProvider covers the OAuth boundary: building the authorization URL,
// exchanging an authorization code for an access token, and fetching the
// profile behind a token. All remote failures surface wrapped in
// ErrUpstream.
type ProfileProvider interface {
	AuthorizeURL(redirectURI string) (string, error)
	Exchange(ctx context.Context, code, redirectURI string) (accessToken string, err error)
	Profile(ctx context.Context, accessToken string) (Profile, error)
}

// NonceReader reads a wallet's current mint nonce from the collection
// contract. The service does not track nonces itself; this exists only for
// the optional cross-check of caller-supplied nonces.
type NonceReader interface {
	CurrentNonce(ctx context.Context, wallet WalletAddress) (uint64, error)
}
