package interfaces

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAddress is returned when a wallet address fails validation.
	ErrInvalidAddress = errors.New("invalid ethereum address")

	// ErrNotLinked is returned when no link record exists for a wallet.
	ErrNotLinked = errors.New("wallet not linked")

	// ErrAlreadyLinked is the sentinel both link-conflict error types
	// unwrap to.
	ErrAlreadyLinked = errors.New("already linked")

	// ErrAlreadyMinted is the sentinel AlreadyMintedError unwraps to.
	ErrAlreadyMinted = errors.New("mint already claimed")

	// ErrNoSigningKey indicates the backend signer key is not configured.
	// This is a deployment defect, not a caller error.
	ErrNoSigningKey = errors.New("backend signing key not configured")

	// ErrNoSessionSecret indicates the session signing secret is not
	// configured.
	ErrNoSessionSecret = errors.New("session secret not configured")

	// ErrNoOAuthCredentials indicates the X API client credentials are not
	// configured.
	ErrNoOAuthCredentials = errors.New("oauth credentials not configured")

	// ErrUpstream marks transient upstream failures (timeouts, network
	// errors against the X API or the chain RPC). Callers may retry.
	ErrUpstream = errors.New("upstream request failed")
)

// AlreadyLinkedIdentityError is returned by CreateLink when the identity
// already has a record. It carries the wallet the identity is linked to so
// the caller can explain the conflict without a follow-up query.
type AlreadyLinkedIdentityError struct {
	IdentityID IdentityID
	Wallet     WalletAddress
}

func (e *AlreadyLinkedIdentityError) Error() string {
	return fmt.Sprintf("identity %s already linked to %s", e.IdentityID, e.Wallet)
}

func (e *AlreadyLinkedIdentityError) Unwrap() error {
	return ErrAlreadyLinked
}

// AlreadyLinkedWalletError is returned by CreateLink when the wallet already
// belongs to another identity. It carries the counterpart handle.
type AlreadyLinkedWalletError struct {
	Wallet WalletAddress
	Handle string
}

func (e *AlreadyLinkedWalletError) Error() string {
	return fmt.Sprintf("wallet %s already linked to @%s", e.Wallet, e.Handle)
}

func (e *AlreadyLinkedWalletError) Unwrap() error {
	return ErrAlreadyLinked
}

// AlreadyMintedError is returned by ClaimMint when the wallet's mint flag is
// already set. It carries the handle that performed the mint.
type AlreadyMintedError struct {
	Wallet WalletAddress
	Handle string
}

func (e *AlreadyMintedError) Error() string {
	return fmt.Sprintf("wallet %s already minted with @%s", e.Wallet, e.Handle)
}

func (e *AlreadyMintedError) Unwrap() error {
	return ErrAlreadyMinted
}
