package interfaces

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// IdentityID is the opaque X (Twitter) account identifier obtained via
// OAuth. It is stable across handle renames.
type IdentityID string

func (id IdentityID) String() string {
	return string(id)
}

// WalletAddress is a canonicalized Ethereum address: lowercase hex with the
// 0x prefix. All lookups and stored records use this form so that mixed-case
// input always resolves to the same record.
type WalletAddress string

// NewWalletAddress validates and canonicalizes an address string.
func NewWalletAddress(addr string) (WalletAddress, error) {
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return WalletAddress(strings.ToLower(common.HexToAddress(addr).Hex())), nil
}

func (w WalletAddress) String() string {
	return string(w)
}

// Address returns the go-ethereum representation of the wallet address.
func (w WalletAddress) Address() common.Address {
	return common.HexToAddress(string(w))
}

// LinkRecord is the unique, bidirectional association between one external
// identity and one wallet address. IdentityID and Wallet are immutable once
// the record exists; only the mint-claim fields transition, false to true,
// exactly once in normal operation.
type LinkRecord struct {
	IdentityID    IdentityID    `json:"identityId"`
	Handle        string        `json:"handle"`
	Wallet        WalletAddress `json:"walletAddress"`
	LinkedAt      time.Time     `json:"linkedAt"`
	MintClaimed   bool          `json:"mintClaimed"`
	MintClaimedAt *time.Time    `json:"mintClaimedAt,omitempty"`
}

// Stats summarizes the registry for operators.
type Stats struct {
	TotalLinked int `json:"totalLinked"`
	TotalMinted int `json:"totalMinted"`
	Remaining   int `json:"remaining"`
}

// Profile is the subset of the OAuth profile the service cares about.
type Profile struct {
	ID     IdentityID
	Handle string
}
