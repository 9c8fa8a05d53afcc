// Package proof issues EIP-712 mint authorizations.
//
// A proof is a signature over the typed structure
//
//	Whitelist(address minter, uint256 nonce)
//
// under the collection contract's domain separator. The contract recovers
// the signer on-chain and compares it against the configured backend signer
// address; it also enforces nonce freshness. The issuer keeps no state and
// no proof tracking: single-use enforcement lives in the link store's mint
// flag and the contract's nonce check.
package proof

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/basemint/whitelist-backend/interfaces"
)

// Domain identifies the verifying contract for the typed-data signature.
type Domain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract common.Address
}

func (d Domain) typedDataDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           math.NewHexOrDecimal256(d.ChainID),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

var whitelistTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Whitelist": {
		{Name: "minter", Type: "address"},
		{Name: "nonce", Type: "uint256"},
	},
}

// Issuer signs mint authorizations with the backend private key. It is a
// pure function of its inputs plus the fixed domain and key.
type Issuer struct {
	key    *ecdsa.PrivateKey
	domain Domain
}

// NewIssuer parses the hex-encoded backend private key. An empty key fails
// with ErrNoSigningKey so a missing deployment secret is caught at startup.
func NewIssuer(hexKey string, domain Domain) (*Issuer, error) {
	if hexKey == "" {
		return nil, interfaces.ErrNoSigningKey
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing backend signing key: %w", err)
	}

	return &Issuer{key: key, domain: domain}, nil
}

// SignerAddress returns the address the contract must hold as the
// authorized signer.
func (i *Issuer) SignerAddress() common.Address {
	return crypto.PubkeyToAddress(i.key.PublicKey)
}

// IssueProof signs the Whitelist struct for the given minter and nonce.
// The returned 65-byte signature uses legacy V (27/28) as expected by
// Solidity's ecrecover.
func (i *Issuer) IssueProof(wallet interfaces.WalletAddress, nonce uint64) (hexutil.Bytes, error) {
	hash, err := hashWhitelist(i.domain, wallet, nonce)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(hash, i.key)
	if err != nil {
		return nil, fmt.Errorf("signing whitelist proof: %w", err)
	}
	sig[64] += 27

	return sig, nil
}

// RecoverSigner is the inverse of IssueProof: it recovers the address that
// produced the signature for the given minter and nonce. Used in tests and
// operator tooling; real verification happens on-chain.
func RecoverSigner(domain Domain, wallet interfaces.WalletAddress, nonce uint64, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}

	hash, err := hashWhitelist(domain, wallet, nonce)
	if err != nil {
		return common.Address{}, err
	}

	// crypto.SigToPub expects V in {0,1}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("recovering signer: %w", err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// hashWhitelist computes the EIP-712 digest: keccak256(0x1901 || domain
// separator || struct hash).
func hashWhitelist(domain Domain, wallet interfaces.WalletAddress, nonce uint64) ([]byte, error) {
	td := apitypes.TypedData{
		Types:       whitelistTypes,
		PrimaryType: "Whitelist",
		Domain:      domain.typedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"minter": wallet.Address().Hex(),
			"nonce":  (*math.HexOrDecimal256)(new(big.Int).SetUint64(nonce)),
		},
	}

	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hashing domain: %w", err)
	}

	structHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, fmt.Errorf("hashing message: %w", err)
	}

	raw := append([]byte{0x19, 0x01}, append(domainSeparator, structHash...)...)
	return crypto.Keccak256(raw), nil
}
