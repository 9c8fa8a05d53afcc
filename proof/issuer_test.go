package proof

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basemint/whitelist-backend/interfaces"
)

const testSignerKey = "4c0883a69102937d6231471b5dbb6204fe512961708279feb1be6ae5538da033"

var testDomain = Domain{
	Name:              "NFTCollection",
	Version:           "1",
	ChainID:           8453,
	VerifyingContract: common.HexToAddress("0x3333333333333333333333333333333333333333"),
}

func testWallet(t *testing.T) interfaces.WalletAddress {
	wallet, err := interfaces.NewWalletAddress("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	return wallet
}

func TestIssueProofRecoversToSignerAddress(t *testing.T) {
	issuer, err := NewIssuer(testSignerKey, testDomain)
	require.NoError(t, err)

	wallet := testWallet(t)
	sig, err := issuer.IssueProof(wallet, 7)
	require.NoError(t, err)
	require.Len(t, []byte(sig), 65)

	// Legacy V as expected by ecrecover.
	assert.Contains(t, []byte{27, 28}, sig[64])

	recovered, err := RecoverSigner(testDomain, wallet, 7, sig)
	require.NoError(t, err)
	assert.Equal(t, issuer.SignerAddress(), recovered)
}

func TestIssueProofIsDeterministic(t *testing.T) {
	issuer, err := NewIssuer(testSignerKey, testDomain)
	require.NoError(t, err)

	wallet := testWallet(t)
	first, err := issuer.IssueProof(wallet, 0)
	require.NoError(t, err)
	second, err := issuer.IssueProof(wallet, 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNonceChangesSignature(t *testing.T) {
	issuer, err := NewIssuer(testSignerKey, testDomain)
	require.NoError(t, err)

	wallet := testWallet(t)
	sig0, err := issuer.IssueProof(wallet, 0)
	require.NoError(t, err)
	sig1, err := issuer.IssueProof(wallet, 1)
	require.NoError(t, err)

	assert.NotEqual(t, sig0, sig1)

	// A signature for nonce 0 does not recover to the signer under nonce 1.
	recovered, err := RecoverSigner(testDomain, wallet, 1, sig0)
	if err == nil {
		assert.NotEqual(t, issuer.SignerAddress(), recovered)
	}
}

func TestDomainChangesSignature(t *testing.T) {
	issuer, err := NewIssuer(testSignerKey, testDomain)
	require.NoError(t, err)

	otherDomain := testDomain
	otherDomain.ChainID = 1

	otherIssuer, err := NewIssuer(testSignerKey, otherDomain)
	require.NoError(t, err)

	wallet := testWallet(t)
	sig, err := issuer.IssueProof(wallet, 0)
	require.NoError(t, err)
	otherSig, err := otherIssuer.IssueProof(wallet, 0)
	require.NoError(t, err)

	assert.NotEqual(t, sig, otherSig)
}

func TestNewIssuerRejectsEmptyKey(t *testing.T) {
	_, err := NewIssuer("", testDomain)
	assert.ErrorIs(t, err, interfaces.ErrNoSigningKey)
}

func TestNewIssuerAccepts0xPrefix(t *testing.T) {
	plain, err := NewIssuer(testSignerKey, testDomain)
	require.NoError(t, err)
	prefixed, err := NewIssuer("0x"+testSignerKey, testDomain)
	require.NoError(t, err)

	assert.Equal(t, plain.SignerAddress(), prefixed.SignerAddress())
}

func TestRecoverSignerRejectsBadLength(t *testing.T) {
	_, err := RecoverSigner(testDomain, testWallet(t), 0, []byte{1, 2, 3})
	assert.Error(t, err)
}
