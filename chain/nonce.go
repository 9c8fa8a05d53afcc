// Package chain reads per-wallet mint nonces from the collection contract.
// It backs the optional cross-check of caller-supplied nonces; the service
// itself never tracks nonces.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/basemint/whitelist-backend/interfaces"
)

const noncesABI = `[{"inputs":[{"internalType":"address","name":"","type":"address"}],"name":"nonces","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// NonceReader reads the nonces(address) view of the collection contract.
type NonceReader struct {
	client   *ethclient.Client
	contract common.Address
	abi      abi.ABI
}

// NewNonceReader creates a reader bound to the collection contract.
func NewNonceReader(client *ethclient.Client, contract common.Address) (*NonceReader, error) {
	parsed, err := abi.JSON(strings.NewReader(noncesABI))
	if err != nil {
		return nil, fmt.Errorf("parsing nonces ABI: %w", err)
	}

	return &NonceReader{client: client, contract: contract, abi: parsed}, nil
}

// CurrentNonce returns the wallet's current mint nonce.
func (r *NonceReader) CurrentNonce(ctx context.Context, wallet interfaces.WalletAddress) (uint64, error) {
	data, err := r.abi.Pack("nonces", wallet.Address())
	if err != nil {
		return 0, fmt.Errorf("packing nonces call: %w", err)
	}

	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: nonces call: %v", interfaces.ErrUpstream, err)
	}

	values, err := r.abi.Unpack("nonces", out)
	if err != nil {
		return 0, fmt.Errorf("unpacking nonces result: %w", err)
	}

	nonce, ok := values[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected nonces result type %T", values[0])
	}

	return nonce.Uint64(), nil
}
