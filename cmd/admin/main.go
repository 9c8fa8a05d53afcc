// The admin command operates directly on the link store for operator tasks:
// listing entries, registry stats, purging links and verifying issued
// signatures offline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/basemint/whitelist-backend/cmd/flags"
	"github.com/basemint/whitelist-backend/interfaces"
	"github.com/basemint/whitelist-backend/proof"
	"github.com/basemint/whitelist-backend/whitelist"
)

var identityFlag = &cli.StringFlag{
	Name:     "identity",
	Required: true,
	Usage:    "X account id of the link to remove",
}
var addressFlag = &cli.StringFlag{
	Name:     "address",
	Required: true,
	Usage:    "minter wallet address",
}
var nonceFlag = &cli.Uint64Flag{
	Name:  "nonce",
	Value: 0,
	Usage: "mint nonce the signature was issued for",
}
var signatureFlag = &cli.StringFlag{
	Name:     "signature",
	Required: true,
	Usage:    "hex-encoded 65-byte signature to verify",
}

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:           "whitelist-admin",
		Usage:          "Operator tooling for the whitelist link store",
		DefaultCommand: "stats",
		Commands: []*cli.Command{
			{
				Name:   "entries",
				Usage:  "List every link record as JSON",
				Flags:  adminFlags(),
				Action: runEntries,
			},
			{
				Name:   "stats",
				Usage:  "Print registry totals",
				Flags:  adminFlags(),
				Action: runStats,
			},
			{
				Name:   "remove",
				Usage:  "Purge the link for an identity from both indexes",
				Flags:  adminFlags(identityFlag),
				Action: runRemove,
			},
			{
				Name:   "verify-signature",
				Usage:  "Recover the signer of a mint authorization offline",
				Flags:  adminFlags(addressFlag, nonceFlag, signatureFlag, flags.ContractFlag, flags.ChainIDFlag),
				Action: runVerifySignature,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func adminFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{flags.StoreFlag, flags.LogJSONFlag, flags.LogDebugFlag, flags.LogUIDFlag, flags.LogServiceFlag}, extra...)
}

func openStore(cCtx *cli.Context) (interfaces.LinkStore, error) {
	logger := flags.SetupLogger(cCtx)
	return whitelist.StoreFor(cCtx.Context, cCtx.String(flags.StoreFlag.Name), logger)
}

func runEntries(cCtx *cli.Context) error {
	store, err := openStore(cCtx)
	if err != nil {
		return err
	}

	records, err := store.All(context.Background())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func runStats(cCtx *cli.Context) error {
	store, err := openStore(cCtx)
	if err != nil {
		return err
	}

	stats, err := store.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("linked: %d\nminted: %d\nremaining: %d\n", stats.TotalLinked, stats.TotalMinted, stats.Remaining)
	return nil
}

func runRemove(cCtx *cli.Context) error {
	store, err := openStore(cCtx)
	if err != nil {
		return err
	}

	identity := interfaces.IdentityID(cCtx.String(identityFlag.Name))
	if err := store.Remove(context.Background(), identity); err != nil {
		return err
	}

	fmt.Printf("removed link for identity %s\n", identity)
	return nil
}

func runVerifySignature(cCtx *cli.Context) error {
	wallet, err := interfaces.NewWalletAddress(cCtx.String(addressFlag.Name))
	if err != nil {
		return err
	}

	sig, err := hexutil.Decode(cCtx.String(signatureFlag.Name))
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}

	contractHex := cCtx.String(flags.ContractFlag.Name)
	if !ethcommon.IsHexAddress(contractHex) {
		return fmt.Errorf("invalid contract address: %q", contractHex)
	}

	domain := proof.Domain{
		Name:              "NFTCollection",
		Version:           "1",
		ChainID:           cCtx.Int64(flags.ChainIDFlag.Name),
		VerifyingContract: ethcommon.HexToAddress(contractHex),
	}

	signer, err := proof.RecoverSigner(domain, wallet, cCtx.Uint64(nonceFlag.Name), sig)
	if err != nil {
		return err
	}

	fmt.Printf("signer: %s\n", signer.Hex())
	return nil
}
