package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/basemint/whitelist-backend/chain"
	"github.com/basemint/whitelist-backend/cmd/flags"
	"github.com/basemint/whitelist-backend/httpserver"
	"github.com/basemint/whitelist-backend/interfaces"
	"github.com/basemint/whitelist-backend/proof"
	"github.com/basemint/whitelist-backend/session"
	"github.com/basemint/whitelist-backend/twitter"
	"github.com/basemint/whitelist-backend/whitelist"
)

var serverFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.StoreFlag,
	flags.SessionSecretFlag,
	flags.SignerKeyFlag,
	flags.ContractFlag,
	flags.ChainIDFlag,
	flags.RPCAddrFlag,
	flags.XClientIDFlag,
	flags.XClientSecretFlag,
	flags.XBearerTokenFlag,
	flags.TargetHandleFlag,
	flags.FollowerPolicyFlag,
	flags.AppURLFlag,
	flags.RedirectURIFlag,
	flags.CookieSecureFlag,
	flags.AdminTokenFlag,
}, flags.CommonFlags...)

func main() {
	// Local development keeps secrets in .env; missing file is fine.
	_ = godotenv.Load()

	app := &cli.App{
		Name:   "whitelist-server",
		Usage:  "Serve the NFT whitelist mint-authorization API",
		Flags:  serverFlags,
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServer(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	ctx := context.Background()

	sessions, err := session.NewCodec([]byte(cCtx.String(flags.SessionSecretFlag.Name)))
	if err != nil {
		logger.Error("Failed to create session codec", "err", err)
		return err
	}

	store, err := whitelist.StoreFor(ctx, cCtx.String(flags.StoreFlag.Name), logger)
	if err != nil {
		logger.Error("Failed to create link store", "err", err)
		return err
	}

	// The signer is optional at startup so the linking flow can run before
	// the collection contract is deployed. Proof requests fail until it is
	// configured.
	var issuer *proof.Issuer
	if signerKey := cCtx.String(flags.SignerKeyFlag.Name); signerKey != "" {
		contractHex := cCtx.String(flags.ContractFlag.Name)
		if !ethcommon.IsHexAddress(contractHex) {
			logger.Error("Invalid or missing contract address", "address", contractHex)
			return fmt.Errorf("contract flag is required with signer-key")
		}

		issuer, err = proof.NewIssuer(signerKey, proof.Domain{
			Name:              "NFTCollection",
			Version:           "1",
			ChainID:           cCtx.Int64(flags.ChainIDFlag.Name),
			VerifyingContract: ethcommon.HexToAddress(contractHex),
		})
		if err != nil {
			logger.Error("Failed to create proof issuer", "err", err)
			return err
		}
		logger.Info("Proof issuer configured", "signer", issuer.SignerAddress().Hex())
	} else {
		logger.Warn("No signer key configured, mint proof requests will fail")
	}

	xClient := twitter.NewClient(twitter.ClientConfig{
		ClientID:     cCtx.String(flags.XClientIDFlag.Name),
		ClientSecret: cCtx.String(flags.XClientSecretFlag.Name),
		BearerToken:  cCtx.String(flags.XBearerTokenFlag.Name),
	}, logger)

	var follower interfaces.FollowerVerifier
	switch policy := cCtx.String(flags.FollowerPolicyFlag.Name); policy {
	case "auto":
		logger.Info("Follower policy: auto-approve")
		follower = twitter.AutoApprove{}
	case "api":
		target := cCtx.String(flags.TargetHandleFlag.Name)
		if target == "" {
			logger.Error("target-handle is required with follower-policy=api")
			return fmt.Errorf("target-handle is required with follower-policy=api")
		}
		logger.Info("Follower policy: X API lookup", "target", target)
		follower = twitter.NewAPIVerifier(xClient, target, logger)
	default:
		logger.Error("Invalid follower-policy", "policy", policy)
		return fmt.Errorf("invalid follower-policy: %s", policy)
	}

	// On-chain nonce cross-checks are enabled only when an RPC address is
	// configured; the contract rejects stale nonces regardless.
	var nonces interfaces.NonceReader
	if rpcAddr := cCtx.String(flags.RPCAddrFlag.Name); rpcAddr != "" {
		contractHex := cCtx.String(flags.ContractFlag.Name)
		if !ethcommon.IsHexAddress(contractHex) {
			logger.Error("Invalid or missing contract address", "address", contractHex)
			return fmt.Errorf("contract flag is required with rpc-addr")
		}

		logger.Info("Connecting to chain RPC", "address", rpcAddr)
		ethClient, err := ethclient.Dial(rpcAddr)
		if err != nil {
			logger.Error("Failed to dial RPC", "err", err)
			return err
		}
		nonces, err = chain.NewNonceReader(ethClient, ethcommon.HexToAddress(contractHex))
		if err != nil {
			logger.Error("Failed to create nonce reader", "err", err)
			return err
		}
	}

	handler := httpserver.NewHandler(&httpserver.HandlerConfig{
		AppURL:       cCtx.String(flags.AppURLFlag.Name),
		RedirectURI:  cCtx.String(flags.RedirectURIFlag.Name),
		CookieSecure: cCtx.Bool(flags.CookieSecureFlag.Name),
		AdminToken:   cCtx.String(flags.AdminTokenFlag.Name),
		Sessions:     sessions,
		Store:        store,
		Issuer:       issuer,
		OAuth:        xClient,
		Follower:     follower,
		Nonces:       nonces,
		Log:          logger,
	})

	server, err := httpserver.New(flags.ConfigureServer(cCtx, logger), handler)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")

	return nil
}
