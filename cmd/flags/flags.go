// Package flags holds the cli flags and setup helpers shared by the service
// binaries.
package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/basemint/whitelist-backend/common"
	"github.com/basemint/whitelist-backend/httpserver"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJSONFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUIDFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *httpserver.HTTPServerConfig {
	return &httpserver.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		MetricsAddr:              cCtx.String(MetricsAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for API",
	EnvVars: []string{"LISTEN_ADDR"},
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics",
	EnvVars: []string{"METRICS_ADDR"},
}
var StoreFlag = &cli.StringFlag{
	Name:    "store",
	Value:   "file://whitelist-db.json",
	Usage:   "link store URI (file:// or redis://)",
	EnvVars: []string{"WHITELIST_STORE"},
}
var SessionSecretFlag = &cli.StringFlag{
	Name:    "session-secret",
	Usage:   "secret for signing session tokens",
	EnvVars: []string{"SESSION_SECRET"},
}
var SignerKeyFlag = &cli.StringFlag{
	Name:    "signer-key",
	Usage:   "hex-encoded private key for signing mint authorizations",
	EnvVars: []string{"WHITELIST_SIGNER_KEY"},
}
var ContractFlag = &cli.StringFlag{
	Name:    "contract",
	Usage:   "NFT collection contract address (EIP-712 verifying contract)",
	EnvVars: []string{"NFT_CONTRACT_ADDRESS"},
}
var ChainIDFlag = &cli.Int64Flag{
	Name:    "chain-id",
	Value:   8453,
	Usage:   "chain id for the EIP-712 domain",
	EnvVars: []string{"CHAIN_ID"},
}
var RPCAddrFlag = &cli.StringFlag{
	Name:    "rpc-addr",
	Usage:   "chain RPC address; enables on-chain nonce cross-checks when set",
	EnvVars: []string{"RPC_ADDR"},
}
var XClientIDFlag = &cli.StringFlag{
	Name:    "x-client-id",
	Usage:   "X (Twitter) OAuth2 client id",
	EnvVars: []string{"X_CLIENT_ID"},
}
var XClientSecretFlag = &cli.StringFlag{
	Name:    "x-client-secret",
	Usage:   "X (Twitter) OAuth2 client secret",
	EnvVars: []string{"X_CLIENT_SECRET"},
}
var XBearerTokenFlag = &cli.StringFlag{
	Name:    "x-bearer-token",
	Usage:   "X (Twitter) app-only bearer token for follow lookups",
	EnvVars: []string{"X_BEARER_TOKEN"},
}
var TargetHandleFlag = &cli.StringFlag{
	Name:    "target-handle",
	Usage:   "X handle users must follow",
	EnvVars: []string{"X_TARGET_HANDLE"},
}
var FollowerPolicyFlag = &cli.StringFlag{
	Name:    "follower-policy",
	Value:   "auto",
	Usage:   "follower verification policy: 'auto' (approve everyone) or 'api' (query the X API)",
	EnvVars: []string{"FOLLOWER_POLICY"},
}
var AppURLFlag = &cli.StringFlag{
	Name:    "app-url",
	Value:   "http://localhost:3000",
	Usage:   "frontend URL OAuth callbacks redirect back to",
	EnvVars: []string{"APP_URL"},
}
var RedirectURIFlag = &cli.StringFlag{
	Name:    "redirect-uri",
	Usage:   "OAuth callback URL registered with the X app",
	EnvVars: []string{"X_REDIRECT_URI"},
}
var CookieSecureFlag = &cli.BoolFlag{
	Name:    "cookie-secure",
	Value:   false,
	Usage:   "mark session cookies Secure (requires HTTPS)",
	EnvVars: []string{"COOKIE_SECURE"},
}
var AdminTokenFlag = &cli.StringFlag{
	Name:    "admin-token",
	Usage:   "bearer token for the admin API; empty disables it",
	EnvVars: []string{"ADMIN_TOKEN"},
}

var LogJSONFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUIDFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}
var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}

var CommonFlags = []cli.Flag{
	LogJSONFlag,
	LogDebugFlag,
	LogUIDFlag,
	LogServiceFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
