// Package flags holds the CLI flags and wiring helpers shared by the
// docvault binaries.
package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/docvault/docvault/common"
	"github.com/docvault/docvault/httpserver"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

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

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *httpserver.HTTPServerConfig {
	metricsAddr := cCtx.String("metrics-addr")
	enablePprof := cCtx.Bool("pprof")
	drainDuration := time.Duration(cCtx.Int64("drain-seconds")) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var RpcAddrFlag = &cli.StringFlag{
	Name:  "rpc-addr",
	Value: "http://127.0.0.1:8545",
	Usage: "address to connect to ledger RPC",
}

var RegistryContractFlag = &cli.StringFlag{
	Name:  "registry-contract",
	Usage: "document registry contract address. Empty disables ledger registration",
}

var ChainIDFlag = &cli.Int64Flag{
	Name:  "chain-id",
	Value: 1,
	Usage: "chain id used for transaction signing",
}

var PrivateKeyFlag = &cli.StringFlag{
	Name:    "private-key",
	Usage:   "hex-encoded private key used to sign ledger transactions",
	EnvVars: []string{"DOCVAULT_PRIVATE_KEY"},
}

var StorageBackendFlag = &cli.StringSliceFlag{
	Name:  "storage-backend",
	Usage: "storage backend URI in fallback order, repeatable (file://, ipfs://, s3://, vault://)",
}

var DatabaseDsnFlag = &cli.StringFlag{
	Name:    "database-dsn",
	Usage:   "Postgres DSN for the document record store. Empty uses the in-memory store",
	EnvVars: []string{"DOCVAULT_DATABASE_DSN"},
}

var MaxFileSizeFlag = &cli.Int64Flag{
	Name:  "max-file-size",
	Value: 10 << 20,
	Usage: "maximum accepted content size in bytes",
}

var AllowedTypesFlag = &cli.StringSliceFlag{
	Name:  "allowed-type",
	Usage: "accepted file type, repeatable. Empty uses the built-in allowlist",
}

var CacheTTLFlag = &cli.DurationFlag{
	Name:  "cache-ttl",
	Value: 15 * time.Minute,
	Usage: "TTL for cached records and content",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
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
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
