package main

import (
	"context"
	"database/sql"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/urfave/cli/v2"

	"github.com/docvault/docvault/cache"
	"github.com/docvault/docvault/cmd/flags"
	"github.com/docvault/docvault/docstore"
	"github.com/docvault/docvault/document"
	"github.com/docvault/docvault/httpserver"
	"github.com/docvault/docvault/interfaces"
	"github.com/docvault/docvault/ledger"
	"github.com/docvault/docvault/storage"
)

var serverFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.RpcAddrFlag,
	flags.RegistryContractFlag,
	flags.ChainIDFlag,
	flags.PrivateKeyFlag,
	flags.StorageBackendFlag,
	flags.DatabaseDsnFlag,
	flags.MaxFileSizeFlag,
	flags.AllowedTypesFlag,
	flags.CacheTTLFlag,
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:  "docvault",
		Usage: "Serve the content-addressed document vault API",
		Flags: serverFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			ctx := context.Background()

			// Storage backends, in fallback order
			backendURIs := cCtx.StringSlice(flags.StorageBackendFlag.Name)
			if len(backendURIs) == 0 {
				backendURIs = []string{"file:///var/lib/docvault"}
			}
			locations := make([]interfaces.StorageBackendLocation, 0, len(backendURIs))
			for _, uri := range backendURIs {
				location, err := interfaces.NewStorageBackendLocation(uri)
				if err != nil {
					logger.Error("Invalid storage backend URI", "uri", uri, "err", err)
					return err
				}
				locations = append(locations, location)
			}

			factory := storage.NewStorageBackendFactory(logger)
			backends, err := factory.Backends(locations)
			if err != nil {
				logger.Error("Failed to initialize storage backends", "err", err)
				return err
			}
			logger.Info("Storage backends initialized", "count", len(backends))

			// Optional ledger registrar
			var registrar interfaces.LedgerRegistrar
			if contractAddr := cCtx.String(flags.RegistryContractFlag.Name); contractAddr != "" {
				rpcAddress := cCtx.String(flags.RpcAddrFlag.Name)
				logger.Info("Connecting to ledger RPC", "address", rpcAddress)
				ethClient, err := ethclient.Dial(rpcAddress)
				if err != nil {
					logger.Error("Failed to dial RPC", "err", err)
					return err
				}

				client, err := ledger.NewClient(ethClient, ethClient, common.HexToAddress(contractAddr))
				if err != nil {
					logger.Error("Failed to create ledger client", "err", err)
					return err
				}

				keyHex := cCtx.String(flags.PrivateKeyFlag.Name)
				if keyHex != "" {
					signer, err := ledger.NewPrivateKeySignerFromHex(keyHex)
					if err != nil {
						logger.Error("Invalid private key", "err", err)
						return err
					}
					client.SetSigner(signer, big.NewInt(cCtx.Int64(flags.ChainIDFlag.Name)))
					logger.Info("Ledger signer configured", "identity", signer.PublicIdentity().String())
				} else {
					logger.Warn("No private key configured, ledger registration will fail")
				}
				registrar = client
			} else {
				logger.Info("No registry contract configured, running without ledger")
			}

			// Durable record store
			var store docstore.Store
			if dsn := cCtx.String(flags.DatabaseDsnFlag.Name); dsn != "" {
				db, err := sql.Open("pgx", dsn)
				if err != nil {
					logger.Error("Failed to open database", "err", err)
					return err
				}
				defer db.Close()

				store, err = docstore.NewPostgresStore(ctx, db)
				if err != nil {
					logger.Error("Failed to initialize document store", "err", err)
					return err
				}
				logger.Info("Using Postgres document store")
			} else {
				store = docstore.NewMemoryStore()
				logger.Warn("Using in-memory document store, records will not survive restarts")
			}

			// Bounded TTL cache with background sweeper
			contentCache := cache.New(cache.Config{TTL: cCtx.Duration(flags.CacheTTLFlag.Name)}, logger)
			contentCache.Start()
			defer contentCache.Stop()

			service := document.NewService(backends, registrar, store, contentCache, document.Config{
				MaxFileSize:  cCtx.Int64(flags.MaxFileSizeFlag.Name),
				AllowedTypes: cCtx.StringSlice(flags.AllowedTypesFlag.Name),
				CacheTTL:     cCtx.Duration(flags.CacheTTLFlag.Name),
			}, logger)

			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flags.ListenAddrFlag.Name))
			server, err := httpserver.New(cfg, httpserver.NewHandler(service, logger))
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
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
