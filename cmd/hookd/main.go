package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"driftfee/internal/api"
	"driftfee/internal/chain"
	"driftfee/internal/config"
	"driftfee/internal/fee"
	"driftfee/internal/hook"
	"driftfee/internal/storage"
	"driftfee/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "hookd",
		Short:        "Divergence-priced dynamic fee hook daemon",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the hook API",
		RunE:  runServe,
	}

	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("rpc", "", "chain RPC URL (optional; admin-only mode without it)")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN (optional; in-memory state without it)")
	serveCmd.Flags().String("journal", "./data/audit.jsonl", "audit journal JSONL path")
	serveCmd.Flags().String("admin", "", "genesis admin identity (hex address)")
	serveCmd.Flags().Uint32("base-fee", 3000, "global base fee in pips")
	serveCmd.Flags().Uint32("multiplier", 0, "fee sensitivity multiplier in pips")
	serveCmd.Flags().Int("max-retries", 5, "maximum RPC retry attempts")
	serveCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial RPC retry backoff")
	serveCmd.Flags().Duration("stale-after", time.Hour, "age past which reference quotes are logged as stale")
	serveCmd.Flags().StringSlice("cors-origin", nil, "allowed CORS origins (comma-separated)")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := hook.Deps{
		Engine:  fee.NewEngine(logger),
		Journal: storage.NewJsonlJournal(cfg.JournalPath),
		Logger:  logger,
	}

	var feeReader api.FeeReader

	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		chainID, err := chainClient.GetChainID(ctx)
		if err != nil {
			return fmt.Errorf("read chain id: %w", err)
		}
		head, err := chainClient.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("read latest block: %w", err)
		}
		logger.Info("chain connected",
			zap.String("chain_id", chainID.String()),
			zap.Uint64("head", head),
		)

		ledger := chain.NewLedger(chainClient, chain.LedgerConfig{
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		}, logger)
		deps.Ledger = ledger
		deps.Registrar = ledger
		feeReader = ledger
		deps.Oracle = chain.NewOracle(chainClient, chain.OracleConfig{
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			StaleAfter:   cfg.StaleAfter,
		}, logger)
		deps.Tokens = chain.NewTokenMetaCache(chainClient)
	}

	if cfg.PgDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		deps.Store = store
	}

	facade := hook.NewFacade(deps)
	if err := facade.Restore(ctx); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}

	if facade.Gate().Admin() == (common.Address{}) {
		if !common.IsHexAddress(cfg.Admin) {
			return fmt.Errorf("genesis admin identity is required on first run")
		}
		if err := facade.InitAdmin(ctx, common.HexToAddress(cfg.Admin)); err != nil {
			return err
		}
		if err := facade.SetBaseFee(ctx, common.HexToAddress(cfg.Admin), cfg.BaseFee); err != nil {
			return err
		}
		if err := facade.SetMultiplier(ctx, common.HexToAddress(cfg.Admin), cfg.Multiplier); err != nil {
			return err
		}
	}

	server := api.NewServer(facade, feeReader, logger)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(cfg.CORSOrigins),
	}

	logger.Info("hookd start",
		zap.String("listen", cfg.ListenAddr),
		zap.Bool("chain", cfg.RPCURL != ""),
		zap.Bool("postgres", cfg.PgDSN != ""),
		zap.String("journal", cfg.JournalPath),
		zap.String("admin", facade.Gate().Admin().Hex()),
		zap.Uint32("base_fee", facade.Config().BaseFee),
		zap.Uint32("multiplier", facade.Config().Multiplier),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
