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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tokenSync/internal/chain"
	"tokenSync/internal/config"
	"tokenSync/internal/indexer"
	"tokenSync/internal/ledger"
	"tokenSync/internal/model"
	"tokenSync/internal/storage"
	"tokenSync/internal/token"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "StarkNet NFT and multi-token transfer indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("db-driver", "sqlite", "state database (postgres, sqlite)")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN")
	root.PersistentFlags().String("sqlite-path", "./data/tokensync.sqlite", "SQLite database path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Sync transfers from the block after the cursor",
		RunE:  runIndexer,
	}

	runCmd.Flags().String("rpc", "", "StarkNet RPC URL")
	runCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	runCmd.Flags().Uint64("batch-size", 100, "blocks per batch")
	runCmd.Flags().Bool("follow", false, "keep polling for new blocks after catching up")
	runCmd.Flags().Duration("poll-interval", 5*time.Second, "head polling interval in follow mode")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("journal", "", "optional JSONL journal of applied transfers")
	addPipelineFlags(runCmd)
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(runCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode the transfers of one block without persisting them",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("rpc", "", "StarkNet RPC URL")
	decodeCmd.Flags().Uint64("block", 0, "block number to decode")
	decodeCmd.Flags().String("out", "./data/transfers.jsonl", "output decoded transfers JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	addPipelineFlags(decodeCmd)

	root.AddCommand(decodeCmd)

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		RunE:  runMigrate,
	})

	root.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Delete all ownership, balance and metadata rows",
		RunE:  runReset,
	})

	initCmd := &cobra.Command{
		Use:   "init-cursor",
		Short: "Seed the sync cursor; syncing resumes at the next block",
		RunE:  runInitCursor,
	}
	initCmd.Flags().Uint64("block", 0, "last block considered synced")
	_ = initCmd.MarkFlagRequired("block")

	root.AddCommand(initCmd)

	root.AddCommand(&cobra.Command{
		Use:   "cursor",
		Short: "Print the last synced block",
		RunE:  runCursor,
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("key-map", "", "extra event key->kind mappings (comma-separated key=value)")
	cmd.Flags().StringSlice("skip-contract", nil, "contracts never treated as transfer sources (comma-separated)")
	cmd.Flags().Bool("verify-owner", false, "reject ownership transfers whose sender is not the stored owner")
	cmd.Flags().Bool("lenient-values-length", false, "accept batch transfers whose values length differs from ids length")
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	pipeline, err := newPipeline(cfg, chainClient, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := indexer.NewMetrics(registry)
	if cfg.MetricsAddr != "" {
		server := serveMetrics(cfg.MetricsAddr, registry, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	var journal *storage.Journal
	if cfg.Journal != "" {
		journal = storage.NewJournal(cfg.Journal)
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		ToBlock:      cfg.ToBlock,
		BatchSize:    cfg.BatchSize,
		Follow:       cfg.Follow,
		PollInterval: cfg.PollInterval,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, store, pipeline, journal, metrics, logger)

	logger.Info("indexer start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("db_driver", cfg.DBDriver),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("follow", cfg.Follow),
		zap.Int("skip_contracts", len(cfg.SkipContracts)),
		zap.Bool("verify_owner", cfg.VerifyOwner),
		zap.String("journal", cfg.Journal),
	)

	err = runner.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("indexer stopped")
		return nil
	}
	return err
}

func newPipeline(cfg config.Config, source token.InterfaceSource, logger *zap.Logger) (indexer.Pipeline, error) {
	classifier, err := token.NewEventClassifier(cfg.KeyMap)
	if err != nil {
		return indexer.Pipeline{}, err
	}

	skip, err := indexer.ParseContracts(cfg.SkipContracts)
	if err != nil {
		return indexer.Pipeline{}, err
	}
	cache := token.NewNotAMatchCache()
	for _, contract := range skip {
		for _, kind := range []model.TransferKind{model.KindOwnership, model.KindBalance, model.KindBatchBalance} {
			cache.Add(kind, contract)
		}
	}

	return indexer.Pipeline{
		Classifier: classifier,
		Decoder:    token.NewTransferDecoder(token.DecoderConfig{LenientValuesLength: cfg.LenientValuesLength}),
		Contracts:  token.NewContractClassifier(source, cache, token.DefaultRequirements(), logger),
		Reconciler: ledger.NewReconciler(ledger.Policy{VerifyPreviousOwner: cfg.VerifyOwner}, logger),
	}, nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", addr))
	return server
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Migrate(ctx)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", zap.Int("count", n), zap.String("db_driver", cfg.DBDriver))
	return nil
}

func runReset(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Reset(ctx); err != nil {
		return err
	}
	logger.Info("domain rows deleted", zap.String("db_driver", cfg.DBDriver))
	return nil
}

func runInitCursor(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := indexer.NewSyncCursor(store).Seed(ctx, cfg.Block); err != nil {
		return err
	}
	logger.Info("cursor seeded", zap.Uint64("last_synced", cfg.Block), zap.Uint64("next_block", cfg.Block+1))
	return nil
}

func runCursor(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	last, err := indexer.NewSyncCursor(store).Read(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), last)
	return nil
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
