package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/compose-network/web3call/configs"
	"github.com/compose-network/web3call/internal/abisource"
	"github.com/compose-network/web3call/internal/emulator"
	"github.com/compose-network/web3call/internal/logger"
	"github.com/compose-network/web3call/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var CMD = &cobra.Command{
	Use:   "serve",
	Short: "Serve eth_call for the virtual token contracts and the NFT registry proxy",
	Long: `Serve opens the ledger, builds the call emulator and answers eth_call over
JSON-RPC until interrupted.

Examples:
  web3call serve
  web3call serve --listen-address=0.0.0.0:8545 --fixtures=./configs/fixtures.yaml
  web3call serve --data-dir="" --strict-arguments
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := configs.Values.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return Serve(ctx, configs.Values)
	},
}

// Serve runs the JSON-RPC server until ctx is cancelled.
func Serve(ctx context.Context, cfg configs.Config) error {
	log := logger.Named("serve")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	docs, err := abisource.Load(cfg.Emulator.ABIDir)
	if err != nil {
		return err
	}

	store, closeStore, err := storage.Open(ctx, cfg.Storage, cfg.Cache, registry)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.With("err", err.Error()).Error("failed to close ledger store")
		}
	}()

	emu, err := emulator.New(store, emulator.Config{
		ProxyAddress:    cfg.Emulator.ProxyAddressValue(),
		ABI:             docs,
		StrictArguments: cfg.Emulator.StrictArguments,
		PromRegistry:    registry,
	})
	if err != nil {
		return err
	}

	srv, err := New(Config{
		ListenAddress:     cfg.Server.ListenAddress,
		MetricsPath:       cfg.Server.MetricsPath,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}, emu, registry)
	if err != nil {
		return err
	}

	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
