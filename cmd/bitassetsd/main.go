// Command bitassetsd runs the ledger core: store, UTXO/BitAsset/AMM/Dutch
// auction state, the two-way-peg integrator, and the mempool, exporting
// Prometheus metrics. It carries no peer-to-peer networking or JSON-RPC
// transport — those are out of scope (spec.md §1).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/LayerTwo-Labs/bitassetsd/internal/config"
	"github.com/LayerTwo-Labs/bitassetsd/internal/log"
	"github.com/LayerTwo-Labs/bitassetsd/internal/mempool"
	"github.com/LayerTwo-Labs/bitassetsd/internal/metrics"
	"github.com/LayerTwo-Labs/bitassetsd/internal/peg"
	"github.com/LayerTwo-Labs/bitassetsd/internal/state"
	"github.com/LayerTwo-Labs/bitassetsd/internal/store"
	"github.com/LayerTwo-Labs/bitassetsd/internal/version"
)

func main() {
	root := newRootCommand()
	root.AddCommand(newVersionCommand())
	if err := root.Execute(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "bitassetsd: %s\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	fs := config.BuildFlagSet()
	cmd := &cobra.Command{
		Use:           version.Client,
		Short:         "Run the bitassetsd sidechain ledger core",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.BuildViper(fs, os.Args[1:])
			if err != nil {
				return fmt.Errorf("couldn't configure flags: %w", err)
			}
			if config.DisplayVersionAndExit(v) {
				fmt.Println(version.String)
				return nil
			}
			cfg, err := config.Get(v)
			if err != nil {
				return fmt.Errorf("couldn't load config: %w", err)
			}
			return run(cfg)
		},
	}
	cmd.Flags().AddFlagSet(fs)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build's version identity and exit",
		Run: func(*cobra.Command, []string) {
			fmt.Println(version.String)
		},
	}
}

func run(cfg config.Config) error {
	logger, err := log.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting bitassetsd", zap.String("version", version.String), zap.Uint32("networkID", cfg.NetworkID))

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	s, err := store.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	ledgerState, err := state.New(s, logger)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	// pegLedger shares ledgerState.Utxos and pool shares the store; the transport that would
	// feed them mainchain deposits/bundles and incoming transactions is out
	// of scope here, so they're wired up ready for an embedder to drive.
	pegLedger, err := peg.LoadLedger(ledgerState.Utxos, s)
	if err != nil {
		return fmt.Errorf("load peg ledger: %w", err)
	}
	_ = pegLedger

	pool, err := mempool.Load(s)
	if err != nil {
		return fmt.Errorf("load mempool: %w", err)
	}
	pool.SetMaxSize(cfg.MempoolMaxSize)

	reg := prometheus.NewRegistry()
	m, err := metrics.New("bitassetsd", reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if _, height, hasTip := ledgerState.Tip(); hasTip {
		m.TipHeight.Set(float64(height))
	}
	m.MempoolSize.Set(float64(pool.Len()))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		return fmt.Errorf("metrics server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod())
	defer cancel()
	return server.Shutdown(ctx)
}
