package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"gemcheck/internal/cache"
	"gemcheck/internal/commit"
	"gemcheck/internal/config"
	"gemcheck/internal/coordinator"
	"gemcheck/internal/index"
	"gemcheck/internal/logging"
	"gemcheck/internal/lsp"
	"gemcheck/internal/parser"
	"gemcheck/internal/telemetry"
	"gemcheck/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Speak the LSP subset in spec.md §6 over stdio",
	Long: `serve reads line-delimited JSON-RPC requests from stdin and writes
responses to stdout. It wires the edit committer and single-threaded
coordinator together, and turns on the optional persistent tree cache,
filesystem watcher, and Prometheus metrics endpoint per .gemcheck/config.json.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(repoRootFlag)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Logs go to stderr, never stdout: stdout is the JSON-RPC channel a
	// real client is reading line by line.
	logger := logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.LogLevel(cfg.Logging.Level),
		Output: os.Stderr,
	})

	var sink telemetry.Sink = telemetry.NoopSink{}
	var metricsServer *http.Server
	if cfg.Telemetry.Enabled {
		reg := prometheus.NewRegistry()
		sink = telemetry.NewPrometheusSink(reg)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.Telemetry.Addr, Handler: mux}
		go func() {
			logger.Info("telemetry endpoint listening", map[string]interface{}{"addr": cfg.Telemetry.Addr})
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("telemetry endpoint stopped", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	rubyParser := parser.New()
	logger.Info("source parser ready", map[string]interface{}{"cgo": parser.IsAvailable()})
	indexer := &index.FlattenIndexer{Parser: rubyParser}
	committer := commit.New(indexer, cfg.Workers.HashWorkers)
	committer.FastPathDisabled = cfg.FastPath.Disabled
	committer.Telemetry = sink

	coord := coordinator.New(nil, logger.With("coordinator"), coordinator.Config{QueueSize: cfg.Workers.QueueSize})
	coord.Start()
	defer coord.Stop()

	if cfg.Cache.Enabled {
		treeCache, err := cache.OpenBoltTreeCache(cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("failed to open tree cache: %w", err)
		}
		defer treeCache.Close()
		logger.Info("tree cache opened", map[string]interface{}{"path": cfg.Cache.Path})
	}

	if cfg.Watch.Enabled {
		watchConfig := watch.DefaultConfig()
		watchConfig.DebounceDelay = time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
		watchConfig.IgnorePatterns = cfg.Watch.IgnorePatterns

		watcher, err := watch.NewFSNotifyWatcher(watchConfig, logger.With("watch"), func(events []watch.Event) {
			logger.Debug("filesystem batch observed", map[string]interface{}{"count": len(events)})
		})
		if err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		if err := watcher.Watch([]string{cfg.RepoRoot}); err != nil {
			return fmt.Errorf("failed to watch repo root: %w", err)
		}
		defer watcher.Close()
	}

	transport := lsp.NewTransport(os.Stdin, os.Stdout)
	server := lsp.New(transport, coord, committer, logger.With("lsp"))
	server.Telemetry = sink

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("gemcheckd serving over stdio", nil)
		serverErr <- server.Serve(ctx)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server stopped with error", map[string]interface{}{"error": err.Error()})
			return err
		}
	case sig := <-shutdown:
		logger.Info("received shutdown signal", map[string]interface{}{"signal": sig.String()})
		cancel()
		<-serverErr
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down telemetry endpoint", map[string]interface{}{"error": err.Error()})
		}
	}

	logger.Info("gemcheckd stopped", nil)
	return nil
}
