package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/jborden/git-sentinel/internal/api"
	"github.com/jborden/git-sentinel/internal/config"
	"github.com/jborden/git-sentinel/internal/console"
	"github.com/jborden/git-sentinel/internal/controller"
	"github.com/jborden/git-sentinel/internal/gate"
	"github.com/jborden/git-sentinel/internal/metrics"
	"github.com/jborden/git-sentinel/internal/oracle"
	"github.com/jborden/git-sentinel/internal/publish"
	"github.com/jborden/git-sentinel/internal/quarantine"
	"github.com/jborden/git-sentinel/internal/signature"
	"github.com/jborden/git-sentinel/internal/store"
	"github.com/jborden/git-sentinel/internal/watch"
	"github.com/jborden/git-sentinel/internal/workflow"
)

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Local overrides, same as the rest of the env config
	_ = godotenv.Load()

	flag.Parse()
	root := "."
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		logger.Error("Invalid watch root", "root", root, "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting Sentinel",
		"watch_root", cfg.WatchRoot,
		"http_addr", cfg.HTTPAddr,
		"scan_window", cfg.ScanWindowBytes,
		"aggregate_threshold", cfg.AggregateThreshold,
		"oracle_url", cfg.OracleURL,
		"nats_url", cfg.NATSURL)

	// Signature set: built-in defaults, or a custom YAML file.
	signatures := signature.Defaults()
	if cfg.SignaturesFile != "" {
		signatures, err = signature.LoadFile(cfg.SignaturesFile)
		if err != nil {
			logger.Error("Failed to load signatures file", "file", cfg.SignaturesFile, "error", err)
			os.Exit(1)
		}
		logger.Info("Loaded custom signature set", "file", cfg.SignaturesFile, "count", len(signatures))
	}

	engine, err := signature.NewEngine(signatures, cfg.ScanWindowBytes, cfg.AggregateThreshold, logger)
	if err != nil {
		logger.Error("Failed to build signature engine", "error", err)
		os.Exit(1)
	}

	// The watcher validates the root; a missing root is configuration-fatal.
	watcher, err := watch.NewWatcher(cfg.WatchRoot, logger)
	if err != nil {
		logger.Error("Failed to start watch source", "error", err)
		os.Exit(1)
	}

	eventGate := gate.NewGate(cfg.QuarantineSuffix, cfg.ReportPrefix, cfg.AllowedExtensions, logger)
	quarantineStore := quarantine.NewStore(cfg.QuarantineSuffix, cfg.ReportPrefix, logger)

	var decider oracle.Oracle = oracle.NewStatic(logger)
	if cfg.OracleURL != "" {
		decider, err = oracle.NewHTTP(cfg.OracleURL, 60*time.Second, logger)
		if err != nil {
			logger.Error("Failed to build HTTP oracle", "error", err)
			os.Exit(1)
		}
		logger.Info("Using remote advisory oracle", "endpoint", cfg.OracleURL)
	}

	prometheusMetrics := metrics.NewMetrics()
	memoryStore := store.NewMemoryStore(1024, 4096)
	runner := workflow.NewRunner(decider, quarantineStore, prometheusMetrics, logger)

	var publisher *publish.Publisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "url", cfg.NATSURL, "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		publisher = publish.NewPublisher(nc, cfg.NATSSubjectPrefix, logger)
		logger.Info("Connected to NATS", "url", cfg.NATSURL)
	}

	cons := console.New(cfg.Quiet)

	ctrl := controller.NewController(
		eventGate,
		engine,
		runner,
		memoryStore,
		prometheusMetrics,
		publisher,
		cons,
		time.Duration(cfg.CooldownMs)*time.Millisecond,
		logger,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpAPI := api.NewHTTPAPI(memoryStore, engine.Labels(), cfg.WatchRoot)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpAPI.Router(),
	}

	go func() {
		logger.Info("Starting HTTP server", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	watcher.Start(ctx)
	go ctrl.Run(ctx, watcher.Events())

	cons.Banner(cfg.WatchRoot, engine.Labels())
	logger.Info("Sentinel started successfully")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down sentinel...")
	cancel()

	// Started remediation runs always reach Done before the process exits.
	ctrl.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	cons.Stopped()
	logger.Info("Sentinel stopped")
}
