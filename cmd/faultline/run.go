package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"faultline-hq/faultline/pkg/config"
	"faultline-hq/faultline/pkg/history"
	"faultline-hq/faultline/pkg/inject"
	"faultline-hq/faultline/pkg/plan"
	"faultline-hq/faultline/pkg/server"
	"faultline-hq/faultline/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	planPath      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the faultline admin server",
	Long: `Start the faultline admin server with the specified configuration.

The server loads the fault plan (if configured), watches it for changes,
and serves the admin API for registering faults and releasing blocked
calls.

Examples:
  # Start with default config
  faultline run

  # Start with custom config
  faultline run --config /etc/faultline/config.yaml

  # Override the fault plan
  faultline run --plan faults.yaml

  # Validate config without starting the server
  faultline run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.planPath, "plan", "", "override fault plan path")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.planPath != "" {
		cfg.Injection.PlanPath = runFlags.planPath
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Setup(logging.Config{
		Level:  cfg.Telemetry.Logging.Level,
		Format: cfg.Telemetry.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	logger.Info("starting faultline",
		"version", Version,
		"config", cfgFile,
		"injection_enabled", cfg.Injection.Enabled,
	)

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Event history
	var (
		store    history.Store
		recorder *history.Recorder
		pruner   *history.Pruner
	)
	if cfg.History.Enabled {
		switch cfg.History.Backend {
		case "sqlite":
			store, err = history.NewSQLiteStoreWithConfig(history.SQLiteStoreConfig{
				DBPath: cfg.History.SQLitePath,
			})
			if err != nil {
				return fmt.Errorf("failed to open event store: %w", err)
			}
		default:
			store = history.NewMemoryStoreWithConfig(history.MemoryStoreConfig{
				MaxEntries: cfg.History.MaxEntries,
			})
		}
		defer store.Close()

		recorder = history.NewRecorder(store, &history.RecorderConfig{
			BufferSize: cfg.History.BufferSize,
		})
		defer recorder.Close()

		pruner = history.NewPruner(store, &history.RetentionConfig{
			RetentionDays: cfg.History.Retention.Days,
			PruneSchedule: cfg.History.Retention.Schedule,
		})

		ctx := context.Background()
		if err := pruner.Start(ctx); err != nil {
			logger.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer pruner.Stop()
		}

		fmt.Printf("✓ Event history initialized (%s backend)\n", cfg.History.Backend)
	}

	// Fault injector
	injectOpts := []inject.Option{
		inject.WithMetrics(inject.NewMetrics(registry)),
	}
	if recorder != nil {
		injectOpts = append(injectOpts, inject.WithEventSink(recorder))
	}
	injector := inject.New(cfg.Injection.Enabled, injectOpts...)
	defer injector.Close()

	// Fault plan
	if cfg.Injection.PlanPath != "" && cfg.Injection.Enabled {
		applier := plan.NewApplier(injector)

		p, err := plan.Load(cfg.Injection.PlanPath)
		if err != nil {
			return fmt.Errorf("failed to load fault plan: %w", err)
		}
		if err := applier.Apply(p); err != nil {
			return fmt.Errorf("failed to apply fault plan: %w", err)
		}

		fmt.Printf("✓ Fault plan applied (%d faults)\n", len(p.Faults))

		if cfg.Injection.Watch {
			watcher, err := plan.NewWatcher(&plan.WatcherConfig{
				Path:             cfg.Injection.PlanPath,
				DebounceInterval: cfg.Injection.WatchDebounce,
			}, logger.With("component", "plan.watcher"))
			if err != nil {
				return fmt.Errorf("failed to create plan watcher: %w", err)
			}
			defer watcher.Stop()

			watchCtx, watchCancel := context.WithCancel(context.Background())
			defer watchCancel()

			go func() {
				err := watcher.Watch(watchCtx, func() error {
					p, err := plan.Load(cfg.Injection.PlanPath)
					if err != nil {
						return err
					}
					return applier.Apply(p)
				})
				if err != nil {
					logger.Error("plan watcher exited", "error", err)
				}
			}()

			fmt.Println("✓ Fault plan watcher started")
		}
	}

	// Admin server
	srv := server.NewServer(&cfg.Server, injector, server.Options{
		Store:    store,
		Gatherer: registry,
		Metrics:  &cfg.Telemetry.Metrics,
	})

	fmt.Printf("✓ Admin server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until a signal or shutdown.
	if err := srv.Start(context.Background()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}
