package main

import (
    "context"
    "fmt"
    "os"
    "os/signal"
    "syscall"

    "github.com/spf13/cobra"

    "github.com/hamzaKhattat/cdr-reconciler/internal/config"
    "github.com/hamzaKhattat/cdr-reconciler/internal/health"
    "github.com/hamzaKhattat/cdr-reconciler/internal/joblock"
    "github.com/hamzaKhattat/cdr-reconciler/internal/metrics"
    "github.com/hamzaKhattat/cdr-reconciler/pkg/logger"
)

var (
    configFile string
    verbose    bool

    // Global services shared with commands.go, mirroring the
    // teacher's cmd/router split between main.go and commands.go.
    cfg        *config.Config
    locker     *joblock.Locker
    healthSvc  *health.HealthService
    metricsSvc *metrics.PrometheusMetrics
)

func main() {
    rootCmd := &cobra.Command{
        Use:   "reconciler",
        Short: "CDR reconciliation engine",
        Long:  "Reconciles two independently produced CDR exports and reports discrepancies",
        PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
            return initialize()
        },
    }

    rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
    rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

    rootCmd.AddCommand(
        createReconcileCommand(),
        createServeCommand(),
    )

    if err := rootCmd.Execute(); err != nil {
        fmt.Fprintf(os.Stderr, "Error: %v\n", err)
        os.Exit(1)
    }
}

func initialize() error {
    loaded, err := config.Load(configFile)
    if err != nil {
        return fmt.Errorf("failed to load config: %w", err)
    }
    cfg = loaded

    logConfig := logger.Config{
        Level:  cfg.Monitoring.Logging.Level,
        Format: cfg.Monitoring.Logging.Format,
        Output: cfg.Monitoring.Logging.Output,
        File: logger.FileConfig{
            Enabled:    cfg.Monitoring.Logging.File.Enabled,
            Path:       cfg.Monitoring.Logging.File.Path,
            MaxSize:    cfg.Monitoring.Logging.File.MaxSize,
            MaxBackups: cfg.Monitoring.Logging.File.MaxBackups,
            MaxAge:     cfg.Monitoring.Logging.File.MaxAge,
            Compress:   cfg.Monitoring.Logging.File.Compress,
        },
    }
    if verbose {
        logConfig.Level = "debug"
    }
    if err := logger.Init(logConfig); err != nil {
        return fmt.Errorf("failed to initialize logger: %w", err)
    }

    lockAddr := ""
    if cfg.Lock.Enabled {
        lockAddr = cfg.Lock.GetLockAddr()
    }
    locker = joblock.New(lockAddr, cfg.Lock.Password, cfg.Lock.DB)

    if cfg.Monitoring.Metrics.Enabled {
        metricsSvc = metrics.NewPrometheusMetrics()
    }

    return nil
}

func runDaemon(ctx context.Context) {
    if cfg.Monitoring.Metrics.Enabled {
        go func() {
            if err := metricsSvc.ServeHTTP(cfg.Monitoring.Metrics.Port); err != nil {
                logger.WithError(err).Error("metrics server failed")
            }
        }()
    }

    if cfg.Monitoring.Health.Enabled {
        healthSvc = health.NewHealthService(cfg.Monitoring.Health.Port)
        healthSvc.RegisterLivenessCheck("sqlite_driver", health.CheckFunc(checkSQLiteDriver))
        healthSvc.RegisterReadinessCheck("scratch_dir", health.CheckFunc(checkScratchDirWritable))
        if cfg.Lock.Enabled {
            healthSvc.RegisterReadinessCheck("job_lock", health.CheckFunc(locker.Ping))
        }
        go func() {
            if err := healthSvc.Start(); err != nil {
                logger.WithError(err).Error("health server failed")
            }
        }()
    }

    sigChan := make(chan os.Signal, 1)
    signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
    <-sigChan

    logger.Info("shutting down")
    if healthSvc != nil {
        healthSvc.Stop()
    }
}
