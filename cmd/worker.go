package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/payment-verification/internal/notifier"
	"github.com/frahmantamala/payment-verification/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start worker pools for background services",
	Long:  `Start and manage worker pools, currently the notifier bridge dispatcher.`,
}

// Notifier worker command
var notifierWorkerCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Start notifier worker pool",
	Long:  `Start the worker pool that dispatches messages to the WhatsApp bridge`,
	Run: func(cmd *cobra.Command, args []string) {
		startNotifierWorker()
	},
}

var (
	maxWorkers     int
	jobQueueSize   int
	workerPoolSize int
	bridgeURL      string
)

func startNotifierWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(config.Observability.Logging.Format, config.Observability.Logging.Level)
	appLogger := logger.LoggerWrapper()

	// Use command line flags if provided, otherwise use config values
	notifierConfig := notifier.Config{
		BridgeURL:      getStringFlag(bridgeURL, config.Notifier.BridgeURL),
		SendTimeout:    config.Notifier.SendTimeout,
		MaxWorkers:     getIntFlag(maxWorkers, config.Notifier.MaxWorkers),
		JobQueueSize:   getIntFlag(jobQueueSize, config.Notifier.JobQueueSize),
		WorkerPoolSize: getIntFlag(workerPoolSize, config.Notifier.WorkerPoolSize),
	}

	appLogger.Info("starting notifier worker",
		"max_workers", notifierConfig.MaxWorkers,
		"job_queue_size", notifierConfig.JobQueueSize,
		"worker_pool_size", notifierConfig.WorkerPoolSize,
		"bridge_url", notifierConfig.BridgeURL)

	client := notifier.NewClient(notifierConfig, nil, appLogger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	appLogger.Info("notifier worker is running. Press Ctrl+C to stop.")

	// wait for shutdown signal
	sig := <-sigChan
	appLogger.Info("received signal, shutting down notifier worker", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		client.Shutdown()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		appLogger.Info("notifier worker pool shutdown complete")
	case <-ctx.Done():
		appLogger.Warn("shutdown timeout reached, forcing exit")
	}
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	notifierWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
	notifierWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")
	notifierWorkerCmd.Flags().IntVar(&workerPoolSize, "worker-pool-size", 0, "Worker pool channel size (overrides config)")
	notifierWorkerCmd.Flags().StringVar(&bridgeURL, "bridge-url", "", "WhatsApp bridge URL (overrides config)")

	workerCmd.AddCommand(notifierWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
