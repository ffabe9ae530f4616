package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the task worker pool",
	Long:  `Consume send_mail and resize_image tasks from the redis queue.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startWorker()
	},
}

var maxWorkers int

func init() {
	workerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
}

func startWorker() error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	lg := newLogger(cfg)

	if cfg.Queue.Driver != "redis" {
		return fmt.Errorf("worker needs the redis queue, configured driver is %q", cfg.Queue.Driver)
	}
	if maxWorkers > 0 {
		cfg.Queue.Workers = maxWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q, err := initQueue(ctx, cfg.Queue)
	if err != nil {
		return err
	}
	defer q.Close()

	storage, _, err := initStorage(ctx, cfg.Media)
	if err != nil {
		return err
	}

	pool := newWorkerPool(q, cfg, storage, lg)
	pool.Start(ctx)

	lg.Info("task worker is running. Press Ctrl+C to stop.", "max_workers", cfg.Queue.Workers, "queue", cfg.Queue.Key)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	lg.Info("received signal, shutting down task worker", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		lg.Warn("shutdown timeout reached, forcing exit", "error", err)
	}
	return nil
}
