package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"costmanager/internal/amqp"
	"costmanager/internal/config"
	"costmanager/internal/log"
	"costmanager/internal/worker"

	"golang.org/x/sync/errgroup"
)

// RunLogWorker is the whole main of the log worker: it consumes request-log
// messages and stores them in the configured backend.
func RunLogWorker() {
	LoadEnvFile()
	cfg, logger := LoadAndValidateConfig("worker", "3005")
	logger = logger.WithComponent(log.ComponentWorker)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the log worker")
		os.Exit(1)
	}

	ctx, cancel := SignalContext()
	defer cancel()

	logger.Info("Starting log-worker", log.FieldBackend, cfg.DataBackend, "queue", cfg.AMQPQueue)
	if err := runLogWorker(ctx, logger, cfg); err != nil {
		logger.Error("Log worker failed", log.FieldError, err.Error())
		cancel()
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func runLogWorker(ctx context.Context, logger *log.Logger, cfg *config.Config) error {
	res, err := OpenBackend(ctx, logger, cfg)
	if err != nil {
		return err
	}
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", log.FieldError, err.Error())
			}
		}()
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer client.Close()

	w := worker.NewLogWorker(res.Backend, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.ConsumeRequestLogs(ctx, w.HandleRequestLog)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return g.Wait()
}
