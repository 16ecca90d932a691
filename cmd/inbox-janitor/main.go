package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/config"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/core"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/di"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/executor"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/runner"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	cfg *config.Config,
	mailbox core.Mailbox,
	batch *runner.Runner,
	exec *executor.Executor,
	classifier core.Classifier,
	cacheRepo core.CacheRepository,
) error {
	defer logger.Sync()

	gmailCfg, err := cfg.GetGmail()
	if err != nil {
		return err
	}
	execCfg, err := cfg.GetExecutor()
	if err != nil {
		return err
	}
	mode := executor.Mode(execCfg.Mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Shutting down...")
		cancel()
	}()

	logger.Info("Starting inbox janitor",
		zap.String("mode", string(mode)),
		zap.String("query", gmailCfg.Query),
		zap.Duration("poll_interval", gmailCfg.PollInterval))

	ticker := time.NewTicker(gmailCfg.PollInterval)
	defer ticker.Stop()

	for {
		sweep(ctx, logger, mailbox, batch, exec, gmailCfg.Query, int64(execCfg.MaxBatch), mode)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			// Close any resources that need closing
			if closer, ok := classifier.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					logger.Error("Failed to close classifier client", zap.Error(err))
				}
			}
			if stopper, ok := cacheRepo.(interface{ Stop() }); ok {
				stopper.Stop()
			}
			logger.Info("Shutdown complete")
			return nil
		}
	}
}

// sweep runs one classification batch and then advances any quarantines
// whose undo window has elapsed.
func sweep(
	ctx context.Context,
	logger *zap.Logger,
	mailbox core.Mailbox,
	batch *runner.Runner,
	exec *executor.Executor,
	query string,
	maxBatch int64,
	mode executor.Mode,
) {
	ids, err := mailbox.Search(ctx, query, maxBatch)
	if err != nil {
		logger.Error("Mailbox search failed", zap.Error(err))
		return
	}
	if len(ids) > 0 {
		batch.Run(ctx, ids, mode)
	}

	trashed, err := exec.Sweep(ctx)
	if err != nil && !errors.Is(err, executor.ErrBudgetExhausted) && !errors.Is(err, context.Canceled) {
		logger.Error("Quarantine sweep failed", zap.Error(err))
	}
	if trashed > 0 {
		logger.Info("Expired quarantines moved to trash", zap.Int("count", trashed))
	}
}
