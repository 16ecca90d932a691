package di

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	gmailbox "github.com/sebastian-ames3/inbox-janitor-sub002/internal/adapters/gmail"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/config"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/core"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/executor"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/factory"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/logging"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/runner"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration, validated before anything consumes it
	if err := container.Provide(func() (*config.Config, error) {
		cfg, err := config.New()
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register clock
	if err := container.Provide(func() core.Clock {
		return core.SystemClock{}
	}); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}

	// Register classifier client
	if err := container.Provide(func(f *factory.ClassifierFactory) (core.Classifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register pipeline tiers
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*core.RuleMatcher, error) {
		specs, err := cfg.GetRules()
		if err != nil {
			return nil, err
		}
		rules := make([]core.UserRule, 0, len(specs))
		for _, spec := range specs {
			rules = append(rules, core.UserRule{
				Field:    core.RuleField(spec.Field),
				Pattern:  spec.Pattern,
				Action:   core.Action(spec.Action),
				Priority: spec.Priority,
			})
		}
		if len(rules) > 0 {
			logger.Info("Loaded user rules", zap.Int("count", len(rules)))
		}
		return core.NewRuleMatcher(rules, logger), nil
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *core.SafetyEvaluator {
		return core.NewSafetyEvaluator(cfg.GetEngine().BlockedSenders, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewSignalScorer); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) *core.Arbiter {
		engine := cfg.GetEngine()
		return core.NewArbiter(engine.AutoActThreshold, engine.ReviewThreshold)
	}); err != nil {
		return nil, err
	}

	// Register pipeline service
	if err := container.Provide(func(
		rules *core.RuleMatcher,
		safety *core.SafetyEvaluator,
		signals *core.SignalScorer,
		classifier core.Classifier,
		cacheRepo core.CacheRepository,
		arbiter *core.Arbiter,
		logger *zap.Logger,
		clock core.Clock,
		cacheFactory *factory.CacheFactory,
	) (*core.EngineService, error) {
		ttl, err := cacheFactory.GetCacheTTL()
		if err != nil {
			return nil, fmt.Errorf("invalid cache TTL: %w", err)
		}
		return core.NewEngineService(
			rules, safety, signals, classifier, cacheRepo, arbiter,
			logger, clock, cacheFactory.IsCacheEnabled(), ttl,
		), nil
	}); err != nil {
		return nil, err
	}

	// Register mailbox
	if err := container.Provide(func(cfg *config.Config, clock core.Clock, text *utils.TextProcessor, logger *zap.Logger) (core.Mailbox, error) {
		gmailCfg, err := cfg.GetGmail()
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return gmailbox.NewMailbox(ctx,
			gmailCfg.CredentialsFile,
			gmailCfg.TokenFile,
			gmailCfg.User,
			cfg.GetStringSlice("gmail.contacts"),
			clock, text, logger)
	}); err != nil {
		return nil, err
	}

	// Register executor
	if err := container.Provide(func(cfg *config.Config, clock core.Clock) (*executor.RateBudget, error) {
		execCfg, err := cfg.GetExecutor()
		if err != nil {
			return nil, err
		}
		return executor.NewRateBudget(execCfg.RateBudget, execCfg.RateWindow, clock), nil
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, clock core.Clock) (*executor.QuarantineStore, error) {
		execCfg, err := cfg.GetExecutor()
		if err != nil {
			return nil, err
		}
		return executor.NewQuarantineStore(execCfg.QuarantineWindow, clock), nil
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		cfg *config.Config,
		mailbox core.Mailbox,
		engine *core.EngineService,
		budget *executor.RateBudget,
		store *executor.QuarantineStore,
		clock core.Clock,
		logger *zap.Logger,
	) (*executor.Executor, error) {
		execCfg, err := cfg.GetExecutor()
		if err != nil {
			return nil, err
		}
		return executor.New(mailbox, engine, budget, store, clock, logger, executor.Config{
			QuarantineLabel: execCfg.QuarantineLabel,
			ReviewLabel:     execCfg.ReviewLabel,
			MaxAttempts:     execCfg.MaxAttempts,
			BaseDelay:       execCfg.RetryBaseDelay,
		}), nil
	}); err != nil {
		return nil, err
	}

	// Register batch runner
	if err := container.Provide(func(
		cfg *config.Config,
		engine *core.EngineService,
		mailbox core.Mailbox,
		exec *executor.Executor,
		logger *zap.Logger,
	) (*runner.Runner, error) {
		execCfg, err := cfg.GetExecutor()
		if err != nil {
			return nil, err
		}
		return runner.New(engine, mailbox, exec, logger, execCfg.MaxBatch), nil
	}); err != nil {
		return nil, err
	}

	return container, nil
}
