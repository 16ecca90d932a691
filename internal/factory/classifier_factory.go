package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/adapters/bedrock"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/adapters/gemini"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/adapters/openai"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/config"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/core"
)

// ClassifierFactory creates Tier 2 classifier clients
type ClassifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger) *ClassifierFactory {
	return &ClassifierFactory{cfg: cfg, logger: logger}
}

// CreateClassifier creates a classifier based on the configured provider
func (f *ClassifierFactory) CreateClassifier() (core.Classifier, error) {
	switch f.cfg.GetClassifier().Provider {
	case "openai":
		openaiCfg := f.cfg.GetOpenAI()
		return openai.NewClassifier(
			openaiCfg.APIKey,
			openaiCfg.ModelName,
			openaiCfg.MaxTokens,
			openaiCfg.Temperature,
			openaiCfg.TopP,
			openaiCfg.PromptCostPer1K,
			openaiCfg.CompletionCostPer1K,
			f.logger,
		), nil
	case "gemini":
		geminiCfg := f.cfg.GetGemini()
		return gemini.NewClassifier(
			geminiCfg.APIKey,
			geminiCfg.ModelName,
			geminiCfg.MaxTokens,
			geminiCfg.Temperature,
			geminiCfg.TopP,
			geminiCfg.CostPerCall,
			f.logger,
		)
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger).CreateClassifier()
	default:
		return nil, fmt.Errorf("unsupported classifier provider: %s", f.cfg.GetClassifier().Provider)
	}
}
