package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/config"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/core"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/factory"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/logging"
)

var (
	// Classifier provider flags
	provider    = flag.String("provider", "openai", "Classifier provider (openai, gemini, bedrock)")
	maxTokens   = flag.Int("max-tokens", 500, "Maximum tokens for classifier response")
	temperature = flag.Float64("temperature", 0.1, "Temperature for generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for generation")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4o-mini", "OpenAI model name")

	// Threshold flags
	autoActThreshold = flag.Float64("auto-act-threshold", 0.85, "Confidence at or above which the proposed action is used as-is")
	reviewThreshold  = flag.Float64("review-threshold", 0.55, "Confidence below which keep is forced")
	blockedSenders   = flag.String("blocked-senders", "", "Comma-separated sender block list")

	// Email metadata flags
	msgID       = flag.String("id", "cli", "Message identifier")
	from        = flag.String("from", "", "Sender address")
	subject     = flag.String("subject", "", "Subject line")
	snippet     = flag.String("snippet", "", "Snippet (truncated to 200 characters)")
	category    = flag.String("category", "", "Mailbox category (promotions, social, updates, forums, primary)")
	unsubscribe = flag.Bool("unsubscribe", false, "Message carries a bulk/unsubscribe header")
	starred     = flag.Bool("starred", false, "Message is starred")
	contact     = flag.Bool("contact", false, "Sender is a known contact")
	ageDays     = flag.Int("age-days", 0, "Days since the message was received")

	verbose = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog = flag.Bool("json-log", false, "Output logs in JSON format")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := createConfigFromFlags()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	classifier, err := factory.NewClassifierFactory(cfg, logger).CreateClassifier()
	if err != nil {
		logger.Fatal("Failed to create classifier", zap.Error(err))
	}

	var blocked []string
	if *blockedSenders != "" {
		blocked = strings.Split(*blockedSenders, ",")
	}

	engine := core.NewEngineService(
		core.NewRuleMatcher(nil, logger),
		core.NewSafetyEvaluator(blocked, logger),
		core.NewSignalScorer(),
		classifier,
		nil,
		core.NewArbiter(*autoActThreshold, *reviewThreshold),
		logger,
		core.SystemClock{},
		false, // no cache for one-shot runs
		0,
	)

	meta := core.EmailMetadata{
		ID:             *msgID,
		From:           *from,
		Subject:        *subject,
		Snippet:        *snippet,
		Category:       *category,
		HasUnsubscribe: *unsubscribe,
		IsStarred:      *starred,
		IsContact:      *contact,
		AgeDays:        *ageDays,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := engine.Classify(ctx, meta)
	if err != nil {
		logger.Fatal("Classification failed", zap.Error(err))
	}

	fmt.Printf("Action:     %s\n", result.Action)
	fmt.Printf("Confidence: %.2f\n", result.Confidence)
	fmt.Printf("Tier:       %s\n", result.Tier)
	fmt.Printf("Reason:     %s\n", result.Reason)
	if result.CostUSD > 0 {
		fmt.Printf("Cost:       $%.5f\n", result.CostUSD)
	}
}

// createConfigFromFlags builds a configuration from command-line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("classifier.provider", *provider)

	v.Set("bedrock.region", *bedrockRegion)
	v.Set("bedrock.model_id", *bedrockModelID)
	v.Set("bedrock.max_tokens", *maxTokens)
	v.Set("bedrock.temperature", *temperature)
	v.Set("bedrock.top_p", *topP)

	v.Set("gemini.api_key", *geminiAPIKey)
	v.Set("gemini.model_name", *geminiModelName)
	v.Set("gemini.max_tokens", *maxTokens)
	v.Set("gemini.temperature", *temperature)
	v.Set("gemini.top_p", *topP)

	v.Set("openai.api_key", *openaiAPIKey)
	v.Set("openai.model_name", *openaiModelName)
	v.Set("openai.max_tokens", *maxTokens)
	v.Set("openai.temperature", *temperature)
	v.Set("openai.top_p", *topP)

	v.Set("engine.auto_act_threshold", *autoActThreshold)
	v.Set("engine.review_threshold", *reviewThreshold)

	return config.NewFromViper(v)
}
