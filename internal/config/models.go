package config

import (
	"fmt"
	"time"
)

// ClassifierConfig represents the configuration for the classifier provider
type ClassifierConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	CostPerCall float64
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	CostPerCall float64
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey              string
	ModelName           string
	MaxTokens           int
	Temperature         float32
	TopP                float32
	PromptCostPer1K     float64
	CompletionCostPer1K float64
}

// EngineConfig represents the pipeline thresholds and block list
type EngineConfig struct {
	AutoActThreshold float64
	ReviewThreshold  float64
	BlockedSenders   []string
}

// RuleSpec is one user rule as it appears in the config file
type RuleSpec struct {
	Field    string `mapstructure:"field"`
	Pattern  string `mapstructure:"pattern"`
	Action   string `mapstructure:"action"`
	Priority int    `mapstructure:"priority"`
}

// ExecutorConfig represents the action executor tunables
type ExecutorConfig struct {
	Mode             string
	QuarantineWindow time.Duration
	QuarantineLabel  string
	ReviewLabel      string
	MaxBatch         int
	RateWindow       time.Duration
	RateBudget       int
	MaxAttempts      int
	RetryBaseDelay   time.Duration
}

// GmailConfig represents the mailbox adapter settings
type GmailConfig struct {
	User            string
	CredentialsFile string
	TokenFile       string
	Query           string
	PollInterval    time.Duration
}

// GetClassifier returns the classifier configuration
func (c *Config) GetClassifier() ClassifierConfig {
	return ClassifierConfig{
		Provider: c.GetString("classifier.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		CostPerCall: c.GetFloat64("bedrock.cost_per_call"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		CostPerCall: c.GetFloat64("gemini.cost_per_call"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:              c.GetString("openai.api_key"),
		ModelName:           c.GetString("openai.model_name"),
		MaxTokens:           c.GetInt("openai.max_tokens"),
		Temperature:         float32(c.GetFloat64("openai.temperature")),
		TopP:                float32(c.GetFloat64("openai.top_p")),
		PromptCostPer1K:     c.GetFloat64("openai.prompt_cost_per_1k"),
		CompletionCostPer1K: c.GetFloat64("openai.completion_cost_per_1k"),
	}
}

// GetEngine returns the pipeline configuration
func (c *Config) GetEngine() EngineConfig {
	return EngineConfig{
		AutoActThreshold: c.GetFloat64("engine.auto_act_threshold"),
		ReviewThreshold:  c.GetFloat64("engine.review_threshold"),
		BlockedSenders:   c.GetStringSlice("engine.blocked_senders"),
	}
}

// GetRules returns the user rules in file order
func (c *Config) GetRules() ([]RuleSpec, error) {
	var rules []RuleSpec
	if err := c.v.UnmarshalKey("engine.rules", &rules); err != nil {
		return nil, fmt.Errorf("invalid engine.rules: %w", err)
	}
	return rules, nil
}

// GetExecutor returns the executor configuration
func (c *Config) GetExecutor() (ExecutorConfig, error) {
	quarantineWindow, err := c.GetDuration("executor.quarantine_window")
	if err != nil {
		return ExecutorConfig{}, fmt.Errorf("invalid executor.quarantine_window: %w", err)
	}
	rateWindow, err := c.GetDuration("executor.rate_window")
	if err != nil {
		return ExecutorConfig{}, fmt.Errorf("invalid executor.rate_window: %w", err)
	}
	baseDelay, err := c.GetDuration("executor.retry_base_delay")
	if err != nil {
		return ExecutorConfig{}, fmt.Errorf("invalid executor.retry_base_delay: %w", err)
	}
	return ExecutorConfig{
		Mode:             c.GetString("executor.mode"),
		QuarantineWindow: quarantineWindow,
		QuarantineLabel:  c.GetString("executor.quarantine_label"),
		ReviewLabel:      c.GetString("executor.review_label"),
		MaxBatch:         c.GetInt("executor.max_batch"),
		RateWindow:       rateWindow,
		RateBudget:       c.GetInt("executor.rate_budget"),
		MaxAttempts:      c.GetInt("executor.max_attempts"),
		RetryBaseDelay:   baseDelay,
	}, nil
}

// GetGmail returns the mailbox adapter configuration
func (c *Config) GetGmail() (GmailConfig, error) {
	pollInterval, err := c.GetDuration("gmail.poll_interval")
	if err != nil {
		return GmailConfig{}, fmt.Errorf("invalid gmail.poll_interval: %w", err)
	}
	return GmailConfig{
		User:            c.GetString("gmail.user"),
		CredentialsFile: c.GetString("gmail.credentials_file"),
		TokenFile:       c.GetString("gmail.token_file"),
		Query:           c.GetString("gmail.query"),
		PollInterval:    pollInterval,
	}, nil
}

// Validate rejects configurations the engine must not start with. Called
// once at startup; threshold and window errors are fatal there rather
// than per-message.
func (c *Config) Validate() error {
	engine := c.GetEngine()
	if engine.AutoActThreshold < 0 || engine.AutoActThreshold > 1 {
		return fmt.Errorf("engine.auto_act_threshold %.2f outside [0,1]", engine.AutoActThreshold)
	}
	if engine.ReviewThreshold < 0 || engine.ReviewThreshold > 1 {
		return fmt.Errorf("engine.review_threshold %.2f outside [0,1]", engine.ReviewThreshold)
	}
	if engine.ReviewThreshold >= engine.AutoActThreshold {
		return fmt.Errorf("engine.review_threshold %.2f must be below engine.auto_act_threshold %.2f",
			engine.ReviewThreshold, engine.AutoActThreshold)
	}

	exec, err := c.GetExecutor()
	if err != nil {
		return err
	}
	if exec.Mode != "safe" && exec.Mode != "live" {
		return fmt.Errorf("executor.mode must be safe or live, got %q", exec.Mode)
	}
	if exec.QuarantineWindow <= 0 {
		return fmt.Errorf("executor.quarantine_window must be positive")
	}
	if exec.RateWindow <= 0 || exec.RateBudget <= 0 {
		return fmt.Errorf("executor rate limit requires a positive window and budget")
	}
	if exec.MaxBatch <= 0 {
		return fmt.Errorf("executor.max_batch must be positive")
	}
	if exec.MaxAttempts <= 0 {
		return fmt.Errorf("executor.max_attempts must be positive")
	}

	if _, err := c.GetDuration("cache.ttl"); err != nil {
		return fmt.Errorf("invalid cache.ttl: %w", err)
	}
	if _, err := c.GetGmail(); err != nil {
		return err
	}
	return nil
}
