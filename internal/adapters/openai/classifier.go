package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/core"
)

// Classifier is an implementation of the core.Classifier interface using OpenAI
type Classifier struct {
	client              *openai.Client
	modelName           string
	maxTokens           int
	temperature         float32
	topP                float32
	promptCostPer1K     float64
	completionCostPer1K float64
	logger              *zap.Logger
	promptFormat        string
}

// classifyResponse represents the structured response from the model
type classifyResponse struct {
	Action     string  `json:"action"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// NewClassifier creates a new OpenAI-backed classifier
func NewClassifier(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	promptCostPer1K float64,
	completionCostPer1K float64,
	logger *zap.Logger,
) *Classifier {
	client := openai.NewClient(apiKey)

	return &Classifier{
		client:              client,
		modelName:           modelName,
		maxTokens:           maxTokens,
		temperature:         temperature,
		topP:                topP,
		promptCostPer1K:     promptCostPer1K,
		completionCostPer1K: completionCostPer1K,
		logger:              logger,
		promptFormat: `You are an email triage assistant. Based on the metadata below, decide what to do with the email.
Respond with a JSON object containing:
- action: one of "keep", "archive", "trash", "review"
- reason: string (brief explanation of the decision)
- confidence: number between 0 and 1 (how confident you are)

Never choose "trash" for anything that might be personally important.

Email metadata:
Sender domain: %s
Subject: %s
Snippet: %s
Days since received: %d

Respond only with the JSON object and nothing else.`,
	}
}

// Classify sends bounded email metadata to OpenAI and parses the verdict.
func (c *Classifier) Classify(ctx context.Context, req core.ClassifyRequest) (*core.TierResult, error) {
	prompt := fmt.Sprintf(c.promptFormat, req.FromDomain, req.Subject, req.Snippet, req.DaysOld)

	chatReq := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an email triage assistant. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}
	responseFormat := openai.ChatCompletionResponseFormat{
		Type: "json_object",
	}
	chatReq.ResponseFormat = &responseFormat

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	parsed, err := parseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	cost := float64(resp.Usage.PromptTokens)/1000*c.promptCostPer1K +
		float64(resp.Usage.CompletionTokens)/1000*c.completionCostPer1K

	c.logger.Debug("OpenAI classification complete",
		zap.String("model", c.modelName),
		zap.String("action", parsed.Action),
		zap.Float64("confidence", parsed.Confidence),
		zap.Float64("cost_usd", cost))

	return &core.TierResult{
		Action:     core.Action(parsed.Action),
		Confidence: parsed.Confidence,
		Reason:     parsed.Reason,
		Tier:       core.TierClassifier,
		CostUSD:    cost,
	}, nil
}

// parseVerdict decodes the model's JSON, salvaging the first JSON object
// when the model wraps it in prose.
func parseVerdict(text string) (*classifyResponse, error) {
	var verdict classifyResponse
	if err := json.Unmarshal([]byte(text), &verdict); err == nil {
		return &verdict, nil
	}

	start := -1
	end := -1
	for i := 0; i < len(text); i++ {
		if text[i] == '{' {
			start = i
			break
		}
	}
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] == '}' {
			end = i + 1
			break
		}
	}
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in classifier response")
	}
	if err := json.Unmarshal([]byte(text[start:end]), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse classifier response as JSON: %w", err)
	}
	return &verdict, nil
}
