package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/core"
)

// Classifier is an implementation of the core.Classifier interface using Google Gemini
type Classifier struct {
	client       *genai.Client
	model        *genai.GenerativeModel
	modelName    string
	costPerCall  float64
	logger       *zap.Logger
	promptFormat string
}

// classifyResponse represents the structured response from the model
type classifyResponse struct {
	Action     string  `json:"action"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// NewClassifier creates a new Gemini-backed classifier
func NewClassifier(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	costPerCall float64,
	logger *zap.Logger,
) (*Classifier, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &Classifier{
		client:      client,
		model:       model,
		modelName:   modelName,
		costPerCall: costPerCall,
		logger:      logger,
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
	}, nil
}

// Close closes the Gemini client
func (c *Classifier) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Classify sends bounded email metadata to Gemini and parses the verdict.
func (c *Classifier) Classify(ctx context.Context, req core.ClassifyRequest) (*core.TierResult, error) {
	prompt := fmt.Sprintf(c.promptFormat, req.FromDomain, req.Subject, req.Snippet, req.DaysOld)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}

	parsed, err := parseVerdict(text)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Gemini classification complete",
		zap.String("model", c.modelName),
		zap.String("action", parsed.Action),
		zap.Float64("confidence", parsed.Confidence))

	return &core.TierResult{
		Action:     core.Action(parsed.Action),
		Confidence: parsed.Confidence,
		Reason:     parsed.Reason,
		Tier:       core.TierClassifier,
		CostUSD:    c.costPerCall,
	}, nil
}

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
