package itinerary

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-3-flash-preview"

// Completion is one model answer. Diagnostic explains an empty Text when the
// model reports why (safety block, finish reason).
type Completion struct {
	Text       string
	Diagnostic string
}

// Model turns a prompt into a JSON-mode completion.
type Model interface {
	Generate(ctx context.Context, prompt string) (*Completion, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, prompt string) (*Completion, error)

func (f ModelFunc) Generate(ctx context.Context, prompt string) (*Completion, error) {
	return f(ctx, prompt)
}

// Gemini calls the Gemini API with JSON output enabled.
type Gemini struct {
	client *genai.Client
	model  string
	logger *logrus.Logger
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}
	return &Gemini{client: client, model: model, logger: logrus.StandardLogger()}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (*Completion, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, errors.Wrapf(err, "gemini %s", g.model)
	}

	if usage := resp.UsageMetadata; usage != nil {
		g.logger.WithFields(logrus.Fields{
			"model":             g.model,
			"prompt_tokens":     usage.PromptTokenCount,
			"candidates_tokens": usage.CandidatesTokenCount,
			"total_tokens":      usage.TotalTokenCount,
		}).Info("Token usage")
	}

	completion := &Completion{Text: resp.Text()}
	if completion.Text == "" {
		completion.Diagnostic = diagnose(resp)
	}
	return completion, nil
}

func diagnose(resp *genai.GenerateContentResponse) string {
	var parts []string
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		parts = append(parts, fmt.Sprintf("prompt blocked: %s", fb.BlockReason))
		if fb.BlockReasonMessage != "" {
			parts = append(parts, fb.BlockReasonMessage)
		}
	}
	for i, c := range resp.Candidates {
		if c == nil {
			continue
		}
		if c.FinishReason != "" {
			parts = append(parts, fmt.Sprintf("candidate %d finish reason: %s", i, c.FinishReason))
		}
		if c.FinishMessage != "" {
			parts = append(parts, c.FinishMessage)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("no candidates returned (%d)", len(resp.Candidates))
	}
	return strings.Join(parts, "; ")
}
