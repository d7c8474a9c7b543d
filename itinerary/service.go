// Package itinerary asks a language model to turn a transcript into a
// day-by-day travel plan and checks that the answer is usable JSON.
package itinerary

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	apperrors "github.com/nijaru/yt-itinerary/errors"
	"github.com/nijaru/yt-itinerary/metrics"
	"github.com/nijaru/yt-itinerary/retry"
	"github.com/sirupsen/logrus"
)

const (
	emptyResponseError = "The AI model returned an empty response. This might be due to safety filters or overload."
	invalidJSONError   = "Failed to generate structured itinerary"
)

type Service struct {
	model    Model
	policy   retry.Policy
	maxChars int
	metrics  *metrics.Registry
	logger   *logrus.Logger
}

type ServiceOption func(*Service)

func WithPolicy(p retry.Policy) ServiceOption {
	return func(s *Service) {
		s.policy = p
	}
}

func WithMaxTranscriptChars(n int) ServiceOption {
	return func(s *Service) {
		s.maxChars = n
	}
}

func WithMetrics(m *metrics.Registry) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *logrus.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(model Model, opts ...ServiceOption) *Service {
	s := &Service{
		model:    model,
		policy:   retry.DefaultPolicy,
		maxChars: DefaultMaxTranscriptChars,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate produces an itinerary for transcript. A model that keeps failing is
// reported as an internal error; a model that answers with nothing or with
// something that is not JSON yields a Result describing the problem.
func (s *Service) Generate(ctx context.Context, transcript string) (*Result, error) {
	const op = "itinerary.Generate"

	prompt := BuildPrompt(transcript, s.maxChars)
	completion, err := retry.Do(ctx, s.policy, func(ctx context.Context) (*Completion, error) {
		c, err := s.model.Generate(ctx, prompt)
		if err != nil {
			s.metrics.LLMCall(metrics.OutcomeFailure)
			return nil, err
		}
		if c == nil {
			c = &Completion{}
		}
		return c, nil
	})
	if err != nil {
		s.logger.WithError(err).Error("Model call failed")
		return nil, apperrors.Internal(op, err, err.Error())
	}

	text := completion.Text
	if strings.TrimSpace(text) == "" {
		s.metrics.LLMCall(metrics.OutcomeEmpty)
		s.logger.WithField("diagnostic", completion.Diagnostic).Warn("Model returned an empty response")
		detail := completion.Diagnostic
		if detail == "" {
			detail = "empty response"
		}
		return &Result{Error: emptyResponseError, Detail: detail}, nil
	}

	raw, ok := asJSON(text)
	if !ok {
		s.metrics.LLMCall(metrics.OutcomeInvalid)
		s.logger.WithField("length", len(text)).Warn("Model returned invalid JSON")
		return &Result{Error: invalidJSONError, RawText: text}, nil
	}

	s.metrics.LLMCall(metrics.OutcomeSuccess)
	var plan Itinerary
	if err := json.Unmarshal(raw, &plan); err == nil {
		s.logger.WithFields(logrus.Fields{
			"trip_title": plan.TripTitle,
			"days":       len(plan.Days),
		}).Info("Itinerary parsed")
	}
	return &Result{Itinerary: raw}, nil
}

// asJSON returns text as raw JSON, unchanged when it already parses and with
// markdown fences removed otherwise.
func asJSON(text string) (json.RawMessage, bool) {
	b := bytes.TrimSpace([]byte(text))
	if json.Valid(b) {
		return json.RawMessage(b), true
	}
	b = []byte(stripFences(text))
	if len(b) > 0 && json.Valid(b) {
		return json.RawMessage(b), true
	}
	return nil, false
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
