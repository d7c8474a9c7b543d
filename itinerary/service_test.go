package itinerary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nijaru/yt-itinerary/errors"
	"github.com/nijaru/yt-itinerary/metrics"
	"github.com/nijaru/yt-itinerary/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = retry.Policy{
	MaxAttempts:     3,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
	Multiplier:      2,
}

func staticModel(text string) (Model, *atomic.Int32) {
	var calls atomic.Int32
	return ModelFunc(func(ctx context.Context, prompt string) (*Completion, error) {
		calls.Add(1)
		return &Completion{Text: text}, nil
	}), &calls
}

func TestGenerate_PassesJSONThrough(t *testing.T) {
	const body = `{"trip_title": "Hello world",  "summary":"s","days":[]}`
	model, calls := staticModel(body)

	res, err := NewService(model, WithPolicy(fastPolicy)).Generate(context.Background(), "Hello world")

	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, body, string(res.Itinerary))
	assert.EqualValues(t, 1, calls.Load())
}

func TestGenerate_PromptCarriesTranscript(t *testing.T) {
	var got string
	model := ModelFunc(func(ctx context.Context, prompt string) (*Completion, error) {
		got = prompt
		return &Completion{Text: `{}`}, nil
	})

	_, err := NewService(model, WithMaxTranscriptChars(5)).Generate(context.Background(), "Visit Kyoto")

	require.NoError(t, err)
	assert.Contains(t, got, "Transcript: Visit\n")
	assert.NotContains(t, got, "Kyoto")
}

func TestGenerate_StripsFences(t *testing.T) {
	model, _ := staticModel("```json\n{\"trip_title\":\"Rome\"}\n```")

	res, err := NewService(model).Generate(context.Background(), "x")

	require.NoError(t, err)
	assert.JSONEq(t, `{"trip_title":"Rome"}`, string(res.Itinerary))
}

func TestGenerate_EmptyResponse(t *testing.T) {
	model := ModelFunc(func(ctx context.Context, prompt string) (*Completion, error) {
		return &Completion{Text: "  ", Diagnostic: "candidate 0 finish reason: SAFETY"}, nil
	})
	reg := metrics.New()

	res, err := NewService(model, WithMetrics(reg)).Generate(context.Background(), "x")

	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, emptyResponseError, res.Error)
	assert.Equal(t, "candidate 0 finish reason: SAFETY", res.Detail)
	assert.Empty(t, res.RawText)
	assert.Contains(t, scrape(t, reg), `trip_llm_calls_total{outcome="empty"} 1`)
}

func TestGenerate_InvalidJSON(t *testing.T) {
	model, _ := staticModel("Day 1: see the Louvre")

	res, err := NewService(model).Generate(context.Background(), "x")

	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, invalidJSONError, res.Error)
	assert.Equal(t, "Day 1: see the Louvre", res.RawText)
}

func TestGenerate_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	model := ModelFunc(func(ctx context.Context, prompt string) (*Completion, error) {
		if calls.Add(1) < 3 {
			return nil, assert.AnError
		}
		return &Completion{Text: `{"trip_title":"Lisbon"}`}, nil
	})

	res, err := NewService(model, WithPolicy(fastPolicy)).Generate(context.Background(), "x")

	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.EqualValues(t, 3, calls.Load())
}

func TestGenerate_FailsAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	model := ModelFunc(func(ctx context.Context, prompt string) (*Completion, error) {
		calls.Add(1)
		return nil, assert.AnError
	})
	reg := metrics.New()

	res, err := NewService(model, WithPolicy(fastPolicy), WithMetrics(reg)).Generate(context.Background(), "x")

	require.Error(t, err)
	assert.Nil(t, res)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, http.StatusInternalServerError, errors.StatusCode(err))
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, assert.AnError.Error(), appErr.Message)

	scraped := scrape(t, reg)
	assert.Contains(t, scraped, `trip_llm_calls_total{outcome="failure"} 3`)
}

func TestGenerate_NilCompletionIsEmpty(t *testing.T) {
	model := ModelFunc(func(ctx context.Context, prompt string) (*Completion, error) {
		return nil, nil
	})

	res, err := NewService(model).Generate(context.Background(), "x")

	require.NoError(t, err)
	assert.Equal(t, emptyResponseError, res.Error)
	assert.Equal(t, "empty response", res.Detail)
}

func TestAsJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"object", `{"a":1}`, `{"a":1}`, true},
		{"surrounding space", "\n {\"a\":1} \n", `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`, true},
		{"prose", "hello", "", false},
		{"truncated", `{"a":`, "", false},
		{"fence only", "``````", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := asJSON(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func scrape(t *testing.T, reg *metrics.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rr.Body.String()
}

func TestItineraryDecodesModelShape(t *testing.T) {
	raw := `{"trip_title":"Kyoto","summary":"Temples","days":[{"day_number":1,"theme":"East","image_query":"Kiyomizu-dera","activities":[{"time":"Morning","activity":"Walk","description":"Higashiyama"}]}]}`
	model, _ := staticModel(raw)

	res, err := NewService(model).Generate(context.Background(), "x")
	require.NoError(t, err)

	var plan Itinerary
	require.NoError(t, json.Unmarshal(res.Itinerary, &plan))
	assert.Equal(t, "Kyoto", plan.TripTitle)
	require.Len(t, plan.Days, 1)
	assert.Equal(t, 1, plan.Days[0].DayNumber)
	assert.Equal(t, "Walk", plan.Days[0].Activities[0].Activity)
}
