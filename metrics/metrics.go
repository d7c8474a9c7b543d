package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeEmpty   = "empty"
	OutcomeInvalid = "invalid"
)

// Registry holds the service's counters. A nil *Registry is valid and records nothing.
type Registry struct {
	reg                *prometheus.Registry
	transcriptAttempts *prometheus.CounterVec
	transcriptResults  *prometheus.CounterVec
	llmCalls           *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		transcriptAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trip_transcript_attempts_total",
			Help: "Transcript strategy attempts by source.",
		}, []string{"source"}),
		transcriptResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trip_transcript_results_total",
			Help: "Transcript strategy outcomes by source.",
		}, []string{"source", "outcome"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trip_llm_calls_total",
			Help: "Language model calls by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trip_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"path", "status"}),
	}
	r.reg.MustRegister(r.transcriptAttempts, r.transcriptResults, r.llmCalls, r.httpRequests)
	return r
}

func (r *Registry) TranscriptAttempt(source string) {
	if r == nil {
		return
	}
	r.transcriptAttempts.WithLabelValues(source).Inc()
}

func (r *Registry) TranscriptResult(source, outcome string) {
	if r == nil {
		return
	}
	r.transcriptResults.WithLabelValues(source, outcome).Inc()
}

func (r *Registry) LLMCall(outcome string) {
	if r == nil {
		return
	}
	r.llmCalls.WithLabelValues(outcome).Inc()
}

func (r *Registry) HTTPRequest(path, status string) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(path, status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
