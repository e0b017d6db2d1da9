package observability

import (
	"context"
	"strconv"
	"time"

	promreg "github.com/prometheus/client_golang/prometheus"

	"github.com/ncecere/readaloud/internal/models"
)

const namespace = "readaloud"

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

type collectors struct {
	httpRequests  *promreg.CounterVec
	httpLatency   *promreg.HistogramVec
	stages        *promreg.CounterVec
	collaborators *promreg.HistogramVec
	artifactBytes *promreg.CounterVec
	tokens        *promreg.CounterVec
}

func newCollectors(registry promreg.Registerer) (*collectors, error) {
	c := &collectors{
		httpRequests: promreg.NewCounterVec(promreg.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed.",
		}, []string{"method", "route", "status"}),
		httpLatency: promreg.NewHistogramVec(promreg.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   latencyBuckets,
		}, []string{"method", "route", "status"}),
		stages: promreg.NewCounterVec(promreg.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_total",
			Help:      "Pipeline stage executions by outcome.",
		}, []string{"stage", "outcome"}),
		collaborators: promreg.NewHistogramVec(promreg.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_duration_seconds",
			Help:      "Latency of vision, translation and speech calls.",
			Buckets:   latencyBuckets,
		}, []string{"collaborator", "outcome"}),
		artifactBytes: promreg.NewCounterVec(promreg.CounterOpts{
			Namespace: namespace,
			Name:      "audio_artifact_bytes_total",
			Help:      "Bytes of synthesized audio written to storage.",
		}, []string{"kind"}),
		tokens: promreg.NewCounterVec(promreg.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_tokens_total",
			Help:      "Model tokens consumed by chat collaborators.",
		}, []string{"collaborator", "direction"}),
	}
	for _, collector := range []promreg.Collector{c.httpRequests, c.httpLatency, c.stages, c.collaborators, c.artifactBytes, c.tokens} {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (p *Provider) RecordHTTPRequest(_ context.Context, method, route string, status int, duration time.Duration) {
	if p == nil || p.metrics == nil {
		return
	}
	statusLabel := strconv.Itoa(status)
	p.metrics.httpRequests.WithLabelValues(method, route, statusLabel).Inc()
	p.metrics.httpLatency.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
}

// RecordStage counts one pipeline stage run, e.g. ("translate", "failed").
func (p *Provider) RecordStage(stage, outcome string) {
	if p == nil || p.metrics == nil {
		return
	}
	p.metrics.stages.WithLabelValues(stage, outcome).Inc()
}

func (p *Provider) ObserveCollaborator(collaborator, outcome string, elapsed time.Duration) {
	if p == nil || p.metrics == nil {
		return
	}
	p.metrics.collaborators.WithLabelValues(collaborator, outcome).Observe(elapsed.Seconds())
}

func (p *Provider) RecordArtifact(kind string, size int64) {
	if p == nil || p.metrics == nil || size <= 0 {
		return
	}
	p.metrics.artifactBytes.WithLabelValues(kind).Add(float64(size))
}

// RecordTokens adds prompt and completion token counts for one chat call.
func (p *Provider) RecordTokens(collaborator string, usage models.Usage) {
	if p == nil || p.metrics == nil {
		return
	}
	if usage.PromptTokens > 0 {
		p.metrics.tokens.WithLabelValues(collaborator, "prompt").Add(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		p.metrics.tokens.WithLabelValues(collaborator, "completion").Add(float64(usage.CompletionTokens))
	}
}
