// Package observability wires Prometheus metrics and OpenTelemetry tracing.
// A nil *Provider is valid and records nothing.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	promreg "github.com/prometheus/client_golang/prometheus"
	promcollectors "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/ncecere/readaloud/internal/config"
)

const defaultCollector = "localhost:4317"

type Provider struct {
	tracer  *sdktrace.TracerProvider
	scrape  http.Handler
	metrics *collectors
	closers []func(context.Context) error
}

// Setup returns nil when both tracing and metrics are disabled.
func Setup(ctx context.Context, cfg config.ObservabilityConfig) (*Provider, error) {
	if !cfg.EnableOTLP && !cfg.EnableMetrics {
		return nil, nil
	}
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "readaloud"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(name)))
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}

	p := &Provider{}
	if cfg.EnableMetrics {
		if err := p.startMetrics(res); err != nil {
			return nil, err
		}
	}
	if cfg.EnableOTLP {
		if err := p.startTracing(ctx, cfg, res); err != nil {
			_ = p.Shutdown(ctx)
			return nil, err
		}
	}
	return p, nil
}

func (p *Provider) startMetrics(res *resource.Resource) error {
	registry := promreg.NewRegistry()
	registry.MustRegister(
		promcollectors.NewGoCollector(),
		promcollectors.NewProcessCollector(promcollectors.ProcessCollectorOpts{}),
	)
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return fmt.Errorf("prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)
	p.closers = append(p.closers, mp.Shutdown)

	if p.metrics, err = newCollectors(registry); err != nil {
		return err
	}
	p.scrape = promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
	return nil
}

func (p *Provider) startTracing(ctx context.Context, cfg config.ObservabilityConfig, res *resource.Resource) error {
	endpoint, insecure := otlpTarget(cfg.OTLPEndpoint)
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return fmt.Errorf("otlp exporter: %w", err)
	}
	ratio := cfg.TraceSampleRatio
	if ratio <= 0 {
		ratio = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)
	p.tracer = tp
	p.closers = append(p.closers, tp.Shutdown)
	return nil
}

// otlpTarget strips the scheme from a collector address. Anything other than
// https is dialed without TLS.
func otlpTarget(raw string) (string, bool) {
	endpoint := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(endpoint, "https://"); ok {
		return rest, false
	}
	endpoint = strings.TrimPrefix(endpoint, "http://")
	if endpoint == "" {
		endpoint = defaultCollector
	}
	return endpoint, true
}

func (p *Provider) PrometheusHandler() http.Handler {
	if p == nil {
		return nil
	}
	return p.scrape
}

func (p *Provider) TracerProvider() *sdktrace.TracerProvider {
	if p == nil {
		return nil
	}
	return p.tracer
}

// Shutdown flushes exporters in reverse start order.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
