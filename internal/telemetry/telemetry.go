// Package telemetry provides OpenTelemetry instrumentation for ferry.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/ferry/internal/config"
)

const instrumentationName = "github.com/yairfalse/ferry"

// Provider owns the tracer and meter providers of one run.
type Provider struct {
	traces   *sdktrace.TracerProvider
	metrics  *sdkmetric.MeterProvider
	registry *promclient.Registry

	tracer trace.Tracer
	meter  metric.Meter

	stepSeconds    metric.Float64Histogram
	stepFailures   metric.Int64Counter
	managerActions metric.Int64Counter
	objects        metric.Int64Counter
}

// NewProvider sets up tracing and metrics and installs them as the otel globals.
// Metrics always feed a private Prometheus registry; OTLP export is added per
// signal when an endpoint is configured and the signal is enabled.
func NewProvider(ctx context.Context, cfg config.OTELConfig) (*Provider, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	traces, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, err
	}

	registry := promclient.NewRegistry()
	metrics, err := newMeterProvider(ctx, cfg, res, registry)
	if err != nil {
		_ = traces.Shutdown(ctx)
		return nil, err
	}

	otel.SetTracerProvider(traces)
	otel.SetMeterProvider(metrics)

	p := &Provider{
		traces:   traces,
		metrics:  metrics,
		registry: registry,
		tracer:   traces.Tracer(instrumentationName),
		meter:    metrics.Meter(instrumentationName),
	}
	if err := p.registerInstruments(); err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	return p, nil
}

func newTracerProvider(ctx context.Context, cfg config.OTELConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	if !cfg.Traces.Enabled || cfg.Endpoint == "" {
		return sdktrace.NewTracerProvider(sdktrace.WithResource(res)), nil
	}

	exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Traces.SampleRate))),
	), nil
}

func newMeterProvider(ctx context.Context, cfg config.OTELConfig, res *resource.Resource, registry *promclient.Registry) (*sdkmetric.MeterProvider, error) {
	promReader, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("prometheus reader: %w", err)
	}
	readers := []sdkmetric.Option{sdkmetric.WithResource(res), sdkmetric.WithReader(promReader)}

	if cfg.Metrics.Enabled && cfg.Endpoint != "" {
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	return sdkmetric.NewMeterProvider(readers...), nil
}

func (p *Provider) registerInstruments() error {
	var err error
	if p.stepSeconds, err = p.meter.Float64Histogram("ferry_step_duration_seconds",
		metric.WithDescription("Wall time of each workflow step"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("register ferry_step_duration_seconds: %w", err)
	}
	if p.stepFailures, err = p.meter.Int64Counter("ferry_step_failures_total",
		metric.WithDescription("Workflow steps that returned an error"),
	); err != nil {
		return fmt.Errorf("register ferry_step_failures_total: %w", err)
	}
	if p.managerActions, err = p.meter.Int64Counter("ferry_manager_actions_total",
		metric.WithDescription("Manager policy decisions by action"),
	); err != nil {
		return fmt.Errorf("register ferry_manager_actions_total: %w", err)
	}
	if p.objects, err = p.meter.Int64Counter("ferry_inventory_objects_total",
		metric.WithDescription("Objects counted by the inventory report"),
	); err != nil {
		return fmt.Errorf("register ferry_inventory_objects_total: %w", err)
	}
	return nil
}

// Tracer returns the ferry tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Meter returns the ferry meter.
func (p *Provider) Meter() metric.Meter { return p.meter }

// StartSpan starts a span named name with the given attributes.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordStep records how long a workflow step took and whether it failed.
func (p *Provider) RecordStep(ctx context.Context, step, severity string, d time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("severity", severity),
	)
	p.stepSeconds.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		p.stepFailures.Add(ctx, 1, attrs)
	}
}

// RecordManagerAction counts one manager policy decision.
func (p *Provider) RecordManagerAction(ctx context.Context, action string, dryRun bool) {
	p.managerActions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.Bool("dry_run", dryRun),
	))
}

// RecordObjects adds the object count of an inventory run.
func (p *Provider) RecordObjects(ctx context.Context, region string, count int64) {
	p.objects.Add(ctx, count, metric.WithAttributes(attribute.String("region", region)))
}

// WriteTextfile writes the current metrics in Prometheus text format to path,
// for pickup by a node_exporter textfile collector.
func (p *Provider) WriteTextfile(path string) error {
	if err := promclient.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Shutdown flushes pending spans and metrics.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if err := p.traces.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
	}
	if err := p.metrics.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
	}
	return errors.Join(errs...)
}
