package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"change-creator/internal/common/logger"
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	JaegerEndpoint string
}

type Observability struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *metric.MeterProvider
	tracer         trace.Tracer
	runCounter     otelmetric.Int64Counter
	stepDuration   otelmetric.Float64Histogram
	logger         logger.Logger
}

// New wires an OpenTelemetry meter into registerer and a tracer that exports
// to Jaeger when an endpoint is configured. Exporter failures degrade to
// un-exported telemetry; they never fail the run.
func New(cfg Config, registerer prometheus.Registerer, log logger.Logger) *Observability {
	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	o := &Observability{logger: log}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.JaegerEndpoint != "" {
		exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
		if err != nil {
			log.Warn("failed to create jaeger exporter", map[string]interface{}{
				"endpoint": cfg.JaegerEndpoint,
				"error":    err.Error(),
			})
		} else {
			traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
		}
	}
	o.tracerProvider = sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(o.tracerProvider)
	o.tracer = o.tracerProvider.Tracer(cfg.ServiceName)

	meterOpts := []metric.Option{metric.WithResource(res)}
	exporter, err := otelprom.New(otelprom.WithRegisterer(registerer))
	if err != nil {
		log.Warn("failed to create prometheus exporter", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		meterOpts = append(meterOpts, metric.WithReader(exporter))
	}
	o.meterProvider = metric.NewMeterProvider(meterOpts...)
	otel.SetMeterProvider(o.meterProvider)

	meter := o.meterProvider.Meter(cfg.ServiceName)

	o.runCounter, _ = meter.Int64Counter(
		"change.runs",
		otelmetric.WithDescription("Number of change creation runs"),
	)

	o.stepDuration, _ = meter.Float64Histogram(
		"change.step.duration",
		otelmetric.WithDescription("Duration of individual run steps"),
		otelmetric.WithUnit("ms"),
	)

	return o
}

// StartSpan is safe on a nil receiver, which yields a non-recording span.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil {
		return noop.NewTracerProvider().Tracer("").Start(ctx, name)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (o *Observability) RecordRun(ctx context.Context, outcome string) {
	if o != nil && o.runCounter != nil {
		o.runCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) RecordStep(ctx context.Context, step string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	if o != nil && o.stepDuration != nil {
		o.stepDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("step", step),
			attribute.String("status", status),
		))
	}
}

// Shutdown flushes pending spans and metrics.
func (o *Observability) Shutdown(ctx context.Context) {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			o.logger.Debug("tracer provider shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil {
			o.logger.Debug("meter provider shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}
}
