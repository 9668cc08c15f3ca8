package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	tracetype "go.opentelemetry.io/otel/trace"
)

// Options configures Setup
type Options struct {
	ServiceName string
	Version     string
	Network     string // recorded as deployment.environment

	// TraceSampleRatio is the fraction of poll cycles traced. Values >= 1
	// trace every cycle, values <= 0 none.
	TraceSampleRatio float64
	// TraceWriter receives exported spans; nil drops them.
	TraceWriter io.Writer
	// ExportLogs mirrors log records through the OTel log pipeline to stdout.
	ExportLogs bool
}

// Telemetry owns the OTel providers installed by Setup
type Telemetry struct {
	tp *trace.TracerProvider
	mp *sdkmetric.MeterProvider
	lp *sdklog.LoggerProvider // nil unless ExportLogs
}

// Setup installs the global tracer, meter and logger providers and registers
// the monitor instruments on the global metrics holder. Metrics are served
// from the Prometheus default registry.
func Setup(opts Options) (*Telemetry, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(opts.Version),
		semconv.DeploymentEnvironment(opts.Network),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	w := opts.TraceWriter
	if w == nil {
		w = io.Discard
	}
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(opts.TraceSampleRatio))),
	)

	metricExporter, err := prometheus.New()
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(metricExporter),
		sdkmetric.WithResource(res),
	)

	t := &Telemetry{tp: tp, mp: mp}

	if opts.ExportLogs {
		logExporter, err := stdoutlog.New()
		if err != nil {
			_ = t.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to create log exporter: %w", err)
		}
		t.lp = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
		global.SetLoggerProvider(t.lp)
	}

	if err := GetGlobalMetrics().InitMetrics(mp.Meter(opts.ServiceName)); err != nil {
		_ = t.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	return t, nil
}

// Shutdown flushes pending spans and log records and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	errs := []error{
		t.tp.Shutdown(ctx),
		t.mp.Shutdown(ctx),
	}
	if t.lp != nil {
		errs = append(errs, t.lp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func GetMeter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

func GetTracer(name string) tracetype.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}
