package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resumatch/internal/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Manager owns the OpenTelemetry stack: tracer and meter
// providers, exporters, and the custom instruments. A disabled manager
// is still fully usable; every method degrades to a no-op.
type Manager struct {
	config         Config
	appConfig      *config.Config // nested settings not mirrored in Config
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metrics        *Metrics
	closers        []func(context.Context) error
}

// NewManager wires up tracing and metrics. When disabled it
// returns a manager that hands out noop tracers and empty metrics.
func NewManager(cfg Config, appCfg *config.Config) (*Manager, error) {
	om := &Manager{config: cfg, appConfig: appCfg}
	if !cfg.Enabled {
		return om, nil
	}

	res, err := om.newResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := om.startTracing(res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := om.startMetrics(res); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return om, nil
}

// newResource builds the resource shared by traces and metrics.
func (om *Manager) newResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(om.config.ServiceName),
			semconv.ServiceVersion(om.config.ServiceVersion),
			attribute.String("service.instance.id", om.serviceInstanceID()),
		),
	)
}

func (om *Manager) startTracing(res *resource.Resource) error {
	exp, err := om.newSpanExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(om.config.SampleRate)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	om.tracerProvider = provider
	om.closers = append(om.closers, provider.Shutdown)
	return nil
}

// newSpanExporter picks the span destination: console for development,
// OTLP when configured, otherwise spans are dropped.
func (om *Manager) newSpanExporter() (trace.SpanExporter, error) {
	switch {
	case om.config.ConsoleOutput:
		var opts []stdouttrace.Option
		if om.config.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		return stdouttrace.New(opts...)
	case om.otlpEnabled():
		return om.newOTLPTraceExporter()
	default:
		return dropSpanExporter{}, nil
	}
}

func (om *Manager) startMetrics(res *resource.Resource) error {
	readers, err := om.metricReaders()
	if err != nil {
		return err
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	provider := sdkmetric.NewMeterProvider(opts...)

	otel.SetMeterProvider(provider)
	om.meterProvider = provider
	om.closers = append(om.closers, provider.Shutdown)

	metrics, err := newMetrics(provider.Meter(om.config.ServiceName))
	if err != nil {
		return err
	}
	om.metrics = metrics
	return nil
}

// metricReaders assembles the configured metric pipelines. With nothing
// configured a manual reader keeps the meter provider functional.
func (om *Manager) metricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	if om.config.ConsoleOutput {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exp,
			sdkmetric.WithInterval(om.collectionInterval())))
	}

	if om.otlpEnabled() {
		reader, err := om.newOTLPMetricReader()
		if err != nil {
			return nil, err
		}
		readers = append(readers, reader)
	}

	if om.config.Prometheus.Enabled {
		reader, err := om.startPrometheus()
		if err != nil {
			return nil, err
		}
		readers = append(readers, reader)
	}

	if len(readers) == 0 {
		return []sdkmetric.Reader{sdkmetric.NewManualReader()}, nil
	}
	return readers, nil
}

func (om *Manager) otlpEnabled() bool {
	return om.appConfig != nil && om.appConfig.Observability.OTLP.Enabled
}

func (om *Manager) newOTLPTraceExporter() (trace.SpanExporter, error) {
	otlp := om.appConfig.Observability.OTLP

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(otlp.Endpoint)}
	if otlp.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlp.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlp.Headers))
	}

	exp, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return exp, nil
}

func (om *Manager) newOTLPMetricReader() (sdkmetric.Reader, error) {
	otlp := om.appConfig.Observability.OTLP

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(otlp.Endpoint)}
	if otlp.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlp.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlp.Headers))
	}

	exp, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exp,
		sdkmetric.WithInterval(om.collectionInterval())), nil
}

// dropSpanExporter discards spans when no destination is configured.
type dropSpanExporter struct{}

func (dropSpanExporter) ExportSpans(context.Context, []trace.ReadOnlySpan) error { return nil }
func (dropSpanExporter) Shutdown(context.Context) error                          { return nil }

// HTTPMiddleware wraps handlers with otelhttp server instrumentation.
func (om *Manager) HTTPMiddleware() func(http.Handler) http.Handler {
	if !om.config.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return otelhttp.NewMiddleware(om.config.ServiceName,
		otelhttp.WithTracerProvider(om.tracerProvider), otelhttp.WithMeterProvider(om.meterProvider))
}

// Tracer returns a tracer, or a noop one when observability is off.
func (om *Manager) Tracer(name string) oteltrace.Tracer {
	if om.config.Enabled {
		return otel.Tracer(name)
	}
	return noop.NewTracerProvider().Tracer(name)
}

// Shutdown flushes and stops the tracer and meter providers.
func (om *Manager) Shutdown(ctx context.Context) error {
	for _, stop := range om.closers {
		if err := stop(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (om *Manager) serviceInstanceID() string {
	if om.appConfig != nil && om.appConfig.Observability.ServiceInstance != "" {
		return om.appConfig.Observability.ServiceInstance
	}
	return "resumatch-1"
}

func (om *Manager) collectionInterval() time.Duration {
	if om.appConfig == nil {
		return 15 * time.Second
	}
	return om.appConfig.Observability.Metrics.CollectionInterval
}
