package hooks

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/muralikrish9/cyberroomba/pkg/duration"
	"github.com/muralikrish9/cyberroomba/pkg/output/dispatcher"
	"github.com/muralikrish9/cyberroomba/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*OTelHook)(nil)

// OTelHook exports pipeline telemetry to an OpenTelemetry collector.
// Each job run becomes one root span; hosts, findings, and errors are
// recorded as span events with attributes.
type OTelHook struct {
	opts           OTelOptions
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	mu       sync.Mutex
	rootSpan trace.Span
	closed   bool
}

// OTelOptions configures the OpenTelemetry hook behavior.
type OTelOptions struct {
	// Endpoint is the OTLP endpoint (e.g., "localhost:4317").
	Endpoint string

	// ServiceName for traces (default: "cyberroomba").
	ServiceName string

	// Insecure uses a plaintext connection (no TLS).
	Insecure bool

	// Headers contains additional headers for the OTLP exporter.
	Headers map[string]string
}

// NewOTelHook creates the hook and connects the OTLP exporter.
// Connection failures degrade gracefully: export errors never block a
// run.
func NewOTelHook(opts OTelOptions) (*OTelHook, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "cyberroomba"
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "localhost:4317"
	}

	var grpcOpts []grpc.DialOption
	if opts.Insecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.Endpoint),
		otlptracegrpc.WithDialOption(grpcOpts...),
	}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration.OTLPExport)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		attribute.String("service.component", "pipeline"),
	)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)

	return &OTelHook{
		opts:           opts,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer("cyberroomba/pipeline"),
	}, nil
}

// EventTypes returns nil: every event contributes telemetry.
func (h *OTelHook) EventTypes() []events.EventType { return nil }

// OnEvent exports the event to the collector.
func (h *OTelHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.StartEvent:
		_, span := h.tracer.Start(ctx, "cyberroomba.run",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("job_id", e.JobID()),
				attribute.String("workflow", e.Workflow),
				attribute.String("trigger", e.Trigger),
				attribute.Int("targets", e.TargetCount),
				attribute.Int("concurrency", e.Concurrency),
			),
		)
		h.rootSpan = span

	case *events.HostEvent:
		h.addEvent("host_recorded",
			attribute.String("host", e.Host),
			attribute.Bool("alive", e.Alive),
			attribute.Int("ips", len(e.IPs)),
		)

	case *events.FindingEvent:
		h.addEvent("finding_recorded",
			attribute.String("host_id", e.Finding.HostID),
			attribute.String("source", e.Finding.Source),
			attribute.String("title", e.Finding.Title),
			attribute.String("severity", string(e.Severity)),
		)

	case *events.ErrorEvent:
		h.addEvent("run_error",
			attribute.String("target", e.Target),
			attribute.String("message", e.Message),
			attribute.Bool("fatal", e.Fatal),
		)
		if e.Fatal && h.rootSpan != nil {
			h.rootSpan.SetStatus(codes.Error, e.Message)
		}

	case *events.CompleteEvent:
		if h.rootSpan != nil {
			if e.Success {
				h.rootSpan.SetStatus(codes.Ok, "")
			} else {
				h.rootSpan.SetStatus(codes.Error, e.Error)
			}
			h.rootSpan.End()
			h.rootSpan = nil
		}
	}
	return nil
}

func (h *OTelHook) addEvent(name string, attrs ...attribute.KeyValue) {
	if h.rootSpan == nil {
		return
	}
	h.rootSpan.AddEvent(name, trace.WithAttributes(attrs...))
}

// Close ends any open span and flushes the exporter.
func (h *OTelHook) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	if h.rootSpan != nil {
		h.rootSpan.End()
		h.rootSpan = nil
	}
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), duration.WebhookShutdown)
	defer cancel()
	return h.tracerProvider.Shutdown(ctx)
}
