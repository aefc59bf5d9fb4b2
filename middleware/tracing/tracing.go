// Package tracing provides OpenTelemetry integration for cartflow.
//
// Basic usage with command bus:
//
//	tp, _ := tracing.NewStdoutProvider(os.Stderr)
//	defer tp.Shutdown(ctx)
//
//	tracer := tracing.NewTracer(tracing.WithTracerProvider(tp))
//	bus.Use(tracing.CommandMiddleware(tracer))
//	store := cartflow.New(tracing.NewEventStoreMiddleware(adapter, tracer))
//
// The tracing middleware captures:
//   - Command type, target cart and resulting revision
//   - Adapter calls with stream, expected revision and event types
//   - Error details, with revision conflicts flagged on the span
//   - Correlation IDs
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/eventdriven/cartflow"
	"github.com/eventdriven/cartflow/adapters"
)

const (
	// TracerName is the name of the cartflow tracer.
	TracerName = "github.com/eventdriven/cartflow"

	// DefaultServiceName is the default service name for spans.
	DefaultServiceName = "cartflow"
)

// Tracer wraps OpenTelemetry tracer for cartflow operations.
type Tracer struct {
	tracer      trace.Tracer
	serviceName string
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithTracerProvider sets a custom TracerProvider.
func WithTracerProvider(tp trace.TracerProvider) TracerOption {
	return func(t *Tracer) {
		t.tracer = tp.Tracer(TracerName)
	}
}

// WithServiceName sets the service name for spans.
func WithServiceName(name string) TracerOption {
	return func(t *Tracer) {
		t.serviceName = name
	}
}

// NewTracer creates a new Tracer with the global TracerProvider.
func NewTracer(opts ...TracerOption) *Tracer {
	t := &Tracer{
		tracer:      otel.Tracer(TracerName),
		serviceName: DefaultServiceName,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewStdoutProvider returns a provider that writes finished spans to w as
// indented JSON. Callers must Shutdown it to flush.
func NewStdoutProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("tracing: stdout exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)), nil
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Tracer returns the underlying OpenTelemetry tracer.
func (t *Tracer) Tracer() trace.Tracer {
	return t.tracer
}

// ServiceName returns the configured service name.
func (t *Tracer) ServiceName() string {
	return t.serviceName
}

func finish(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	if errors.Is(err, adapters.ErrConcurrencyConflict) {
		span.SetAttributes(attribute.Bool("cartflow.conflict", true))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// =============================================================================
// Command Middleware
// =============================================================================

// CommandMiddleware creates middleware that traces command execution.
func CommandMiddleware(tracer *Tracer) cartflow.Middleware {
	return func(next cartflow.MiddlewareFunc) cartflow.MiddlewareFunc {
		return func(ctx context.Context, cmd cartflow.Command) (cartflow.CommandResult, error) {
			ctx, span := tracer.StartSpan(ctx, "command."+cmd.CommandType(),
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			defer span.End()

			attrs := []attribute.KeyValue{
				attribute.String("cartflow.service", tracer.serviceName),
				attribute.String("cartflow.command.type", cmd.CommandType()),
			}
			if aggCmd, ok := cmd.(cartflow.AggregateCommand); ok {
				attrs = append(attrs, attribute.String("cartflow.command.aggregate_id", aggCmd.AggregateID()))
			}
			if correlationID := cartflow.CorrelationIDFromContext(ctx); correlationID != "" {
				attrs = append(attrs, attribute.String("cartflow.correlation_id", correlationID))
			}
			span.SetAttributes(attrs...)

			result, err := next(ctx, cmd)

			finish(span, err)
			if err == nil {
				span.SetAttributes(
					attribute.String("cartflow.result.aggregate_id", result.AggregateID),
					attribute.Int64("cartflow.result.revision", result.Revision),
				)
			}

			return result, err
		}
	}
}

// =============================================================================
// Event Store Middleware
// =============================================================================

// EventStoreMiddleware wraps an EventStoreAdapter with tracing.
type EventStoreMiddleware struct {
	adapter adapters.EventStoreAdapter
	tracer  *Tracer
}

// NewEventStoreMiddleware wraps an adapter with tracing.
func NewEventStoreMiddleware(adapter adapters.EventStoreAdapter, tracer *Tracer) *EventStoreMiddleware {
	return &EventStoreMiddleware{
		adapter: adapter,
		tracer:  tracer,
	}
}

func (m *EventStoreMiddleware) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := m.tracer.StartSpan(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(append([]attribute.KeyValue{attribute.String("cartflow.service", m.tracer.serviceName)}, attrs...)...)
	return ctx, span
}

// Append stores events with tracing.
func (m *EventStoreMiddleware) Append(ctx context.Context, streamID string, events []adapters.EventRecord, expectedRevision int64) ([]adapters.StoredEvent, error) {
	eventTypes := make([]string, len(events))
	for i, e := range events {
		eventTypes[i] = e.Type
	}

	ctx, span := m.start(ctx, "eventstore.append",
		attribute.String("cartflow.stream_id", streamID),
		attribute.String("cartflow.expected_revision", adapters.RevisionString(expectedRevision)),
		attribute.Int("cartflow.events.count", len(events)),
		attribute.StringSlice("cartflow.events.types", eventTypes),
	)
	defer span.End()

	stored, err := m.adapter.Append(ctx, streamID, events, expectedRevision)

	finish(span, err)
	if err == nil && len(stored) > 0 {
		last := stored[len(stored)-1]
		span.SetAttributes(
			attribute.Int64("cartflow.stored.revision", last.Revision),
			attribute.Int64("cartflow.stored.global_position", int64(last.GlobalPosition)),
		)
	}

	return stored, err
}

// Load retrieves events with tracing.
func (m *EventStoreMiddleware) Load(ctx context.Context, streamID string, fromRevision int64) ([]adapters.StoredEvent, error) {
	ctx, span := m.start(ctx, "eventstore.load",
		attribute.String("cartflow.stream_id", streamID),
		attribute.Int64("cartflow.from_revision", fromRevision),
	)
	defer span.End()

	events, err := m.adapter.Load(ctx, streamID, fromRevision)

	finish(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int("cartflow.events.loaded", len(events)))
	}

	return events, err
}

// GetStreamInfo returns stream metadata with tracing.
func (m *EventStoreMiddleware) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	ctx, span := m.start(ctx, "eventstore.get_stream_info", attribute.String("cartflow.stream_id", streamID))
	defer span.End()

	info, err := m.adapter.GetStreamInfo(ctx, streamID)

	finish(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int64("cartflow.stream.revision", info.Revision))
	}

	return info, err
}

// GetLastPosition returns the last global position with tracing.
func (m *EventStoreMiddleware) GetLastPosition(ctx context.Context) (uint64, error) {
	ctx, span := m.start(ctx, "eventstore.get_last_position")
	defer span.End()

	pos, err := m.adapter.GetLastPosition(ctx)

	finish(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int64("cartflow.last_position", int64(pos)))
	}

	return pos, err
}

// Initialize initializes the adapter with tracing.
func (m *EventStoreMiddleware) Initialize(ctx context.Context) error {
	ctx, span := m.start(ctx, "eventstore.initialize")
	defer span.End()

	err := m.adapter.Initialize(ctx)
	finish(span, err)
	return err
}

// Ping forwards to the wrapped adapter when it supports health checks.
func (m *EventStoreMiddleware) Ping(ctx context.Context) error {
	hc, ok := m.adapter.(adapters.HealthChecker)
	if !ok {
		return nil
	}
	return hc.Ping(ctx)
}

// Close closes the adapter.
func (m *EventStoreMiddleware) Close() error {
	return m.adapter.Close()
}

// =============================================================================
// Publisher Middleware
// =============================================================================

// PublisherMiddleware wraps a Publisher with tracing.
type PublisherMiddleware struct {
	publisher cartflow.Publisher
	tracer    *Tracer
}

// NewPublisherMiddleware wraps a publisher with tracing.
func NewPublisherMiddleware(publisher cartflow.Publisher, tracer *Tracer) *PublisherMiddleware {
	return &PublisherMiddleware{publisher: publisher, tracer: tracer}
}

// Publish forwards messages inside a producer span.
func (m *PublisherMiddleware) Publish(ctx context.Context, messages []cartflow.Message) error {
	ctx, span := m.tracer.StartSpan(ctx, "publisher.publish", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	span.SetAttributes(
		attribute.String("cartflow.service", m.tracer.serviceName),
		attribute.Int("cartflow.messages.count", len(messages)),
	)
	if len(messages) > 0 {
		span.SetAttributes(attribute.String("cartflow.stream_id", messages[0].StreamID))
	}

	err := m.publisher.Publish(ctx, messages)
	finish(span, err)
	return err
}

// =============================================================================
// Span Helpers
// =============================================================================

// SpanFromContext returns the current span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, opts ...trace.EventOption) {
	trace.SpanFromContext(ctx).AddEvent(name, opts...)
}

// SetError sets an error on the current span.
func SetError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
