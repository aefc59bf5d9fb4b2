// Package metrics provides Prometheus metrics for cartflow.
//
// Basic usage:
//
//	m := metrics.New(metrics.WithMetricsServiceName("carts"))
//	prometheus.MustRegister(m.Collectors()...)
//
//	bus.Use(m.CommandMiddleware())
//	store := cartflow.New(m.WrapEventStore(adapter), cartflow.WithPublisher(m.WrapPublisher(pub)))
//
// The metrics collected include:
//   - Command execution counts, durations and in-flight gauges
//   - Event store operations, with appended and loaded event counts
//   - Optimistic concurrency conflicts per stream kind
//   - Publisher batches
//   - Error counts by kind
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eventdriven/cartflow"
	"github.com/eventdriven/cartflow/adapters"
)

// Default metric labels.
const (
	LabelCommandType = "command_type"
	LabelEventType   = "event_type"
	LabelStreamKind  = "stream_kind"
	LabelOperation   = "operation"
	LabelStatus      = "status"
	LabelErrorType   = "error_type"
	LabelService     = "service"
)

// Status values.
const (
	StatusSuccess  = "success"
	StatusRejected = "rejected"
	StatusError    = "error"
)

// Operation values.
const (
	OperationAppend       = "append"
	OperationLoad         = "load"
	OperationStreamInfo   = "get_stream_info"
	OperationLastPosition = "get_last_position"
	OperationInitialize   = "initialize"
	OperationHealthCheck  = "ping"
)

// Metrics holds all Prometheus metrics for cartflow.
type Metrics struct {
	namespace   string
	subsystem   string
	serviceName string

	// Command metrics
	commandsTotal    *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	commandsInFlight *prometheus.GaugeVec

	// Event store metrics
	eventStoreOperationsTotal   *prometheus.CounterVec
	eventStoreOperationDuration *prometheus.HistogramVec
	eventsAppendedTotal         *prometheus.CounterVec
	eventsLoadedTotal           *prometheus.CounterVec
	concurrencyConflictsTotal   *prometheus.CounterVec

	// Publisher metrics
	messagesPublishedTotal *prometheus.CounterVec

	// Error metrics
	errorsTotal *prometheus.CounterVec
}

// MetricsOption configures Metrics.
type MetricsOption func(*Metrics)

// WithNamespace sets the Prometheus namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(m *Metrics) {
		m.namespace = namespace
	}
}

// WithSubsystem sets the Prometheus subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(m *Metrics) {
		m.subsystem = subsystem
	}
}

// WithMetricsServiceName sets the service name label.
func WithMetricsServiceName(name string) MetricsOption {
	return func(m *Metrics) {
		m.serviceName = name
	}
}

// New creates a new Metrics instance with default settings.
func New(opts ...MetricsOption) *Metrics {
	m := &Metrics{
		namespace:   "cartflow",
		serviceName: "unknown",
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initMetrics()
	return m
}

func (m *Metrics) initMetrics() {
	m.commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "commands_total",
			Help:      "Total number of commands processed.",
		},
		[]string{LabelService, LabelCommandType, LabelStatus},
	)

	m.commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "command_duration_seconds",
			Help:      "Duration of command processing in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelService, LabelCommandType},
	)

	m.commandsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "commands_in_flight",
			Help:      "Number of commands currently being processed.",
		},
		[]string{LabelService, LabelCommandType},
	)

	m.eventStoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "eventstore_operations_total",
			Help:      "Total number of event store operations.",
		},
		[]string{LabelService, LabelOperation, LabelStatus},
	)

	m.eventStoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "eventstore_operation_duration_seconds",
			Help:      "Duration of event store operations in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelService, LabelOperation},
	)

	m.eventsAppendedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_appended_total",
			Help:      "Total number of events appended to streams.",
		},
		[]string{LabelService, LabelEventType},
	)

	m.eventsLoadedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_loaded_total",
			Help:      "Total number of events loaded from streams.",
		},
		[]string{LabelService},
	)

	m.concurrencyConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "concurrency_conflicts_total",
			Help:      "Total number of appends rejected by an expected revision mismatch.",
		},
		[]string{LabelService, LabelStreamKind},
	)

	m.messagesPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "messages_published_total",
			Help:      "Total number of committed events handed to the publisher.",
		},
		[]string{LabelService, LabelStatus},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors by type.",
		},
		[]string{LabelService, LabelErrorType},
	)
}

// Collectors returns all Prometheus collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.commandsTotal,
		m.commandDuration,
		m.commandsInFlight,
		m.eventStoreOperationsTotal,
		m.eventStoreOperationDuration,
		m.eventsAppendedTotal,
		m.eventsLoadedTotal,
		m.concurrencyConflictsTotal,
		m.messagesPublishedTotal,
		m.errorsTotal,
	}
}

// MustRegister registers all collectors with the default registry.
// Panics if registration fails.
func (m *Metrics) MustRegister() {
	prometheus.MustRegister(m.Collectors()...)
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(registry prometheus.Registerer) error {
	for _, collector := range m.Collectors() {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Command Middleware
// =============================================================================

// CommandMiddleware returns middleware that records command metrics.
// Commands rejected by a business rule or a precondition are counted as
// "rejected"; anything cartflow maps to a server error counts as "error".
func (m *Metrics) CommandMiddleware() cartflow.Middleware {
	return func(next cartflow.MiddlewareFunc) cartflow.MiddlewareFunc {
		return func(ctx context.Context, cmd cartflow.Command) (cartflow.CommandResult, error) {
			cmdType := cmd.CommandType()

			inFlight := m.commandsInFlight.WithLabelValues(m.serviceName, cmdType)
			inFlight.Inc()
			defer inFlight.Dec()

			start := time.Now()
			result, err := next(ctx, cmd)
			m.commandDuration.WithLabelValues(m.serviceName, cmdType).Observe(time.Since(start).Seconds())

			status := StatusSuccess
			if err != nil {
				status = StatusRejected
				if cartflow.StatusCode(err) >= 500 {
					status = StatusError
				}
				m.RecordError(errorTypeName(err))
			}

			m.commandsTotal.WithLabelValues(m.serviceName, cmdType, status).Inc()

			return result, err
		}
	}
}

// errorTypeName extracts the error type name based on sentinel errors.
func errorTypeName(err error) string {
	if err == nil {
		return "none"
	}

	switch {
	case errors.Is(err, cartflow.ErrPreconditionFailed):
		return "precondition_failed"
	case errors.Is(err, cartflow.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, cartflow.ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, cartflow.ErrNotFound):
		return "not_found"
	case errors.Is(err, cartflow.ErrInsufficientQuantity):
		return "insufficient_quantity"
	case errors.Is(err, cartflow.ErrInvalidOperation):
		return "invalid_operation"
	case errors.Is(err, cartflow.ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, cartflow.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, cartflow.ErrHandlerNotFound):
		return "handler_not_found"
	case errors.Is(err, cartflow.ErrHandlerPanicked):
		return "handler_panicked"
	case errors.Is(err, cartflow.ErrNilCommand):
		return "nil_command"
	case errors.Is(err, cartflow.ErrSerializationFailed):
		return "serialization_failed"
	case errors.Is(err, cartflow.ErrEventTypeNotRegistered):
		return "event_type_not_registered"
	case errors.Is(err, adapters.ErrEmptyStreamID):
		return "empty_stream_id"
	case errors.Is(err, adapters.ErrNoEvents):
		return "no_events"
	case errors.Is(err, adapters.ErrInvalidRevision):
		return "invalid_revision"
	case errors.Is(err, adapters.ErrAdapterClosed):
		return "adapter_closed"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, cartflow.ErrStoreIO):
		return "store_io"
	default:
		return "unknown"
	}
}

// =============================================================================
// Event Store Middleware
// =============================================================================

// EventStoreMiddleware wraps an EventStoreAdapter with metrics.
type EventStoreMiddleware struct {
	adapter adapters.EventStoreAdapter
	metrics *Metrics
}

// WrapEventStore wraps an adapter with metrics collection.
func (m *Metrics) WrapEventStore(adapter adapters.EventStoreAdapter) *EventStoreMiddleware {
	return &EventStoreMiddleware{
		adapter: adapter,
		metrics: m,
	}
}

func (em *EventStoreMiddleware) observe(op string, start time.Time, err error) {
	m := em.metrics
	m.eventStoreOperationDuration.WithLabelValues(m.serviceName, op).Observe(time.Since(start).Seconds())

	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.eventStoreOperationsTotal.WithLabelValues(m.serviceName, op, status).Inc()
}

// Append stores events with metrics. Revision conflicts are counted per
// stream kind rather than as errors.
func (em *EventStoreMiddleware) Append(ctx context.Context, streamID string, events []adapters.EventRecord, expectedRevision int64) ([]adapters.StoredEvent, error) {
	m := em.metrics

	start := time.Now()
	stored, err := em.adapter.Append(ctx, streamID, events, expectedRevision)
	em.observe(OperationAppend, start, err)

	switch {
	case errors.Is(err, adapters.ErrConcurrencyConflict):
		m.concurrencyConflictsTotal.WithLabelValues(m.serviceName, adapters.ExtractCategory(streamID)).Inc()
	case err != nil:
		m.RecordError("append_error")
	default:
		for _, e := range events {
			m.eventsAppendedTotal.WithLabelValues(m.serviceName, e.Type).Inc()
		}
	}

	return stored, err
}

// Load retrieves events with metrics.
func (em *EventStoreMiddleware) Load(ctx context.Context, streamID string, fromRevision int64) ([]adapters.StoredEvent, error) {
	m := em.metrics

	start := time.Now()
	events, err := em.adapter.Load(ctx, streamID, fromRevision)
	em.observe(OperationLoad, start, err)

	if err != nil {
		m.RecordError("load_error")
	} else {
		m.eventsLoadedTotal.WithLabelValues(m.serviceName).Add(float64(len(events)))
	}

	return events, err
}

// GetStreamInfo returns stream metadata with metrics.
func (em *EventStoreMiddleware) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	start := time.Now()
	info, err := em.adapter.GetStreamInfo(ctx, streamID)
	em.observe(OperationStreamInfo, start, err)
	return info, err
}

// GetLastPosition returns the last global position with metrics.
func (em *EventStoreMiddleware) GetLastPosition(ctx context.Context) (uint64, error) {
	start := time.Now()
	pos, err := em.adapter.GetLastPosition(ctx)
	em.observe(OperationLastPosition, start, err)
	return pos, err
}

// Initialize initializes the adapter with metrics.
func (em *EventStoreMiddleware) Initialize(ctx context.Context) error {
	start := time.Now()
	err := em.adapter.Initialize(ctx)
	em.observe(OperationInitialize, start, err)
	return err
}

// Ping forwards to the wrapped adapter when it supports health checks.
func (em *EventStoreMiddleware) Ping(ctx context.Context) error {
	hc, ok := em.adapter.(adapters.HealthChecker)
	if !ok {
		return nil
	}
	start := time.Now()
	err := hc.Ping(ctx)
	em.observe(OperationHealthCheck, start, err)
	return err
}

// Close closes the adapter.
func (em *EventStoreMiddleware) Close() error {
	return em.adapter.Close()
}

// =============================================================================
// Publisher Middleware
// =============================================================================

// PublisherMiddleware wraps a Publisher with metrics.
type PublisherMiddleware struct {
	publisher cartflow.Publisher
	metrics   *Metrics
}

// WrapPublisher wraps a publisher with metrics collection.
func (m *Metrics) WrapPublisher(publisher cartflow.Publisher) *PublisherMiddleware {
	return &PublisherMiddleware{publisher: publisher, metrics: m}
}

// Publish forwards messages and counts them by outcome.
func (pm *PublisherMiddleware) Publish(ctx context.Context, messages []cartflow.Message) error {
	m := pm.metrics

	err := pm.publisher.Publish(ctx, messages)

	status := StatusSuccess
	if err != nil {
		status = StatusError
		m.RecordError("publish_error")
	}
	m.messagesPublishedTotal.WithLabelValues(m.serviceName, status).Add(float64(len(messages)))

	return err
}

// =============================================================================
// Manual Metric Recording
// =============================================================================

// RecordError records a custom error.
func (m *Metrics) RecordError(errorType string) {
	m.errorsTotal.WithLabelValues(m.serviceName, errorType).Inc()
}

// =============================================================================
// Getters for testing
// =============================================================================

// CommandsTotal returns the commands counter.
func (m *Metrics) CommandsTotal() *prometheus.CounterVec {
	return m.commandsTotal
}

// CommandDuration returns the command duration histogram.
func (m *Metrics) CommandDuration() *prometheus.HistogramVec {
	return m.commandDuration
}

// CommandsInFlight returns the in-flight commands gauge.
func (m *Metrics) CommandsInFlight() *prometheus.GaugeVec {
	return m.commandsInFlight
}

// EventStoreOperationsTotal returns the event store operations counter.
func (m *Metrics) EventStoreOperationsTotal() *prometheus.CounterVec {
	return m.eventStoreOperationsTotal
}

// EventsAppendedTotal returns the events appended counter.
func (m *Metrics) EventsAppendedTotal() *prometheus.CounterVec {
	return m.eventsAppendedTotal
}

// EventsLoadedTotal returns the events loaded counter.
func (m *Metrics) EventsLoadedTotal() *prometheus.CounterVec {
	return m.eventsLoadedTotal
}

// ConcurrencyConflictsTotal returns the conflict counter.
func (m *Metrics) ConcurrencyConflictsTotal() *prometheus.CounterVec {
	return m.concurrencyConflictsTotal
}

// MessagesPublishedTotal returns the publisher counter.
func (m *Metrics) MessagesPublishedTotal() *prometheus.CounterVec {
	return m.messagesPublishedTotal
}

// ErrorsTotal returns the errors counter.
func (m *Metrics) ErrorsTotal() *prometheus.CounterVec {
	return m.errorsTotal
}
