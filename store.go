package cartflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventdriven/cartflow/adapters"
)

// EventStore is the entry point for reading and appending streams.
// It serializes payloads, delegates persistence to an adapter and
// classifies adapter failures into the cartflow error taxonomy.
type EventStore struct {
	adapter    adapters.EventStoreAdapter
	serializer Serializer
	publisher  Publisher
	logger     Logger
}

// Option configures an EventStore.
type Option func(*EventStore)

// WithSerializer sets the payload serializer. Defaults to an empty JSONSerializer.
func WithSerializer(s Serializer) Option {
	return func(es *EventStore) {
		es.serializer = s
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(es *EventStore) {
		es.logger = l
	}
}

// WithPublisher sets a publisher notified after every successful append.
func WithPublisher(p Publisher) Option {
	return func(es *EventStore) {
		es.publisher = p
	}
}

// New creates an EventStore on top of adapter.
func New(adapter adapters.EventStoreAdapter, opts ...Option) *EventStore {
	es := &EventStore{
		adapter:    adapter,
		serializer: NewJSONSerializer(),
		logger:     NopLogger(),
	}

	for _, opt := range opts {
		opt(es)
	}

	return es
}

// Adapter returns the underlying adapter.
func (s *EventStore) Adapter() adapters.EventStoreAdapter {
	return s.adapter
}

// Serializer returns the payload serializer.
func (s *EventStore) Serializer() Serializer {
	return s.serializer
}

// RegisterEvents registers event types with the serializer when it keeps a registry.
func (s *EventStore) RegisterEvents(events ...interface{}) {
	if r, ok := s.serializer.(interface{ RegisterAll(...interface{}) }); ok {
		r.RegisterAll(events...)
	}
}

// ReadResult is the outcome of reading a whole stream.
// A stream that does not exist is not an error: Exists is false, Events is
// empty and Revision is NoStream.
type ReadResult struct {
	Events   []Event
	Revision int64
	Exists   bool
}

// Read loads and decodes every event of a stream.
func (s *EventStore) Read(ctx context.Context, streamID string) (ReadResult, error) {
	events, err := s.ReadFrom(ctx, streamID, 0)
	if err != nil {
		return ReadResult{Revision: NoStream}, err
	}

	result := ReadResult{Events: events, Revision: NoStream}
	if n := len(events); n > 0 {
		result.Exists = true
		result.Revision = events[n-1].Revision
	}
	return result, nil
}

// ReadFrom loads the events of a stream whose revision is >= fromRevision.
func (s *EventStore) ReadFrom(ctx context.Context, streamID string, fromRevision int64) ([]Event, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	stored, err := s.adapter.Load(ctx, streamID, fromRevision)
	if err != nil {
		s.logger.Error("read failed", "stream", streamID, "error", err)
		return nil, NewStoreIOError("read", streamID, err)
	}

	events := make([]Event, len(stored))
	for i, se := range stored {
		data, err := s.serializer.Deserialize(se.Data, se.Type)
		if err != nil {
			return nil, fmt.Errorf("cartflow: failed to decode event %d of %q: %w", se.Revision, streamID, err)
		}
		events[i] = EventFromStored(se, data)
	}

	s.logger.Debug("stream read", "stream", streamID, "events", len(events))
	return events, nil
}

type appendConfig struct {
	metadata Metadata
}

// AppendOption configures a single append.
type AppendOption func(*appendConfig)

// WithAppendMetadata attaches metadata to every event of the append.
func WithAppendMetadata(m Metadata) AppendOption {
	return func(c *appendConfig) {
		c.metadata = m
	}
}

// Append atomically appends events to a stream whose current revision must
// match expectedRevision (a revision >= 0, NoStream, StreamExists or
// AnyRevision). It returns the stream's new revision, which for an exact
// expectation is expectedRevision + len(events).
//
// A revision mismatch fails with an error matching ErrConcurrencyConflict
// and writes nothing. Backend failures match ErrStoreIO.
func (s *EventStore) Append(ctx context.Context, streamID string, expectedRevision int64, events []interface{}, opts ...AppendOption) (int64, error) {
	if streamID == "" {
		return NoStream, ErrEmptyStreamID
	}
	if len(events) == 0 {
		return NoStream, ErrNoEvents
	}

	cfg := appendConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	records := make([]adapters.EventRecord, len(events))
	for i, event := range events {
		eventType := GetEventType(event)
		if eventType == "" {
			return NoStream, NewSerializationError("", "serialize", fmt.Errorf("cannot determine type of event %d", i))
		}
		data, err := s.serializer.Serialize(event)
		if err != nil {
			return NoStream, err
		}
		records[i] = adapters.EventRecord{
			Type:     eventType,
			Data:     data,
			Metadata: cfg.metadata.toAdapter(),
		}
	}

	stored, err := s.adapter.Append(ctx, streamID, records, expectedRevision)
	if err != nil {
		return NoStream, s.classifyAppendError(streamID, expectedRevision, err)
	}

	revision := stored[len(stored)-1].Revision
	s.logger.Debug("events appended",
		"stream", streamID,
		"expected", adapters.RevisionString(expectedRevision),
		"revision", revision,
		"count", len(stored))

	s.publish(ctx, streamID, stored)
	return revision, nil
}

func (s *EventStore) classifyAppendError(streamID string, expected int64, err error) error {
	switch {
	case errors.Is(err, ErrConcurrencyConflict):
		s.logger.Warn("append conflict", "stream", streamID, "expected", adapters.RevisionString(expected), "error", err)
		return err
	case errors.Is(err, ErrEmptyStreamID), errors.Is(err, ErrNoEvents), errors.Is(err, ErrInvalidRevision):
		return err
	default:
		s.logger.Error("append failed", "stream", streamID, "error", err)
		return NewStoreIOError("append", streamID, err)
	}
}

func (s *EventStore) publish(ctx context.Context, streamID string, stored []adapters.StoredEvent) {
	if s.publisher == nil {
		return
	}

	messages := make([]Message, len(stored))
	for i, se := range stored {
		messages[i] = MessageFromStored(se)
	}

	if err := s.publisher.Publish(ctx, messages); err != nil {
		s.logger.Error("publish failed", "stream", streamID, "count", len(messages), "error", err)
	}
}

// StreamInfo returns metadata about a stream. A missing stream matches ErrStreamNotFound.
func (s *EventStore) StreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	info, err := s.adapter.GetStreamInfo(ctx, streamID)
	if err != nil {
		if errors.Is(err, ErrStreamNotFound) {
			return nil, err
		}
		return nil, NewStoreIOError("read", streamID, err)
	}
	return info, nil
}

// Initialize prepares the backend (creates tables for SQL adapters).
func (s *EventStore) Initialize(ctx context.Context) error {
	return s.adapter.Initialize(ctx)
}

// Ping checks backend health when the adapter supports it.
func (s *EventStore) Ping(ctx context.Context) error {
	if hc, ok := s.adapter.(adapters.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}

// Close closes the adapter.
func (s *EventStore) Close() error {
	return s.adapter.Close()
}
