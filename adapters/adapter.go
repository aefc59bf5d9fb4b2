// Package adapters defines the contract between the cartflow event store and
// the durable log backends that persist streams.
package adapters

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by every backend.
// Adapters return these (or errors matching them via errors.Is) so the event
// store can classify failures without knowing which backend produced them.
var (
	// ErrConcurrencyConflict is returned when the expected revision does not match.
	ErrConcurrencyConflict = errors.New("cartflow: concurrency conflict")

	// ErrStreamNotFound is returned when a stream does not exist.
	ErrStreamNotFound = errors.New("cartflow: stream not found")

	// ErrEmptyStreamID is returned when an empty stream ID is provided.
	ErrEmptyStreamID = errors.New("cartflow: stream ID is required")

	// ErrNoEvents is returned when attempting to append zero events.
	ErrNoEvents = errors.New("cartflow: no events to append")

	// ErrInvalidRevision is returned when an expected revision is neither a
	// sentinel nor a non-negative revision.
	ErrInvalidRevision = errors.New("cartflow: invalid expected revision")

	// ErrAdapterClosed is returned when operations are attempted on a closed adapter.
	ErrAdapterClosed = errors.New("cartflow: adapter is closed")
)

// Metadata carries contextual information alongside an event.
type Metadata struct {
	// CorrelationID links related events across services.
	CorrelationID string `json:"correlationId,omitempty"`

	// CausationID identifies the command or event that caused this event.
	CausationID string `json:"causationId,omitempty"`

	// UserID identifies who triggered this event.
	UserID string `json:"userId,omitempty"`

	// Custom holds any additional metadata.
	Custom map[string]string `json:"custom,omitempty"`
}

// StoredEvent is a persisted event as returned by a backend.
type StoredEvent struct {
	// ID is the unique event identifier.
	ID string

	// StreamID is the stream this event belongs to.
	StreamID string

	// Type is the event type identifier.
	Type string

	// Data is the serialized event payload.
	Data []byte

	// Metadata contains contextual information.
	Metadata Metadata

	// Revision is the zero-based position within the stream.
	Revision int64

	// GlobalPosition orders events across all streams.
	GlobalPosition uint64

	// Timestamp is when the event was stored.
	Timestamp time.Time
}

// StreamInfo describes a stream.
type StreamInfo struct {
	StreamID string

	// Category is the entity kind (the part of the stream ID before the first hyphen).
	Category string

	// Revision is the zero-based index of the last event in the stream.
	Revision int64

	EventCount int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EventRecord is an event waiting to be appended.
type EventRecord struct {
	Type     string
	Data     []byte
	Metadata Metadata
}

// EventStoreAdapter is the interface durable log backends implement.
type EventStoreAdapter interface {
	// Append atomically appends events to a stream if its current revision
	// matches expectedRevision:
	//   - NoStream (-1): the stream must not exist
	//   - AnyRevision (-2): no check
	//   - StreamExists (-3): the stream must exist
	//   - n >= 0: the last event of the stream must be at revision n
	// On mismatch nothing is written and an error matching
	// ErrConcurrencyConflict is returned.
	Append(ctx context.Context, streamID string, events []EventRecord, expectedRevision int64) ([]StoredEvent, error)

	// Load returns the events of a stream whose revision is >= fromRevision,
	// in append order. A missing stream yields an empty slice and no error.
	Load(ctx context.Context, streamID string, fromRevision int64) ([]StoredEvent, error)

	// GetStreamInfo returns metadata about a stream.
	// Returns ErrStreamNotFound if the stream does not exist.
	GetStreamInfo(ctx context.Context, streamID string) (*StreamInfo, error)

	// GetLastPosition returns the global position of the last stored event,
	// or 0 when the store is empty.
	GetLastPosition(ctx context.Context) (uint64, error)

	// Initialize prepares the backend (schema creation etc.).
	Initialize(ctx context.Context) error

	// Close releases any resources held by the adapter.
	Close() error
}

// HealthChecker is implemented by adapters that can report their health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
