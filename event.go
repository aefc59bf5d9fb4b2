package cartflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/eventdriven/cartflow/adapters"
)

// Revision sentinels accepted as the expected revision of an append.
// Stream revisions are zero-based: the first event of a stream is at revision
// 0, and NoStream (-1) is also the revision reported for a missing stream.
const (
	// NoStream requires the stream to not exist (create).
	NoStream = adapters.NoStream

	// AnyRevision appends unconditionally. The aggregate path never uses it.
	AnyRevision = adapters.AnyRevision

	// StreamExists requires the stream to exist, at any revision.
	StreamExists = adapters.StreamExists
)

// StreamName identifies a stream as "<kind>-<id>", e.g. "shopping_cart-<uuid>".
type StreamName struct {
	Kind string
	ID   string
}

// NewStreamName creates a StreamName.
func NewStreamName(kind, id string) StreamName {
	return StreamName{Kind: kind, ID: id}
}

// ParseStreamName splits "kind-id" on the first hyphen.
func ParseStreamName(s string) (StreamName, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return StreamName{}, fmt.Errorf("cartflow: invalid stream name %q, expected 'kind-id'", s)
	}
	return StreamName{Kind: parts[0], ID: parts[1]}, nil
}

// String returns "kind-id".
func (s StreamName) String() string {
	return BuildStreamName(s.Kind, s.ID)
}

// Validate checks that both parts are set.
func (s StreamName) Validate() error {
	if s.Kind == "" {
		return fmt.Errorf("cartflow: stream kind is required")
	}
	if s.ID == "" {
		return fmt.Errorf("cartflow: stream id is required")
	}
	return nil
}

// Metadata carries contextual information stored alongside each event.
type Metadata struct {
	CorrelationID string            `json:"correlationId,omitempty"`
	CausationID   string            `json:"causationId,omitempty"`
	UserID        string            `json:"userId,omitempty"`
	Custom        map[string]string `json:"custom,omitempty"`
}

// WithCorrelationID returns a copy with the correlation ID set.
func (m Metadata) WithCorrelationID(id string) Metadata {
	m.CorrelationID = id
	return m
}

// WithCausationID returns a copy with the causation ID set.
func (m Metadata) WithCausationID(id string) Metadata {
	m.CausationID = id
	return m
}

// WithUserID returns a copy with the user ID set.
func (m Metadata) WithUserID(id string) Metadata {
	m.UserID = id
	return m
}

// WithCustom returns a copy with a custom key added. The receiver's map is not modified.
func (m Metadata) WithCustom(key, value string) Metadata {
	custom := make(map[string]string, len(m.Custom)+1)
	for k, v := range m.Custom {
		custom[k] = v
	}
	custom[key] = value
	m.Custom = custom
	return m
}

// IsEmpty reports whether no field is set.
func (m Metadata) IsEmpty() bool {
	return m.CorrelationID == "" && m.CausationID == "" && m.UserID == "" && len(m.Custom) == 0
}

func (m Metadata) toAdapter() adapters.Metadata {
	return adapters.Metadata{
		CorrelationID: m.CorrelationID,
		CausationID:   m.CausationID,
		UserID:        m.UserID,
		Custom:        m.Custom,
	}
}

func metadataFromAdapter(m adapters.Metadata) Metadata {
	return Metadata{
		CorrelationID: m.CorrelationID,
		CausationID:   m.CausationID,
		UserID:        m.UserID,
		Custom:        m.Custom,
	}
}

// Event is a stored event with its payload decoded into a Go value.
type Event struct {
	ID       string
	StreamID string
	Type     string

	// Data is the decoded payload, a value of the registered Go type.
	Data interface{}

	Metadata Metadata

	// Revision is the zero-based position within the stream.
	Revision int64

	GlobalPosition uint64
	Timestamp      time.Time
}

// EventFromStored builds an Event from an adapter record and a decoded payload.
func EventFromStored(stored adapters.StoredEvent, data interface{}) Event {
	return Event{
		ID:             stored.ID,
		StreamID:       stored.StreamID,
		Type:           stored.Type,
		Data:           data,
		Metadata:       metadataFromAdapter(stored.Metadata),
		Revision:       stored.Revision,
		GlobalPosition: stored.GlobalPosition,
		Timestamp:      stored.Timestamp,
	}
}

// Payloads returns the decoded payloads of events, in order.
func Payloads(events []Event) []interface{} {
	out := make([]interface{}, len(events))
	for i, e := range events {
		out[i] = e.Data
	}
	return out
}
