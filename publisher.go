package cartflow

import (
	"context"
	"time"

	"github.com/eventdriven/cartflow/adapters"
)

// Message is a committed event prepared for delivery outside the process.
type Message struct {
	EventID   string
	StreamID  string
	EventType string
	Revision  int64
	Payload   []byte
	Metadata  Metadata
	Timestamp time.Time
}

// MessageFromStored builds a Message from an adapter record.
func MessageFromStored(stored adapters.StoredEvent) Message {
	return Message{
		EventID:   stored.ID,
		StreamID:  stored.StreamID,
		EventType: stored.Type,
		Revision:  stored.Revision,
		Payload:   stored.Data,
		Metadata:  metadataFromAdapter(stored.Metadata),
		Timestamp: stored.Timestamp,
	}
}

// Publisher delivers committed events to an external broker.
// The EventStore calls it synchronously after a successful append; a
// publish failure is logged and never undoes the append.
type Publisher interface {
	Publish(ctx context.Context, messages []Message) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, messages []Message) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, messages []Message) error {
	return f(ctx, messages)
}
