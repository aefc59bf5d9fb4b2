// Package memory provides an in-memory event store adapter.
// It is thread-safe and intended for tests, demos and the CLI's memory driver.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/eventdriven/cartflow/adapters"
	"github.com/google/uuid"
)

// Ensure MemoryAdapter implements the adapter interfaces.
var (
	_ adapters.EventStoreAdapter = (*MemoryAdapter)(nil)
	_ adapters.HealthChecker     = (*MemoryAdapter)(nil)
)

// MemoryAdapter keeps every stream in process memory.
// The compare-and-swap of Append runs under a single write lock, so two
// appends predicated on the same revision can never both succeed.
type MemoryAdapter struct {
	mu             sync.RWMutex
	streams        map[string]*streamData
	globalEvents   []adapters.StoredEvent
	globalPosition uint64
	closed         bool
	now            func() time.Time
}

type streamData struct {
	info   adapters.StreamInfo
	events []adapters.StoredEvent
}

// Option configures a MemoryAdapter.
type Option func(*MemoryAdapter)

// WithClock overrides the clock used to timestamp stored events.
func WithClock(now func() time.Time) Option {
	return func(a *MemoryAdapter) {
		a.now = now
	}
}

// NewAdapter creates a new in-memory adapter.
func NewAdapter(opts ...Option) *MemoryAdapter {
	a := &MemoryAdapter{
		streams:      make(map[string]*streamData),
		globalEvents: make([]adapters.StoredEvent, 0),
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Initialize is a no-op for the memory adapter.
func (a *MemoryAdapter) Initialize(ctx context.Context) error {
	return ctx.Err()
}

// Append stores events with optimistic concurrency control.
func (a *MemoryAdapter) Append(ctx context.Context, streamID string, events []adapters.EventRecord, expectedRevision int64) ([]adapters.StoredEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if streamID == "" {
		return nil, adapters.ErrEmptyStreamID
	}

	if len(events) == 0 {
		return nil, adapters.ErrNoEvents
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}

	stream, exists := a.streams[streamID]
	current := adapters.NoStream
	if exists {
		current = stream.info.Revision
	}

	if err := adapters.CheckRevision(streamID, expectedRevision, current, exists); err != nil {
		return nil, err
	}

	now := a.now()
	if !exists {
		stream = &streamData{
			info: adapters.StreamInfo{
				StreamID:  streamID,
				Category:  adapters.ExtractCategory(streamID),
				Revision:  adapters.NoStream,
				CreatedAt: now,
			},
		}
		a.streams[streamID] = stream
	}

	stored := make([]adapters.StoredEvent, len(events))
	for i, event := range events {
		a.globalPosition++
		current++

		stored[i] = adapters.StoredEvent{
			ID:             uuid.New().String(),
			StreamID:       streamID,
			Type:           event.Type,
			Data:           copyBytes(event.Data),
			Metadata:       event.Metadata,
			Revision:       current,
			GlobalPosition: a.globalPosition,
			Timestamp:      now,
		}
	}

	stream.events = append(stream.events, stored...)
	a.globalEvents = append(a.globalEvents, stored...)

	stream.info.Revision = current
	stream.info.EventCount = int64(len(stream.events))
	stream.info.UpdatedAt = now

	return stored, nil
}

// Load returns the events of a stream starting at fromRevision.
func (a *MemoryAdapter) Load(ctx context.Context, streamID string, fromRevision int64) ([]adapters.StoredEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if streamID == "" {
		return nil, adapters.ErrEmptyStreamID
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}

	stream, exists := a.streams[streamID]
	if !exists {
		return []adapters.StoredEvent{}, nil
	}

	events := make([]adapters.StoredEvent, 0, len(stream.events))
	for _, event := range stream.events {
		if event.Revision >= fromRevision {
			events = append(events, event)
		}
	}

	return events, nil
}

// GetStreamInfo returns metadata about a stream.
func (a *MemoryAdapter) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}

	stream, exists := a.streams[streamID]
	if !exists {
		return nil, adapters.NewStreamNotFoundError(streamID)
	}

	info := stream.info
	return &info, nil
}

// GetLastPosition returns the global position of the last stored event.
func (a *MemoryAdapter) GetLastPosition(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return 0, adapters.ErrAdapterClosed
	}

	return a.globalPosition, nil
}

// Ping reports whether the adapter is still open.
func (a *MemoryAdapter) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return adapters.ErrAdapterClosed
	}
	return nil
}

// Close marks the adapter closed. Subsequent calls fail with ErrAdapterClosed.
func (a *MemoryAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	return nil
}

// Reset clears all data. Useful for testing.
func (a *MemoryAdapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.streams = make(map[string]*streamData)
	a.globalEvents = make([]adapters.StoredEvent, 0)
	a.globalPosition = 0
}

// EventCount returns the total number of events stored.
func (a *MemoryAdapter) EventCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.globalEvents)
}

// StreamCount returns the number of streams.
func (a *MemoryAdapter) StreamCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.streams)
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
