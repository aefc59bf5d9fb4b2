package adapters

import (
	"fmt"
	"strings"
)

// Revision sentinels for optimistic concurrency control.
// Real revisions are zero-based; -1 doubles as the revision of a stream that
// does not exist.
const (
	// NoStream requires the stream to not exist.
	NoStream int64 = -1

	// AnyRevision skips the revision check entirely.
	AnyRevision int64 = -2

	// StreamExists requires the stream to exist, whatever its revision.
	StreamExists int64 = -3
)

// ExtractCategory returns the entity kind of a stream ID, i.e. everything
// before the first hyphen ("shopping_cart-42" -> "shopping_cart").
func ExtractCategory(streamID string) string {
	if streamID == "" {
		return ""
	}
	parts := strings.SplitN(streamID, "-", 2)
	return parts[0]
}

// ConcurrencyError describes a failed compare-and-swap on a stream revision.
type ConcurrencyError struct {
	StreamID         string
	ExpectedRevision int64
	ActualRevision   int64
}

// NewConcurrencyError creates a new ConcurrencyError.
func NewConcurrencyError(streamID string, expected, actual int64) *ConcurrencyError {
	return &ConcurrencyError{
		StreamID:         streamID,
		ExpectedRevision: expected,
		ActualRevision:   actual,
	}
}

// Error implements the error interface.
func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("cartflow: concurrency conflict on stream %q: expected revision %s, actual %d",
		e.StreamID, RevisionString(e.ExpectedRevision), e.ActualRevision)
}

// Is reports whether target is ErrConcurrencyConflict.
func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// StreamNotFoundError names the stream that was missing.
type StreamNotFoundError struct {
	StreamID string
}

// NewStreamNotFoundError creates a new StreamNotFoundError.
func NewStreamNotFoundError(streamID string) *StreamNotFoundError {
	return &StreamNotFoundError{StreamID: streamID}
}

// Error implements the error interface.
func (e *StreamNotFoundError) Error() string {
	return fmt.Sprintf("cartflow: stream %q not found", e.StreamID)
}

// Is reports whether target is ErrStreamNotFound.
func (e *StreamNotFoundError) Is(target error) bool {
	return target == ErrStreamNotFound
}

// RevisionString renders a revision or one of the sentinels for logs and errors.
func RevisionString(rev int64) string {
	switch rev {
	case NoStream:
		return "no-stream"
	case AnyRevision:
		return "any"
	case StreamExists:
		return "stream-exists"
	default:
		return fmt.Sprintf("%d", rev)
	}
}

// CheckRevision implements the compare step of the compare-and-swap shared
// by all adapters. current is the revision of the last event, or NoStream
// when exists is false.
func CheckRevision(streamID string, expected, current int64, exists bool) error {
	if !exists {
		current = NoStream
	}

	switch expected {
	case AnyRevision:
		return nil
	case NoStream:
		if exists {
			return NewConcurrencyError(streamID, expected, current)
		}
		return nil
	case StreamExists:
		if !exists {
			return NewConcurrencyError(streamID, expected, current)
		}
		return nil
	default:
		if expected < 0 {
			return ErrInvalidRevision
		}
		if current != expected {
			return NewConcurrencyError(streamID, expected, current)
		}
		return nil
	}
}

// NextRevision returns the revision a stream reaches after appending count
// events on top of current.
func NextRevision(current int64, count int) int64 {
	return current + int64(count)
}
