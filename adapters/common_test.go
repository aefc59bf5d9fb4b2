package adapters

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevisionConstants(t *testing.T) {
	assert.Equal(t, int64(-1), NoStream)
	assert.Equal(t, int64(-2), AnyRevision)
	assert.Equal(t, int64(-3), StreamExists)
}

func TestExtractCategory(t *testing.T) {
	tests := []struct {
		name     string
		streamID string
		expected string
	}{
		{name: "cart stream", streamID: "shopping_cart-7d3f", expected: "shopping_cart"},
		{name: "uuid with hyphens splits on first only", streamID: "shopping_cart-0b6e-4f2a-9c1d", expected: "shopping_cart"},
		{name: "no hyphen", streamID: "carts", expected: "carts"},
		{name: "empty", streamID: "", expected: ""},
		{name: "leading hyphen", streamID: "-orphan", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractCategory(tt.streamID))
		})
	}
}

func TestCheckRevision(t *testing.T) {
	tests := []struct {
		name     string
		expected int64
		current  int64
		exists   bool
		wantErr  error
	}{
		{name: "no stream on missing stream", expected: NoStream, current: NoStream, exists: false},
		{name: "no stream on existing stream", expected: NoStream, current: 0, exists: true, wantErr: ErrConcurrencyConflict},
		{name: "any on missing stream", expected: AnyRevision, exists: false},
		{name: "any on existing stream", expected: AnyRevision, current: 4, exists: true},
		{name: "stream exists on existing stream", expected: StreamExists, current: 2, exists: true},
		{name: "stream exists on missing stream", expected: StreamExists, exists: false, wantErr: ErrConcurrencyConflict},
		{name: "exact match", expected: 3, current: 3, exists: true},
		{name: "exact behind", expected: 2, current: 3, exists: true, wantErr: ErrConcurrencyConflict},
		{name: "exact ahead", expected: 5, current: 3, exists: true, wantErr: ErrConcurrencyConflict},
		{name: "exact zero on missing stream", expected: 0, exists: false, wantErr: ErrConcurrencyConflict},
		{name: "unknown sentinel", expected: -9, current: 0, exists: true, wantErr: ErrInvalidRevision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRevision("shopping_cart-1", tt.expected, tt.current, tt.exists)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("conflict reports no-stream as actual revision for missing stream", func(t *testing.T) {
		err := CheckRevision("shopping_cart-1", 0, 17, false)

		var concErr *ConcurrencyError
		require.True(t, errors.As(err, &concErr))
		assert.Equal(t, "shopping_cart-1", concErr.StreamID)
		assert.Equal(t, int64(0), concErr.ExpectedRevision)
		assert.Equal(t, NoStream, concErr.ActualRevision)
	})
}

func TestConcurrencyError(t *testing.T) {
	err := NewConcurrencyError("shopping_cart-1", NoStream, 2)

	assert.Equal(t, `cartflow: concurrency conflict on stream "shopping_cart-1": expected revision no-stream, actual 2`, err.Error())
	assert.True(t, errors.Is(err, ErrConcurrencyConflict))
	assert.False(t, errors.Is(err, ErrStreamNotFound))
}

func TestStreamNotFoundError(t *testing.T) {
	err := NewStreamNotFoundError("shopping_cart-1")

	assert.Equal(t, `cartflow: stream "shopping_cart-1" not found`, err.Error())
	assert.True(t, errors.Is(err, ErrStreamNotFound))
}

func TestRevisionString(t *testing.T) {
	assert.Equal(t, "no-stream", RevisionString(NoStream))
	assert.Equal(t, "any", RevisionString(AnyRevision))
	assert.Equal(t, "stream-exists", RevisionString(StreamExists))
	assert.Equal(t, "12", RevisionString(12))
}

func TestNextRevision(t *testing.T) {
	assert.Equal(t, int64(0), NextRevision(NoStream, 1))
	assert.Equal(t, int64(5), NextRevision(2, 3))
}
