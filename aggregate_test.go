package cartflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventsOf(payloads ...interface{}) []Event {
	events := make([]Event, len(payloads))
	for i, p := range payloads {
		events[i] = Event{Data: p, Revision: int64(i)}
	}
	return events
}

func TestFold(t *testing.T) {
	t.Run("empty sequence yields initial state and no stream", func(t *testing.T) {
		result := Fold(initialTally, evolveTally, nil)

		assert.Equal(t, tally{}, result.State)
		assert.False(t, result.Exists)
		assert.Equal(t, NoStream, result.Revision)
	})

	t.Run("left folds every event", func(t *testing.T) {
		result := Fold(initialTally, evolveTally, eventsOf(tallyOpened{ID: "a"}, tallyIncremented{By: 2}, tallyIncremented{By: 5}))

		assert.Equal(t, tally{ID: "a", Total: 7}, result.State)
		assert.True(t, result.Exists)
		assert.Equal(t, int64(2), result.Revision)
	})

	t.Run("deterministic", func(t *testing.T) {
		events := eventsOf(tallyOpened{ID: "a"}, tallyIncremented{By: 1}, tallyClosed{}, tallyIncremented{By: 4})

		first := Fold(initialTally, evolveTally, events)
		second := Fold(initialTally, evolveTally, events)

		assert.Equal(t, first, second)
	})

	t.Run("existing stream whose state equals the initial state still exists", func(t *testing.T) {
		result := Fold(initialTally, evolveTally, eventsOf(tallyOpened{}))

		assert.Equal(t, initialTally(), result.State)
		assert.True(t, result.Exists)
	})

	t.Run("unknown event panics", func(t *testing.T) {
		assert.PanicsWithError(t, "cartflow: tally cannot evolve on unknown event string", func() {
			Fold(initialTally, evolveTally, eventsOf("nope"))
		})
	})
}

func TestFoldPayloads(t *testing.T) {
	state := FoldPayloads(tally{ID: "a", Total: 1}, evolveTally, tallyIncremented{By: 2}, tallyClosed{})
	assert.Equal(t, tally{ID: "a", Total: 3, Closed: true}, state)
}

func TestAggregateStream(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	_, err := store.Append(ctx, "tally-1", NoStream, []interface{}{tallyOpened{ID: "1"}, tallyIncremented{By: 4}})
	require.NoError(t, err)

	result, err := AggregateStream(ctx, store, "tally-1", initialTally, evolveTally)
	require.NoError(t, err)
	assert.Equal(t, tally{ID: "1", Total: 4}, result.State)
	assert.Equal(t, int64(1), result.Revision)

	missing, err := AggregateStream(ctx, store, "tally-2", initialTally, evolveTally)
	require.NoError(t, err)
	assert.False(t, missing.Exists)

	_, err = AggregateStream(ctx, New(&failingAdapter{err: errBackendDown}), "tally-1", initialTally, evolveTally)
	assert.ErrorIs(t, err, ErrStoreIO)
}
