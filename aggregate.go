package cartflow

import "context"

// Evolve applies one event payload to a state and returns the next state.
// It must handle every event type its aggregate can emit and must not fail
// on historical data.
type Evolve[S any] func(state S, event interface{}) S

// FoldResult is the state rebuilt from a stream.
type FoldResult[S any] struct {
	State S

	// Revision is the revision of the last folded event, or NoStream.
	Revision int64

	// Exists distinguishes a stream that was never written from one whose
	// folded state happens to equal the initial state.
	Exists bool
}

// Fold left-folds the payloads of events through evolve, starting from
// initial(). The result depends only on the events.
func Fold[S any](initial func() S, evolve Evolve[S], events []Event) FoldResult[S] {
	result := FoldResult[S]{State: initial(), Revision: NoStream}
	for _, e := range events {
		result.State = evolve(result.State, e.Data)
		result.Revision = e.Revision
		result.Exists = true
	}
	return result
}

// FoldPayloads folds raw payloads. It is used where events have not been
// stored yet, e.g. to preview the state a decision would produce.
func FoldPayloads[S any](state S, evolve Evolve[S], payloads ...interface{}) S {
	for _, p := range payloads {
		state = evolve(state, p)
	}
	return state
}

// AggregateStream reads a stream and folds it.
func AggregateStream[S any](ctx context.Context, store *EventStore, streamID string, initial func() S, evolve Evolve[S]) (FoldResult[S], error) {
	read, err := store.Read(ctx, streamID)
	if err != nil {
		return FoldResult[S]{State: initial(), Revision: NoStream}, err
	}
	return Fold(initial, evolve, read.Events), nil
}
