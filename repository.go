package cartflow

import (
	"context"
	"errors"
)

// Repository binds an aggregate's initial and evolve functions to a stream
// kind and runs read-fold-decide-append cycles against an EventStore.
// It keeps no state between calls: every operation re-reads its stream.
type Repository[S any] struct {
	store   *EventStore
	kind    string
	initial func() S
	evolve  Evolve[S]
	logger  Logger
}

type repositoryConfig struct {
	logger Logger
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*repositoryConfig)

// WithRepositoryLogger sets the repository's logger.
func WithRepositoryLogger(l Logger) RepositoryOption {
	return func(c *repositoryConfig) {
		c.logger = l
	}
}

// NewRepository creates a Repository for streams named "<kind>-<id>".
func NewRepository[S any](store *EventStore, kind string, initial func() S, evolve Evolve[S], opts ...RepositoryOption) *Repository[S] {
	cfg := repositoryConfig{logger: NopLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Repository[S]{
		store:   store,
		kind:    kind,
		initial: initial,
		evolve:  evolve,
		logger:  cfg.logger,
	}
}

// Kind returns the stream kind.
func (r *Repository[S]) Kind() string {
	return r.kind
}

// StreamName returns the stream name for id.
func (r *Repository[S]) StreamName(id string) string {
	return BuildStreamName(r.kind, id)
}

// Get rebuilds the entity and returns it with its revision.
// A stream that was never written fails with ErrNotFound.
func (r *Repository[S]) Get(ctx context.Context, id string) (S, int64, error) {
	stream := r.StreamName(id)

	folded, err := AggregateStream(ctx, r.store, stream, r.initial, r.evolve)
	if err != nil {
		return folded.State, NoStream, err
	}
	if !folded.Exists {
		return folded.State, NoStream, NewNotFoundError(stream)
	}
	return folded.State, folded.Revision, nil
}

// Add creates the entity's stream with events. It fails with
// ErrAlreadyExists if the stream already exists.
func (r *Repository[S]) Add(ctx context.Context, id string, events []interface{}, opts ...AppendOption) (int64, error) {
	stream := r.StreamName(id)

	rev, err := r.store.Append(ctx, stream, NoStream, events, opts...)
	if errors.Is(err, ErrConcurrencyConflict) {
		r.logger.Info("create rejected, stream exists", "stream", stream)
		return NoStream, NewAlreadyExistsError(stream, err)
	}
	return rev, err
}

// Decide computes the events a command produces from the current state, or
// rejects the command with an error.
type Decide[S any] func(state S) ([]interface{}, error)

// GetAndUpdate reads and folds the entity, runs decide and appends its
// events at the revision observed during the read.
//
// Failure modes:
//   - ErrNotFound if the stream was never written
//   - ErrPreconditionFailed if expected is set and does not match the
//     revision that was read, or if the append loses a race while the
//     caller had presented a revision
//   - ErrConcurrencyConflict if the append loses a race and the caller had
//     not presented a revision
//   - any error returned by decide, in which case nothing is appended
//
// Conflicts are never retried here: re-running decide against newer state
// could apply a command the caller did not intend.
//
// If decide returns no events nothing is appended and the current revision
// is returned.
func (r *Repository[S]) GetAndUpdate(ctx context.Context, id string, expected Expectation, decide Decide[S], opts ...AppendOption) (int64, error) {
	stream := r.StreamName(id)

	folded, err := AggregateStream(ctx, r.store, stream, r.initial, r.evolve)
	if err != nil {
		return NoStream, err
	}
	if !folded.Exists {
		return NoStream, NewNotFoundError(stream)
	}

	if want, ok := expected.Revision(); ok && want != folded.Revision {
		r.logger.Info("stale revision presented", "stream", stream, "expected", want, "actual", folded.Revision)
		return folded.Revision, NewPreconditionFailedError(stream, want, folded.Revision)
	}

	events, err := decide(folded.State)
	if err != nil {
		return folded.Revision, err
	}
	if len(events) == 0 {
		return folded.Revision, nil
	}

	rev, err := r.store.Append(ctx, stream, folded.Revision, events, opts...)
	if err != nil {
		var conflict *ConcurrencyError
		if expected.IsSet() && errors.As(err, &conflict) {
			return NoStream, NewPreconditionFailedError(stream, conflict.ExpectedRevision, conflict.ActualRevision)
		}
		return NoStream, err
	}
	return rev, nil
}
