// Package bdd provides Given-When-Then fixtures for aggregates built from
// an initial state, an evolve function and decide functions.
package bdd

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/eventdriven/cartflow"
)

// TB is an alias for testing.TB interface to allow mocking in tests
type TB = testing.TB

// TestFixture runs one decision against state folded from given events.
type TestFixture[S any] struct {
	t           TB
	initial     func() S
	evolve      cartflow.Evolve[S]
	givenEvents []interface{}
	state       S
	produced    []interface{}
	result      error
	executed    bool
}

// Given sets up the history the decision runs against.
func Given[S any](t TB, initial func() S, evolve cartflow.Evolve[S], events ...interface{}) *TestFixture[S] {
	t.Helper()
	return &TestFixture[S]{
		t:           t,
		initial:     initial,
		evolve:      evolve,
		givenEvents: events,
	}
}

// When folds the given events and runs decide on the result.
func (f *TestFixture[S]) When(decide cartflow.Decide[S]) *TestFixture[S] {
	f.t.Helper()

	f.state = cartflow.FoldPayloads(f.initial(), f.evolve, f.givenEvents...)
	f.produced, f.result = decide(f.state)
	f.executed = true

	return f
}

// Then asserts that the decision produced exactly the expected events.
func (f *TestFixture[S]) Then(expectedEvents ...interface{}) *TestFixture[S] {
	f.t.Helper()

	if !f.executed {
		f.t.Fatal("bdd: Then() must be called after When() - no command was executed")
	}

	if f.result != nil {
		f.t.Fatalf("Expected success but got error: %v", f.result)
	}

	if len(f.produced) != len(expectedEvents) {
		f.t.Fatalf("Expected %d events, got %d.\nExpected: %+v\nActual: %+v",
			len(expectedEvents), len(f.produced), expectedEvents, f.produced)
	}

	for i, expected := range expectedEvents {
		if !reflect.DeepEqual(f.produced[i], expected) {
			f.t.Errorf("Event %d mismatch:\nExpected: %+v\nActual: %+v",
				i, expected, f.produced[i])
		}
	}
	return f
}

// ThenState applies the produced events and hands the resulting state to check.
func (f *TestFixture[S]) ThenState(check func(t TB, state S)) {
	f.t.Helper()

	if !f.executed {
		f.t.Fatal("bdd: ThenState() must be called after When() - no command was executed")
	}

	if f.result != nil {
		f.t.Fatalf("Expected success but got error: %v", f.result)
	}

	check(f.t, cartflow.FoldPayloads(f.state, f.evolve, f.produced...))
}

// ThenError asserts that the decision failed with an error matching expectedErr.
func (f *TestFixture[S]) ThenError(expectedErr error) {
	f.t.Helper()

	if !f.executed {
		f.t.Fatal("bdd: ThenError() must be called after When() - no command was executed")
	}

	if f.result == nil {
		f.t.Fatal("Expected error but got success")
	}

	if !errors.Is(f.result, expectedErr) {
		f.t.Errorf("Expected error %v, got %v", expectedErr, f.result)
	}

	if len(f.produced) > 0 {
		f.t.Errorf("Expected no events alongside error, got %d: %+v", len(f.produced), f.produced)
	}
}

// ThenErrorContains asserts that the error message contains a substring.
func (f *TestFixture[S]) ThenErrorContains(substring string) {
	f.t.Helper()

	if !f.executed {
		f.t.Fatal("bdd: ThenErrorContains() must be called after When() - no command was executed")
	}

	if f.result == nil {
		f.t.Fatal("Expected error but got success")
	}

	if !strings.Contains(f.result.Error(), substring) {
		f.t.Errorf("Expected error containing %q, got %q", substring, f.result.Error())
	}
}

// ThenNoEvents asserts that the decision succeeded without producing events.
func (f *TestFixture[S]) ThenNoEvents() {
	f.t.Helper()

	if !f.executed {
		f.t.Fatal("bdd: ThenNoEvents() must be called after When() - no command was executed")
	}

	if f.result != nil {
		f.t.Fatalf("Expected success but got error: %v", f.result)
	}

	if len(f.produced) > 0 {
		f.t.Errorf("Expected no events, got %d: %+v", len(f.produced), f.produced)
	}
}

// CommandTestFixture provides BDD-style testing with command bus integration.
type CommandTestFixture struct {
	t           TB
	ctx         context.Context
	bus         *cartflow.CommandBus
	store       *cartflow.EventStore
	givenEvents []givenEvent
	result      cartflow.CommandResult
	err         error
	executed    bool
}

type givenEvent struct {
	streamID string
	event    interface{}
}

// GivenCommand creates a new command test fixture with a command bus.
func GivenCommand(t TB, bus *cartflow.CommandBus, store *cartflow.EventStore) *CommandTestFixture {
	t.Helper()
	return &CommandTestFixture{
		t:     t,
		ctx:   context.Background(),
		bus:   bus,
		store: store,
	}
}

// WithContext sets a custom context for the command execution.
func (f *CommandTestFixture) WithContext(ctx context.Context) *CommandTestFixture {
	f.ctx = ctx
	return f
}

// WithExistingEvents sets up initial events in the event store.
func (f *CommandTestFixture) WithExistingEvents(streamID string, events ...interface{}) *CommandTestFixture {
	for _, event := range events {
		f.givenEvents = append(f.givenEvents, givenEvent{streamID: streamID, event: event})
	}
	return f
}

// When stores the existing events and dispatches cmd.
func (f *CommandTestFixture) When(cmd cartflow.Command) *CommandTestFixture {
	f.t.Helper()

	if f.store != nil {
		for _, ge := range f.givenEvents {
			if _, err := f.store.Append(f.ctx, ge.streamID, cartflow.AnyRevision, []interface{}{ge.event}); err != nil {
				f.t.Fatalf("Failed to store given event: %v", err)
			}
		}
	}

	f.result, f.err = f.bus.Dispatch(f.ctx, cmd)
	f.executed = true
	return f
}

// ThenSucceeds asserts the command succeeded.
func (f *CommandTestFixture) ThenSucceeds() *CommandTestFixture {
	f.t.Helper()

	if !f.executed {
		f.t.Fatal("bdd: ThenSucceeds() must be called after When() - no command was dispatched")
	}

	if f.err != nil {
		f.t.Fatalf("Expected success but got error: %v", f.err)
	}

	return f
}

// ThenFails asserts the command failed with the expected error.
func (f *CommandTestFixture) ThenFails(expectedErr error) {
	f.t.Helper()

	if !f.executed {
		f.t.Fatal("bdd: ThenFails() must be called after When() - no command was dispatched")
	}

	if f.err == nil {
		f.t.Fatal("Expected failure but got success")
	}

	if !errors.Is(f.err, expectedErr) {
		f.t.Errorf("Expected error %v, got %v", expectedErr, f.err)
	}
}

// ThenReturnsAggregateID asserts the result contains the expected aggregate ID.
func (f *CommandTestFixture) ThenReturnsAggregateID(expected string) *CommandTestFixture {
	f.t.Helper()

	if !f.executed {
		f.t.Fatal("bdd: ThenReturnsAggregateID() must be called after When() - no command was dispatched")
	}

	if f.result.AggregateID != expected {
		f.t.Errorf("Expected aggregate ID %q, got %q", expected, f.result.AggregateID)
	}

	return f
}

// ThenReturnsRevision asserts the result carries the expected stream revision.
func (f *CommandTestFixture) ThenReturnsRevision(expected int64) *CommandTestFixture {
	f.t.Helper()

	if !f.executed {
		f.t.Fatal("bdd: ThenReturnsRevision() must be called after When() - no command was dispatched")
	}

	if f.result.Revision != expected {
		f.t.Errorf("Expected revision %d, got %d", expected, f.result.Revision)
	}

	return f
}

// ThenReturnsToken asserts the result's concurrency token.
func (f *CommandTestFixture) ThenReturnsToken(expected string) *CommandTestFixture {
	f.t.Helper()

	if !f.executed {
		f.t.Fatal("bdd: ThenReturnsToken() must be called after When() - no command was dispatched")
	}

	if got := f.result.Token(); got != expected {
		f.t.Errorf("Expected token %q, got %q", expected, got)
	}

	return f
}
