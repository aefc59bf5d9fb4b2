// Package assertions checks the contents of event streams in tests.
package assertions

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/eventdriven/cartflow"
)

// TB is an alias for testing.TB so callers can pass fakes.
type TB = testing.TB

// AssertEventTypes checks the stored type names in order.
func AssertEventTypes(t TB, events []cartflow.Event, types ...string) {
	t.Helper()

	if len(events) != len(types) {
		t.Fatalf("expected %d events, got %d", len(types), len(events))
	}
	for i, want := range types {
		if events[i].Type != want {
			t.Errorf("event %d: expected type %s, got %s", i, want, events[i].Type)
		}
	}
}

// AssertContiguous checks that revisions run 0, 1, 2... and that every
// event belongs to streamID.
func AssertContiguous(t TB, events []cartflow.Event, streamID string) {
	t.Helper()

	for i, e := range events {
		if e.Revision != int64(i) {
			t.Errorf("event %d: expected revision %d, got %d", i, i, e.Revision)
		}
		if e.StreamID != streamID {
			t.Errorf("event %d: expected stream %s, got %s", i, streamID, e.StreamID)
		}
	}
}

// AssertEventData checks that event holds a T equal to expected.
func AssertEventData[T any](t TB, event interface{}, expected T) {
	t.Helper()

	if e, ok := event.(cartflow.Event); ok {
		event = e.Data
	}
	actual, ok := event.(T)
	if !ok {
		t.Fatalf("event is not of expected type %T, got %T", expected, event)
	}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("event data mismatch:\nexpected: %+v\nactual:   %+v", expected, actual)
	}
}

// AssertContainsEvent checks that some payload equals expected.
func AssertContainsEvent[T any](t TB, events []cartflow.Event, expected T) {
	t.Helper()

	for _, e := range events {
		if actual, ok := e.Data.(T); ok && reflect.DeepEqual(actual, expected) {
			return
		}
	}
	t.Errorf("events do not contain %T %+v", expected, expected)
}

// DiffKind classifies an EventDiff.
type DiffKind int

const (
	// DiffMissing is an expected event that was not there.
	DiffMissing DiffKind = iota
	// DiffExtra is an event that was not expected.
	DiffExtra
	// DiffMismatch is an event whose payload differs.
	DiffMismatch
)

func (d DiffKind) String() string {
	switch d {
	case DiffMissing:
		return "missing"
	case DiffExtra:
		return "extra"
	case DiffMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// EventDiff is one difference between expected and actual payloads.
type EventDiff struct {
	Index    int
	Expected interface{}
	Actual   interface{}
	Kind     DiffKind
}

// DiffEvents compares payloads position by position.
func DiffEvents(expected, actual []interface{}) []EventDiff {
	var diffs []EventDiff
	n := len(expected)
	if len(actual) > n {
		n = len(actual)
	}

	for i := 0; i < n; i++ {
		switch {
		case i >= len(expected):
			diffs = append(diffs, EventDiff{Index: i, Actual: actual[i], Kind: DiffExtra})
		case i >= len(actual):
			diffs = append(diffs, EventDiff{Index: i, Expected: expected[i], Kind: DiffMissing})
		case !reflect.DeepEqual(expected[i], actual[i]):
			diffs = append(diffs, EventDiff{Index: i, Expected: expected[i], Actual: actual[i], Kind: DiffMismatch})
		}
	}
	return diffs
}

// FormatDiffs renders diffs for a test failure message.
func FormatDiffs(diffs []EventDiff) string {
	if len(diffs) == 0 {
		return "no differences"
	}

	var b strings.Builder
	b.WriteString("event differences:\n")
	for _, d := range diffs {
		fmt.Fprintf(&b, "  event %d (%s):\n", d.Index, d.Kind)
		if d.Kind != DiffExtra {
			fmt.Fprintf(&b, "    - %T %+v\n", d.Expected, d.Expected)
		}
		if d.Kind != DiffMissing {
			fmt.Fprintf(&b, "    + %T %+v\n", d.Actual, d.Actual)
		}
	}
	return b.String()
}

// AssertEventsEqual fails with a diff unless the stream's payloads equal
// expected.
func AssertEventsEqual(t TB, expected []interface{}, events []cartflow.Event) {
	t.Helper()

	if diffs := DiffEvents(expected, cartflow.Payloads(events)); len(diffs) > 0 {
		t.Error(FormatDiffs(diffs))
	}
}
