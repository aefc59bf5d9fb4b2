package cartflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eventdriven/cartflow/adapters"
	"github.com/eventdriven/cartflow/adapters/memory"
)

// A minimal tally aggregate used to exercise the generic machinery.

type tallyOpened struct {
	ID string `json:"id"`
}

type tallyIncremented struct {
	By int `json:"by"`
}

type tallyClosed struct{}

func (tallyClosed) EventType() string { return "TallyClosed" }

type tally struct {
	ID     string
	Total  int
	Closed bool
}

func initialTally() tally { return tally{} }

func evolveTally(state tally, event interface{}) tally {
	switch e := event.(type) {
	case tallyOpened:
		return tally{ID: e.ID}
	case tallyIncremented:
		state.Total += e.By
		return state
	case tallyClosed:
		state.Closed = true
		return state
	default:
		panic(&UnknownEventError{Aggregate: "tally", Event: event})
	}
}

func increment(by int) Decide[tally] {
	return func(state tally) ([]interface{}, error) {
		if state.Closed {
			return nil, NewInvalidOperationError("increment", "tally is closed")
		}
		return []interface{}{tallyIncremented{By: by}}, nil
	}
}

func newTestStore(opts ...Option) (*EventStore, *memory.MemoryAdapter) {
	adapter := memory.NewAdapter()
	serializer := NewJSONSerializer()
	serializer.RegisterAll(tallyOpened{}, tallyIncremented{}, tallyClosed{})

	store := New(adapter, append([]Option{WithSerializer(serializer)}, opts...)...)
	return store, adapter
}

// failingAdapter fails every call with err.
type failingAdapter struct {
	err error
}

func (f *failingAdapter) Append(context.Context, string, []adapters.EventRecord, int64) ([]adapters.StoredEvent, error) {
	return nil, f.err
}

func (f *failingAdapter) Load(context.Context, string, int64) ([]adapters.StoredEvent, error) {
	return nil, f.err
}

func (f *failingAdapter) GetStreamInfo(context.Context, string) (*adapters.StreamInfo, error) {
	return nil, f.err
}

func (f *failingAdapter) GetLastPosition(context.Context) (uint64, error) { return 0, f.err }
func (f *failingAdapter) Initialize(context.Context) error                 { return f.err }
func (f *failingAdapter) Close() error                                      { return nil }

// interleavingAdapter runs hook once, right before the first Append it
// forwards, simulating a concurrent writer landing between read and append.
type interleavingAdapter struct {
	adapters.EventStoreAdapter
	once sync.Once
	hook func()
}

func (a *interleavingAdapter) Append(ctx context.Context, streamID string, events []adapters.EventRecord, expected int64) ([]adapters.StoredEvent, error) {
	a.once.Do(a.hook)
	return a.EventStoreAdapter.Append(ctx, streamID, events, expected)
}

// recordingLogger keeps every message for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) log(level, msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf("%s %s %v", level, msg, args))
}

func (l *recordingLogger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args...) }
func (l *recordingLogger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args...) }
func (l *recordingLogger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args...) }

func (l *recordingLogger) has(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

var errBackendDown = errors.New("backend down")
