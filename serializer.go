package cartflow

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Serializer encodes event payloads for storage and decodes them back into
// the Go type registered for their event type.
type Serializer interface {
	Serialize(event interface{}) ([]byte, error)
	Deserialize(data []byte, eventType string) (interface{}, error)
}

// TypeNamer is implemented by events that carry an explicit type name.
type TypeNamer interface {
	EventType() string
}

// EventRegistry maps event type names to Go types.
type EventRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewEventRegistry creates an empty registry.
func NewEventRegistry() *EventRegistry {
	return &EventRegistry{types: make(map[string]reflect.Type)}
}

// Register maps eventType to the type of example.
func (r *EventRegistry) Register(eventType string, example interface{}) {
	t := reflect.TypeOf(example)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[eventType] = t
}

// RegisterAll registers every example under its GetEventType name.
func (r *EventRegistry) RegisterAll(examples ...interface{}) {
	for _, example := range examples {
		r.Register(GetEventType(example), example)
	}
}

// Lookup returns the Go type registered for eventType.
func (r *EventRegistry) Lookup(eventType string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[eventType]
	return t, ok
}

// RegisteredTypes returns the registered type names, sorted.
func (r *EventRegistry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns a pointer to a fresh zero value of the type registered for eventType.
func (r *EventRegistry) New(eventType string) (interface{}, error) {
	t, ok := r.Lookup(eventType)
	if !ok {
		return nil, NewEventTypeNotRegisteredError(eventType)
	}
	return reflect.New(t).Interface(), nil
}

// JSONSerializer is the default Serializer.
// Decoding an unregistered event type fails: evolve functions only know
// their own Go types, so there is no useful untyped fallback.
type JSONSerializer struct {
	registry *EventRegistry
}

// NewJSONSerializer creates a JSONSerializer with an empty registry.
func NewJSONSerializer() *JSONSerializer {
	return NewJSONSerializerWithRegistry(nil)
}

// NewJSONSerializerWithRegistry creates a JSONSerializer sharing registry.
func NewJSONSerializerWithRegistry(registry *EventRegistry) *JSONSerializer {
	if registry == nil {
		registry = NewEventRegistry()
	}
	return &JSONSerializer{registry: registry}
}

// Register adds an event type to the registry.
func (s *JSONSerializer) Register(eventType string, example interface{}) {
	s.registry.Register(eventType, example)
}

// RegisterAll registers events under their GetEventType names.
func (s *JSONSerializer) RegisterAll(examples ...interface{}) {
	s.registry.RegisterAll(examples...)
}

// Registry returns the underlying registry.
func (s *JSONSerializer) Registry() *EventRegistry {
	return s.registry
}

// Serialize encodes event as JSON.
func (s *JSONSerializer) Serialize(event interface{}) ([]byte, error) {
	if event == nil {
		return nil, NewSerializationError("nil", "serialize", fmt.Errorf("event cannot be nil"))
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, NewSerializationError(GetEventType(event), "serialize", err)
	}
	return data, nil
}

// Deserialize decodes data into a value of the type registered for eventType.
func (s *JSONSerializer) Deserialize(data []byte, eventType string) (interface{}, error) {
	if len(data) == 0 {
		return nil, NewSerializationError(eventType, "deserialize", fmt.Errorf("data cannot be empty"))
	}

	ptr, err := s.registry.New(eventType)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, NewSerializationError(eventType, "deserialize", err)
	}
	return reflect.ValueOf(ptr).Elem().Interface(), nil
}

// GetEventType returns the type name of event: its EventType() if it
// implements TypeNamer, otherwise the struct name.
func GetEventType(event interface{}) string {
	if event == nil {
		return ""
	}
	if named, ok := event.(TypeNamer); ok {
		return named.EventType()
	}

	t := reflect.TypeOf(event)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
