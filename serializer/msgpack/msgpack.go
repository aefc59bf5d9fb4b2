// Package msgpack provides a MessagePack serializer for cartflow events.
//
// MessagePack produces smaller payloads than JSON. It shares
// cartflow.EventRegistry with the JSON serializer, so the same event
// registrations work with either format.
//
// Basic usage:
//
//	serializer := msgpack.NewSerializer()
//	serializer.RegisterAll(shoppingcart.Events()...)
//
//	store := cartflow.New(adapter, cartflow.WithSerializer(serializer))
package msgpack

import (
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/eventdriven/cartflow"
)

// Serializer is a MessagePack implementation of cartflow.Serializer.
// Deserializing a type that was never registered fails.
type Serializer struct {
	registry *cartflow.EventRegistry
}

// NewSerializer creates a new MessagePack Serializer with an empty registry.
func NewSerializer() *Serializer {
	return &Serializer{registry: cartflow.NewEventRegistry()}
}

// SerializerOption configures a Serializer.
type SerializerOption func(*Serializer)

// WithRegistry shares registry with the serializer.
func WithRegistry(registry *cartflow.EventRegistry) SerializerOption {
	return func(s *Serializer) {
		s.registry = registry
	}
}

// NewSerializerWithOptions creates a new Serializer with the given options.
func NewSerializerWithOptions(opts ...SerializerOption) *Serializer {
	s := NewSerializer()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register maps eventType to the Go type of example.
func (s *Serializer) Register(eventType string, example interface{}) {
	s.registry.Register(eventType, example)
}

// RegisterAll registers events under their cartflow type names.
func (s *Serializer) RegisterAll(examples ...interface{}) {
	s.registry.RegisterAll(examples...)
}

// Registry returns the type registry.
func (s *Serializer) Registry() *cartflow.EventRegistry {
	return s.registry
}

// Serialize converts an event to MessagePack bytes.
func (s *Serializer) Serialize(event interface{}) ([]byte, error) {
	if event == nil {
		return nil, cartflow.NewSerializationError("nil", "serialize", fmt.Errorf("event cannot be nil"))
	}

	data, err := msgpack.Marshal(event)
	if err != nil {
		return nil, cartflow.NewSerializationError(cartflow.GetEventType(event), "serialize", err)
	}

	return data, nil
}

// Deserialize converts MessagePack bytes back to a value of the type
// registered for eventType.
func (s *Serializer) Deserialize(data []byte, eventType string) (interface{}, error) {
	if len(data) == 0 {
		return nil, cartflow.NewSerializationError(eventType, "deserialize", fmt.Errorf("data cannot be empty"))
	}

	ptr, err := s.registry.New(eventType)
	if err != nil {
		return nil, err
	}

	if err := msgpack.Unmarshal(data, ptr); err != nil {
		return nil, cartflow.NewSerializationError(eventType, "deserialize", err)
	}

	return reflect.ValueOf(ptr).Elem().Interface(), nil
}
