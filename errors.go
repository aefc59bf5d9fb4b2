package cartflow

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/eventdriven/cartflow/adapters"
)

// Sentinel errors. Use errors.Is to check for them; the typed errors below
// carry details and match the corresponding sentinel.
var (
	// ErrNotFound indicates the aggregate addressed by an update does not exist.
	ErrNotFound = errors.New("cartflow: not found")

	// ErrAlreadyExists indicates a create was attempted on an existing stream.
	ErrAlreadyExists = errors.New("cartflow: already exists")

	// ErrConcurrencyConflict indicates an append lost the compare-and-swap race.
	ErrConcurrencyConflict = adapters.ErrConcurrencyConflict

	// ErrPreconditionFailed indicates a caller-presented revision token is stale.
	ErrPreconditionFailed = errors.New("cartflow: precondition failed")

	// ErrInvalidOperation indicates a command conflicts with the aggregate's state.
	ErrInvalidOperation = errors.New("cartflow: invalid operation")

	// ErrInsufficientQuantity indicates a removal exceeds the quantity held.
	ErrInsufficientQuantity = errors.New("cartflow: insufficient quantity")

	// ErrStoreIO indicates the backend failed to read or write.
	ErrStoreIO = errors.New("cartflow: store i/o failure")

	// ErrInvalidToken indicates a revision token could not be parsed.
	ErrInvalidToken = errors.New("cartflow: invalid revision token")

	ErrStreamNotFound  = adapters.ErrStreamNotFound
	ErrEmptyStreamID   = adapters.ErrEmptyStreamID
	ErrNoEvents        = adapters.ErrNoEvents
	ErrInvalidRevision = adapters.ErrInvalidRevision
	ErrAdapterClosed   = adapters.ErrAdapterClosed

	// ErrSerializationFailed indicates event encoding or decoding failed.
	ErrSerializationFailed = errors.New("cartflow: serialization failed")

	// ErrEventTypeNotRegistered indicates an unknown event type was read.
	ErrEventTypeNotRegistered = errors.New("cartflow: event type not registered")

	// ErrHandlerNotFound indicates no handler is registered for a command type.
	ErrHandlerNotFound = errors.New("cartflow: handler not found")

	// ErrValidationFailed indicates a command failed input-shape validation.
	ErrValidationFailed = errors.New("cartflow: validation failed")

	// ErrNilCommand indicates a nil command was dispatched.
	ErrNilCommand = errors.New("cartflow: nil command")

	// ErrHandlerPanicked indicates a handler panicked during execution.
	ErrHandlerPanicked = errors.New("cartflow: handler panicked")

	// ErrCommandInProgress indicates a command with the same command ID is
	// still being processed.
	ErrCommandInProgress = errors.New("cartflow: command already in progress")
)

// ConcurrencyError is the adapter-level conflict error; it matches ErrConcurrencyConflict.
type ConcurrencyError = adapters.ConcurrencyError

// NewConcurrencyError creates a new ConcurrencyError.
func NewConcurrencyError(streamID string, expected, actual int64) *ConcurrencyError {
	return adapters.NewConcurrencyError(streamID, expected, actual)
}

// NotFoundError names the stream that was required but absent.
type NotFoundError struct {
	StreamID string
}

// Error returns the error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cartflow: %q not found", e.StreamID)
}

// Is reports whether this error matches the target error.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(streamID string) *NotFoundError {
	return &NotFoundError{StreamID: streamID}
}

// AlreadyExistsError reports a create on an existing stream.
type AlreadyExistsError struct {
	StreamID string
	Cause    error
}

// Error returns the error message.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("cartflow: %q already exists", e.StreamID)
}

// Is reports whether this error matches the target error.
func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// Unwrap returns the conflict that revealed the existing stream.
func (e *AlreadyExistsError) Unwrap() error {
	return e.Cause
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(streamID string, cause error) *AlreadyExistsError {
	return &AlreadyExistsError{StreamID: streamID, Cause: cause}
}

// PreconditionFailedError reports that the revision a caller presented is
// not the stream's current revision.
type PreconditionFailedError struct {
	StreamID         string
	ExpectedRevision int64
	ActualRevision   int64
}

// Error returns the error message.
func (e *PreconditionFailedError) Error() string {
	return fmt.Sprintf("cartflow: precondition failed on %q: caller expected revision %d, current is %d",
		e.StreamID, e.ExpectedRevision, e.ActualRevision)
}

// Is reports whether this error matches the target error.
func (e *PreconditionFailedError) Is(target error) bool {
	return target == ErrPreconditionFailed
}

// NewPreconditionFailedError creates a new PreconditionFailedError.
func NewPreconditionFailedError(streamID string, expected, actual int64) *PreconditionFailedError {
	return &PreconditionFailedError{StreamID: streamID, ExpectedRevision: expected, ActualRevision: actual}
}

// InvalidOperationError reports a business rule violation.
type InvalidOperationError struct {
	Operation string
	Reason    string
}

// Error returns the error message.
func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("cartflow: cannot %s: %s", e.Operation, e.Reason)
}

// Is reports whether this error matches the target error.
func (e *InvalidOperationError) Is(target error) bool {
	return target == ErrInvalidOperation
}

// NewInvalidOperationError creates a new InvalidOperationError.
func NewInvalidOperationError(operation, reason string) *InvalidOperationError {
	return &InvalidOperationError{Operation: operation, Reason: reason}
}

// InsufficientQuantityError reports a removal larger than what is held.
type InsufficientQuantityError struct {
	ProductID string
	Requested int
	Available int
}

// Error returns the error message.
func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("cartflow: insufficient quantity of product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Is reports whether this error matches the target error.
func (e *InsufficientQuantityError) Is(target error) bool {
	return target == ErrInsufficientQuantity
}

// NewInsufficientQuantityError creates a new InsufficientQuantityError.
func NewInsufficientQuantityError(productID string, requested, available int) *InsufficientQuantityError {
	return &InsufficientQuantityError{ProductID: productID, Requested: requested, Available: available}
}

// StoreIOError wraps a backend failure. The operation may be retried by the caller.
type StoreIOError struct {
	Op       string // "read" or "append"
	StreamID string
	Cause    error
}

// Error returns the error message.
func (e *StoreIOError) Error() string {
	return fmt.Sprintf("cartflow: %s %q failed: %v", e.Op, e.StreamID, e.Cause)
}

// Is reports whether this error matches the target error.
func (e *StoreIOError) Is(target error) bool {
	return target == ErrStoreIO
}

// Unwrap returns the underlying cause.
func (e *StoreIOError) Unwrap() error {
	return e.Cause
}

// NewStoreIOError creates a new StoreIOError.
func NewStoreIOError(op, streamID string, cause error) *StoreIOError {
	return &StoreIOError{Op: op, StreamID: streamID, Cause: cause}
}

// SerializationError provides details about an encoding failure.
type SerializationError struct {
	EventType string
	Operation string // "serialize" or "deserialize"
	Cause     error
}

// Error returns the error message.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("cartflow: failed to %s event type %q: %v", e.Operation, e.EventType, e.Cause)
}

// Is reports whether this error matches the target error.
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerializationFailed
}

// Unwrap returns the underlying cause.
func (e *SerializationError) Unwrap() error {
	return e.Cause
}

// NewSerializationError creates a new SerializationError.
func NewSerializationError(eventType, operation string, cause error) *SerializationError {
	return &SerializationError{EventType: eventType, Operation: operation, Cause: cause}
}

// EventTypeNotRegisteredError names the unknown event type.
type EventTypeNotRegisteredError struct {
	EventType string
}

// Error returns the error message.
func (e *EventTypeNotRegisteredError) Error() string {
	return fmt.Sprintf("cartflow: event type %q not registered", e.EventType)
}

// Is reports whether this error matches the target error.
func (e *EventTypeNotRegisteredError) Is(target error) bool {
	return target == ErrEventTypeNotRegistered
}

// NewEventTypeNotRegisteredError creates a new EventTypeNotRegisteredError.
func NewEventTypeNotRegisteredError(eventType string) *EventTypeNotRegisteredError {
	return &EventTypeNotRegisteredError{EventType: eventType}
}

// UnknownEventError is the panic value raised by an evolve function handed
// an event it does not know. Reaching it is a programming error.
type UnknownEventError struct {
	Aggregate string
	Event     interface{}
}

// Error returns the error message.
func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("cartflow: %s cannot evolve on unknown event %T", e.Aggregate, e.Event)
}

// HandlerNotFoundError names the command type without a handler.
type HandlerNotFoundError struct {
	CommandType string
}

// Error returns the error message.
func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("cartflow: no handler registered for command type %q", e.CommandType)
}

// Is reports whether this error matches the target error.
func (e *HandlerNotFoundError) Is(target error) bool {
	return target == ErrHandlerNotFound
}

// NewHandlerNotFoundError creates a new HandlerNotFoundError.
func NewHandlerNotFoundError(cmdType string) *HandlerNotFoundError {
	return &HandlerNotFoundError{CommandType: cmdType}
}

// PanicError carries a recovered handler panic.
type PanicError struct {
	CommandType string
	Value       interface{}
	Stack       string
}

// Error returns the error message.
func (e *PanicError) Error() string {
	return fmt.Sprintf("cartflow: handler panicked while processing %q: %v", e.CommandType, e.Value)
}

// Is reports whether this error matches the target error.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanicked
}

// NewPanicError creates a new PanicError.
func NewPanicError(cmdType string, value interface{}, stack string) *PanicError {
	return &PanicError{CommandType: cmdType, Value: value, Stack: stack}
}

// StatusCode maps an error returned by cartflow to the response status a
// request/response boundary should emit. A nil error maps to 200.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidationFailed), errors.Is(err, ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrInvalidOperation),
		errors.Is(err, ErrInsufficientQuantity),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrConcurrencyConflict),
		errors.Is(err, ErrCommandInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
