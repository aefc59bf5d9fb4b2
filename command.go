package cartflow

import (
	"fmt"
	"strings"
)

// Command is an intent to change one aggregate.
type Command interface {
	// CommandType returns the type name used to route the command.
	CommandType() string

	// Validate checks the shape of the command's input. It does not look at
	// aggregate state; business rules are enforced while deciding.
	Validate() error
}

// AggregateCommand is a command addressed to an existing aggregate.
type AggregateCommand interface {
	Command
	AggregateID() string
}

// CommandBase carries tracing identifiers. Embed it in command types.
type CommandBase struct {
	CommandID     string `json:"commandId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// GetCommandID returns the command ID.
func (c CommandBase) GetCommandID() string {
	return c.CommandID
}

// GetCorrelationID returns the correlation ID.
func (c CommandBase) GetCorrelationID() string {
	return c.CorrelationID
}

// CommandResult is what a successful command reports back.
type CommandResult struct {
	AggregateID string

	// Revision is the stream revision after the command's events were appended.
	Revision int64
}

// NewCommandResult creates a CommandResult.
func NewCommandResult(aggregateID string, revision int64) CommandResult {
	return CommandResult{AggregateID: aggregateID, Revision: revision}
}

// Token returns the revision as an opaque token.
func (r CommandResult) Token() string {
	return ToToken(r.Revision)
}

// ValidationError reports malformed command input.
type ValidationError struct {
	CommandType string
	Field       string
	Message     string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("cartflow: validation failed for command %q field %q: %s", e.CommandType, e.Field, e.Message)
	}
	return fmt.Sprintf("cartflow: validation failed for command %q: %s", e.CommandType, e.Message)
}

// Is reports whether this error matches the target error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// NewValidationError creates a new ValidationError.
func NewValidationError(cmdType, field, message string) *ValidationError {
	return &ValidationError{CommandType: cmdType, Field: field, Message: message}
}

// MultiValidationError collects several field errors for one command.
type MultiValidationError struct {
	CommandType string
	Errors      []*ValidationError
}

// NewMultiValidationError creates an empty MultiValidationError.
func NewMultiValidationError(cmdType string) *MultiValidationError {
	return &MultiValidationError{CommandType: cmdType}
}

// AddField records a field error.
func (e *MultiValidationError) AddField(field, message string) {
	e.Errors = append(e.Errors, NewValidationError(e.CommandType, field, message))
}

// HasErrors reports whether any field error was recorded.
func (e *MultiValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Err returns e if it holds errors and nil otherwise.
func (e *MultiValidationError) Err() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// Error returns the error message.
func (e *MultiValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return fmt.Sprintf("cartflow: validation failed for command %q: %s", e.CommandType, strings.Join(parts, "; "))
}

// Is reports whether this error matches the target error.
func (e *MultiValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
