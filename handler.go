package cartflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// CommandHandler executes one command type.
type CommandHandler interface {
	CommandType() string
	Handle(ctx context.Context, cmd Command) (CommandResult, error)
}

// GenericHandler is a type-safe CommandHandler for command type C.
type GenericHandler[C Command] struct {
	cmdType string
	handler func(ctx context.Context, cmd C) (CommandResult, error)
}

// NewGenericHandler creates a handler routed by the zero value's CommandType.
func NewGenericHandler[C Command](handler func(ctx context.Context, cmd C) (CommandResult, error)) *GenericHandler[C] {
	var zero C
	return &GenericHandler[C]{cmdType: zero.CommandType(), handler: handler}
}

// CommandType returns the command type this handler processes.
func (h *GenericHandler[C]) CommandType() string {
	return h.cmdType
}

// Handle type-asserts cmd and runs the handler.
func (h *GenericHandler[C]) Handle(ctx context.Context, cmd Command) (CommandResult, error) {
	typed, ok := cmd.(C)
	if !ok {
		return CommandResult{}, fmt.Errorf("cartflow: expected command type %T, got %T", *new(C), cmd)
	}
	return h.handler(ctx, typed)
}

// HandlerRegistry maps command types to handlers.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]CommandHandler)}
}

// Register adds or replaces the handler for its command type.
func (r *HandlerRegistry) Register(handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handler.CommandType()] = handler
}

// Get returns the handler for cmdType, or nil.
func (r *HandlerRegistry) Get(cmdType string) CommandHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[cmdType]
}

// CommandTypes returns the registered command types, sorted.
func (r *HandlerRegistry) CommandTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
