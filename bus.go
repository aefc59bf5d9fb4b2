package cartflow

import (
	"context"
	"sync"
)

// MiddlewareFunc is the signature of a step in the dispatch pipeline.
type MiddlewareFunc func(ctx context.Context, cmd Command) (CommandResult, error)

// Middleware wraps the next step of the pipeline.
type Middleware func(next MiddlewareFunc) MiddlewareFunc

// CommandBus routes commands to their handlers through a middleware pipeline.
type CommandBus struct {
	mu         sync.RWMutex
	registry   *HandlerRegistry
	middleware []Middleware
}

// CommandBusOption configures a CommandBus.
type CommandBusOption func(*CommandBus)

// WithMiddleware appends middleware to the pipeline.
func WithMiddleware(middleware ...Middleware) CommandBusOption {
	return func(b *CommandBus) {
		b.middleware = append(b.middleware, middleware...)
	}
}

// NewCommandBus creates a CommandBus.
func NewCommandBus(opts ...CommandBusOption) *CommandBus {
	bus := &CommandBus{registry: NewHandlerRegistry()}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

// Register adds handlers to the bus.
func (b *CommandBus) Register(handlers ...CommandHandler) {
	for _, h := range handlers {
		b.registry.Register(h)
	}
}

// Use appends middleware. Middleware runs in the order it was added.
func (b *CommandBus) Use(middleware ...Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, middleware...)
}

// HasHandler reports whether cmdType has a handler.
func (b *CommandBus) HasHandler(cmdType string) bool {
	return b.registry.Get(cmdType) != nil
}

// CommandTypes returns the routable command types.
func (b *CommandBus) CommandTypes() []string {
	return b.registry.CommandTypes()
}

// Dispatch sends cmd through the middleware pipeline to its handler.
func (b *CommandBus) Dispatch(ctx context.Context, cmd Command) (CommandResult, error) {
	if cmd == nil {
		return CommandResult{}, ErrNilCommand
	}

	handler := b.registry.Get(cmd.CommandType())
	if handler == nil {
		return CommandResult{}, NewHandlerNotFoundError(cmd.CommandType())
	}

	b.mu.RLock()
	middleware := make([]Middleware, len(b.middleware))
	copy(middleware, b.middleware)
	b.mu.RUnlock()

	chain := MiddlewareFunc(handler.Handle)
	for i := len(middleware) - 1; i >= 0; i-- {
		chain = middleware[i](chain)
	}
	return chain(ctx, cmd)
}
