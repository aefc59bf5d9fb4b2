package cartflow

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// ValidationMiddleware rejects commands whose Validate fails before they
// reach a handler.
func ValidationMiddleware() Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			if err := cmd.Validate(); err != nil {
				return CommandResult{}, err
			}
			return next(ctx, cmd)
		}
	}
}

// RecoveryMiddleware converts handler panics into PanicError values.
// Evolve functions panic on unknown events; those surface here as errors.
func RecoveryMiddleware(logger Logger) Middleware {
	if logger == nil {
		logger = NopLogger()
	}
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (result CommandResult, err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := string(debug.Stack())
					logger.Error("command handler panicked", "type", cmd.CommandType(), "panic", r)
					result = CommandResult{}
					err = NewPanicError(cmd.CommandType(), r, stack)
				}
			}()
			return next(ctx, cmd)
		}
	}
}

// LoggingMiddleware logs every dispatch with its outcome and duration.
func LoggingMiddleware(logger Logger) Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			start := time.Now()
			result, err := next(ctx, cmd)
			duration := time.Since(start)

			args := []interface{}{"type", cmd.CommandType(), "duration", duration}
			if id := CorrelationIDFromContext(ctx); id != "" {
				args = append(args, "correlationId", id)
			}

			switch {
			case err == nil:
				logger.Info("command completed", append(args, "aggregateId", result.AggregateID, "revision", result.Revision)...)
			case StatusCode(err) >= 500:
				logger.Error("command failed", append(args, "error", err)...)
			default:
				logger.Warn("command rejected", append(args, "error", err)...)
			}
			return result, err
		}
	}
}

// TimeoutMiddleware bounds command execution.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, cmd)
		}
	}
}

type correlationIDKey struct{}

// WithCorrelationID returns a context carrying a correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext returns the correlation ID in ctx, if any.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// CorrelationIDMiddleware makes sure a correlation ID is present in the
// context: an existing one wins, then the command's own, then a new UUID.
func CorrelationIDMiddleware() Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			if CorrelationIDFromContext(ctx) != "" {
				return next(ctx, cmd)
			}

			var id string
			if c, ok := cmd.(interface{ GetCorrelationID() string }); ok {
				id = c.GetCorrelationID()
			}
			if id == "" {
				id = uuid.NewString()
			}
			return next(WithCorrelationID(ctx, id), cmd)
		}
	}
}

// MetadataFromContext builds event metadata from the tracing identifiers
// carried by ctx and cmd.
func MetadataFromContext(ctx context.Context, cmd Command) Metadata {
	m := Metadata{CorrelationID: CorrelationIDFromContext(ctx)}
	if c, ok := cmd.(interface{ GetCommandID() string }); ok {
		m.CausationID = c.GetCommandID()
	}
	return m
}
