package observability

import (
	"context"

	"github.com/google/uuid"
)

// Attribute keys shared by logs and metrics.
const (
	CorrelationIDKey = "correlation_id"
	OperationKey     = "operation"
	DurationKey      = "duration_ms"
	ErrorKey         = "error"
)

// scope is the per-operation state carried on a context. Each With call
// copies it, so a derived context never changes its parent.
type scope struct {
	correlationID string
	operation     string
}

type scopeKey struct{}

func scopeOf(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

// WithCorrelationID tags ctx with id, or with a fresh UUID when id is empty.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	s := scopeOf(ctx)
	s.correlationID = id
	return context.WithValue(ctx, scopeKey{}, s)
}

// CorrelationID returns the id set by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	return scopeOf(ctx).correlationID
}

// WithOperation names the operation running on ctx.
func WithOperation(ctx context.Context, operation string) context.Context {
	s := scopeOf(ctx)
	s.operation = operation
	return context.WithValue(ctx, scopeKey{}, s)
}

// Operation returns the name set by WithOperation, or "".
func Operation(ctx context.Context) string {
	return scopeOf(ctx).operation
}
