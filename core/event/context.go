package event

import "context"

type correlationIDCtx struct{}

// WithCorrelationID attaches a correlation id to the context so that
// effects and downstream machines can thread it through logging and
// re-emitted events.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDCtx{}, id)
}

// CorrelationID extracts the correlation id from the context, or the
// empty string if none was attached.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDCtx{}).(string); ok {
		return id
	}
	return ""
}

type envelopeCtx struct{}

// WithEnvelope attaches the originating envelope to the context.
func WithEnvelope(ctx context.Context, env EventEnvelope) context.Context {
	ctx = WithCorrelationID(ctx, env.CorrelationID.String())
	return context.WithValue(ctx, envelopeCtx{}, env)
}

// EnvelopeFromContext extracts the originating envelope, if present.
func EnvelopeFromContext(ctx context.Context) (EventEnvelope, bool) {
	env, ok := ctx.Value(envelopeCtx{}).(EventEnvelope)
	return env, ok
}
