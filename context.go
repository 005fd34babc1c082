package goGate

import (
	"context"

	"github.com/MrEthical07/goGate/internal/logctx"
)

// WithTraceID attaches the request trace id to ctx. The Gate forwards it to the
// token endpoint when [Request.TraceID] is empty, and stamps it on log records.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return logctx.WithTraceID(ctx, traceID)
}

// TraceIDFromContext returns the trace id attached by [WithTraceID].
func TraceIDFromContext(ctx context.Context) string {
	return logctx.TraceID(ctx)
}
