package apiutil

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceHeader carries the request trace id
const TraceHeader = "X-Trace-ID"

const traceKey = "trace_id"

// TraceHeaderPropagator continues the trace named by an incoming X-Trace-ID
// and writes the active trace id back under the same header.
type TraceHeaderPropagator struct{}

var _ propagation.TextMapPropagator = TraceHeaderPropagator{}

// Inject writes the trace id of the span in ctx
func (TraceHeaderPropagator) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		carrier.Set(TraceHeader, sc.TraceID().String())
	}
}

// Extract adopts a 32 hex digit X-Trace-ID as the remote parent; other values are ignored
func (TraceHeaderPropagator) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	traceID, err := trace.TraceIDFromHex(carrier.Get(TraceHeader))
	if err != nil {
		return ctx
	}
	id := uuid.New()
	var spanID trace.SpanID
	copy(spanID[:], id[:8])
	return trace.ContextWithRemoteSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))
}

// Fields lists the header the propagator reads
func (TraceHeaderPropagator) Fields() []string {
	return []string{TraceHeader}
}

// Propagator reads X-Trace-ID, then W3C traceparent (which wins when both are set) and baggage
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		TraceHeaderPropagator{},
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// TraceMiddleware exposes the request trace id in X-Trace-ID and the gin context.
// It runs after the tracing middleware: an incoming header is echoed, otherwise
// the id of the active span is used, and a random id when there is no span.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" || len(traceID) > 128 {
			traceID = spanTraceID(c.Request.Context())
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(traceKey, traceID)
		c.Header(TraceHeader, traceID)
		c.Next()
	}
}

// GetTraceID returns the trace id of the request
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(traceKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	if id := spanTraceID(c.Request.Context()); id != "" {
		return id
	}
	return c.GetHeader(TraceHeader)
}

func spanTraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
