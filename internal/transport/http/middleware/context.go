package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/infra/security"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the context key for trace ID
	TraceIDKey = "trace_id"
	// ActorKey is the context key for the verified actor
	ActorKey = "actor"
)

// EnrichContext extracts W3C trace context into the request and assigns a trace ID.
// A valid traceparent wins over X-Trace-ID.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		c.Request = c.Request.WithContext(ctx)

		traceID := c.GetHeader(TraceIDHeader)
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			traceID = sc.TraceID().String()
		} else if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// SetActor stores the verified actor on the request.
func SetActor(c *gin.Context, actor security.Actor) {
	c.Set(ActorKey, actor)
}

// GetActor returns the actor stored by RequireActor.
func GetActor(c *gin.Context) (security.Actor, bool) {
	value, exists := c.Get(ActorKey)
	if !exists {
		return security.Actor{}, false
	}
	actor, ok := value.(security.Actor)
	return actor, ok
}
