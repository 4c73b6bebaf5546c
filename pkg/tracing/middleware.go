package tracing

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "stackmotive-http"

// routeParamAttributes maps ring route parameters to span attribute keys.
var routeParamAttributes = map[string]string{
	"id":           "ring.id",
	"assetClassId": "ring.asset_class_id",
	"targetId":     "ring.target_allocation_id",
	"suggestionId": "ring.suggestion_id",
}

// HTTPMiddleware starts a server span per request, continuing any trace the
// caller propagated. Ring identifiers from the route and the authenticated
// user are attached once the handler chain has run.
func HTTPMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)

	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(
			c.Request.Context(),
			propagation.HeaderCarrier(c.Request.Header),
		)

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.target", c.Request.URL.Path),
				attribute.String("http.route", c.FullPath()),
				attribute.String("http.user_agent", c.Request.UserAgent()),
				attribute.String("net.peer.ip", c.ClientIP()),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		if span.SpanContext().HasTraceID() {
			c.Header("X-Trace-ID", span.SpanContext().TraceID().String())
		}
		c.Set("trace_id", span.SpanContext().TraceID().String())
		c.Set("span_id", span.SpanContext().SpanID().String())

		c.Next()

		span.SetAttributes(requestAttributes(c)...)

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.Int("http.response.size", c.Writer.Size()),
		)
		switch {
		case len(c.Errors) > 0:
			span.RecordError(c.Errors.Last())
			span.SetStatus(codes.Error, c.Errors.Last().Error())
		case status >= 500:
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		case status >= 400:
			span.SetStatus(codes.Error, fmt.Sprintf("Client error: HTTP %d", status))
		default:
			span.SetStatus(codes.Ok, "")
		}
	}
}

func requestAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for _, p := range c.Params {
		if key, ok := routeParamAttributes[p.Key]; ok {
			attrs = append(attrs, attribute.String(key, p.Value))
		}
	}
	if userID, ok := c.Get("user_id"); ok {
		attrs = append(attrs, attribute.String("enduser.id", fmt.Sprint(userID)))
	}
	return attrs
}

// AddSpanAttributes adds attributes to the request's span.
func AddSpanAttributes(c *gin.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(c.Request.Context()).SetAttributes(attrs...)
}

// RecordError marks the request's span as failed.
func RecordError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(c.Request.Context())
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
