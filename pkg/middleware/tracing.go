package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer     = otel.Tracer("grc-console/middleware")
	propagator = propagation.TraceContext{}
)

// TracedMiddleware opens a child span named after the middleware it wraps.
func TracedMiddleware(name string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), "middleware."+name,
				trace.WithAttributes(attribute.String("middleware.name", name)))
			defer span.End()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// startRequestSpan continues any incoming trace and echoes its ids on w.
func startRequestSpan(r *http.Request, w http.ResponseWriter, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "http.request", trace.WithAttributes(attrs...))
	propagator.Inject(ctx, propagation.HeaderCarrier(w.Header()))
	if sc := span.SpanContext(); sc.HasTraceID() {
		w.Header().Set("X-Trace-Id", sc.TraceID().String())
		w.Header().Set("X-Span-Id", sc.SpanID().String())
	}
	return ctx, span
}
