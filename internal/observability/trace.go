package observability

import (
	"net/http"
)

// Trace is middleware that assigns fresh trace, span, and request IDs to
// every inbound request, echoes the correlatable ones back as response
// headers, and logs the request start line with the identity attached.
func Trace() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			traceID := GenerateTraceID()
			requestID := GenerateRequestID()

			ctx = WithTraceID(ctx, traceID)
			ctx = WithSpanID(ctx, GenerateSpanID())
			ctx = WithRequestID(ctx, requestID)

			w.Header().Set("X-Trace-Id", traceID)
			w.Header().Set("X-Request-Id", requestID)

			FromContext(ctx).Info("request started",
				String("method", r.Method),
				String("path", r.URL.Path),
				String("remote_addr", r.RemoteAddr),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
