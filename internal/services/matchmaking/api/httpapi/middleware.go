package httpapi

import (
	"context"
	"expvar"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/squadforge/squadforge/internal/platform/requestctx"
)

var (
	requestsTotal  = expvar.NewInt("matchmaking_requests_total")
	requestsErrors = expvar.NewInt("matchmaking_requests_errors_total")
)

type contextKey string

const contextKeyRequestID contextKey = "request_id"

func contextWithUserID(ctx context.Context, userID string) context.Context {
	return requestctx.WithUserID(ctx, userID)
}

// userIDFromContext returns the authenticated user id, if any.
func userIDFromContext(ctx context.Context) string {
	return requestctx.UserIDFromContext(ctx)
}

// requestIDFromContext returns the request correlation id, if any.
func requestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(contextKeyRequestID).(string)
	return requestID
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestIDMiddleware assigns each request a correlation id, honoring a
// client-provided X-Request-ID header.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware records per-request counters and access log lines.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		writer := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(writer, r)
		duration := time.Since(start)
		requestsTotal.Add(1)
		if writer.status >= http.StatusBadRequest {
			requestsErrors.Add(1)
		}
		log.Printf("request method=%s path=%s status=%d duration_ms=%d request_id=%s", r.Method, r.URL.Path, writer.status, duration.Milliseconds(), requestIDFromContext(r.Context()))
	})
}
