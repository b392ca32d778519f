package middleware

import (
	"net"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/thumbgate/internal/logger"
	"github.com/marmos91/thumbgate/internal/telemetry"
)

// LogContext attaches a logger.LogContext carrying the request ID, client
// address and trace IDs. Must run after chi's RequestID and RealIP.
func LogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := chimw.GetReqID(ctx)
		clientIP := clientAddr(r.RemoteAddr)

		lc := logger.NewLogContext(requestID, clientIP).
			WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
		telemetry.SetAttributes(ctx, telemetry.RequestID(requestID), telemetry.ClientIP(clientIP))

		next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx, lc)))
	})
}

func clientAddr(remote string) string {
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return host
	}
	return remote
}
