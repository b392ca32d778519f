// Package middleware provides the HTTP middleware that binds a request to
// its web session and its log context.
package middleware

import (
	"context"
	"net/http"

	"github.com/marmos91/thumbgate/internal/logger"
)

type contextKey string

const sessionKeyContextKey contextKey = "omero.session_key"

// SessionResolver turns a session cookie into a remote session key. An
// empty key with a nil error means the cookie does not authenticate.
type SessionResolver interface {
	Resolve(ctx context.Context, cookie string) (string, error)
}

// SessionKey returns the remote session key stored by Session, or "".
func SessionKey(ctx context.Context) string {
	key, _ := ctx.Value(sessionKeyContextKey).(string)
	return key
}

// WithSessionKey stores key in ctx.
func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKeyContextKey, key)
}

// Session resolves the session cookie before any work is dispatched.
// A missing cookie or one that resolves to nothing is refused with 403; a
// backend failure is a 500.
func Session(resolver SessionResolver, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				logger.DebugCtx(ctx, "request without session cookie", "cookie", cookieName)
				w.WriteHeader(http.StatusForbidden)
				return
			}

			key, err := resolver.Resolve(ctx, cookie.Value)
			if err != nil {
				logger.ErrorCtx(ctx, "session resolution failed", logger.Err(err))
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			if key == "" {
				logger.DebugCtx(ctx, "session cookie not authenticated")
				w.WriteHeader(http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSessionKey(ctx, key)))
		})
	}
}
