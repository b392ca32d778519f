package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging.
// Use these keys consistently so logs from the HTTP layer, the dispatch bus
// and the worker pool can be joined on request_id / message_id.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// HTTP
	KeyRequestID = "request_id"
	KeyMethod    = "method"
	KeyPath      = "path"
	KeyStatus    = "status"
	KeyClientIP  = "client_ip"
	KeyBytes     = "bytes"

	// Dispatch
	KeyEndpoint    = "endpoint"
	KeyMessageID   = "message_id"
	KeyFailureCode = "failure_code"
	KeyWorker      = "worker"

	// Session resolution
	KeyBackend    = "backend"
	KeySessionKey = "session_key"
	KeyCacheKey   = "cache_key"
	KeyResult     = "result"

	// Remote server
	KeyRemoteHost = "remote_host"
	KeyRemotePort = "remote_port"
	KeyImageID    = "image_id"
	KeyImageCount = "image_count"
	KeyLongest    = "longest_side"
	KeyGroupID    = "group_id"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyOperation  = "operation"
)

// Err returns a slog.Attr for an error; nil errors produce an empty attr
// which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Endpoint returns a slog.Attr for a dispatch endpoint name
func Endpoint(name string) slog.Attr {
	return slog.String(KeyEndpoint, name)
}

// MessageID returns a slog.Attr for a dispatch message ID
func MessageID(id string) slog.Attr {
	return slog.String(KeyMessageID, id)
}

// SessionKey returns a slog.Attr for a remote session key. Only DEBUG
// records carry the full key; all others get it masked.
func SessionKey(key string) slog.Attr {
	return slog.Any(KeySessionKey, secret(key))
}

// DurationSince returns a slog.Attr with the elapsed milliseconds since start
func DurationSince(start time.Time) slog.Attr {
	return slog.Float64(KeyDurationMs, Duration(start))
}

// MaskSecret keeps the first four characters of s and elides the rest.
func MaskSecret(s string) string {
	const visible = 4
	if len(s) <= visible {
		return "****"
	}
	return s[:visible] + "…"
}
