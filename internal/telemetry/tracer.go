package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names. Keep these stable: dashboards query them.
const (
	SpanHTTPRequest    = "http.request"
	SpanSessionResolve = "session.resolve"
	SpanDispatch       = "dispatch.send"
	SpanHandle         = "dispatch.handle"
	SpanJoinSession    = "omero.join_session"
	SpanCloseSession   = "omero.close_session"
	SpanFindImages     = "omero.find_images"
	SpanThumbnails     = "omero.get_thumbnail_by_longest_side_set"
)

// Attribute keys
const (
	AttrClientIP    = attribute.Key("client.ip")
	AttrRequestID   = attribute.Key("http.request_id")
	AttrEndpoint    = attribute.Key("dispatch.endpoint")
	AttrMessageID   = attribute.Key("dispatch.message_id")
	AttrFailureCode = attribute.Key("dispatch.failure_code")
	AttrBackend     = attribute.Key("session.backend")
	AttrLookup      = attribute.Key("session.lookup_result")
	AttrRemoteHost  = attribute.Key("omero.host")
	AttrRemotePort  = attribute.Key("omero.port")
	AttrImageCount  = attribute.Key("omero.image_count")
	AttrLongestSide = attribute.Key("omero.longest_side")
	AttrGroupID     = attribute.Key("omero.group_id")
)

func ClientIP(ip string) attribute.KeyValue { return AttrClientIP.String(ip) }
func RequestID(id string) attribute.KeyValue { return AttrRequestID.String(id) }
func Endpoint(name string) attribute.KeyValue { return AttrEndpoint.String(name) }
func MessageID(id string) attribute.KeyValue { return AttrMessageID.String(id) }
func FailureCode(code int) attribute.KeyValue { return AttrFailureCode.Int(code) }
func Backend(name string) attribute.KeyValue { return AttrBackend.String(name) }
func LookupResult(r string) attribute.KeyValue { return AttrLookup.String(r) }
func RemoteHost(host string) attribute.KeyValue { return AttrRemoteHost.String(host) }
func RemotePort(port int) attribute.KeyValue { return AttrRemotePort.Int(port) }
func ImageCount(n int) attribute.KeyValue { return AttrImageCount.Int(n) }
func LongestSide(size int) attribute.KeyValue { return AttrLongestSide.Int(size) }
func GroupID(id int64) attribute.KeyValue { return AttrGroupID.Int64(id) }

// StartDispatchSpan starts a span for one bus message. Handle-side spans are
// server kind, send-side spans are producer kind.
func StartDispatchSpan(ctx context.Context, name, endpoint, messageID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	kind := trace.SpanKindProducer
	if name == SpanHandle {
		kind = trace.SpanKindConsumer
	}
	all := append([]attribute.KeyValue{Endpoint(endpoint), MessageID(messageID)}, attrs...)
	return Tracer().Start(ctx, name, trace.WithSpanKind(kind), trace.WithAttributes(all...))
}

// StartRemoteSpan starts a client span for a call to the OMERO server
func StartRemoteSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

// StartStoreSpan starts a client span for a session store lookup
func StartStoreSpan(ctx context.Context, backend string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, SpanSessionResolve,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(Backend(backend)))
}
