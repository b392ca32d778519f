package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// recordSpans swaps the package tracer for one backed by an in-memory
// recorder for the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	prev := tracer.Load()
	setTracer(tp.Tracer("test"))
	t.Cleanup(func() {
		tracer.Store(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "thumbgate", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)

	prof := DefaultProfilingConfig()
	assert.False(t, prof.Enabled)
	assert.Contains(t, prof.ProfileTypes, "cpu")
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())

	_, span := Tracer().Start(ctx, "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestInitProfilingDisabled(t *testing.T) {
	stop, err := InitProfiling(DefaultProfilingConfig())
	require.NoError(t, err)
	assert.NoError(t, stop())
	assert.False(t, IsProfilingEnabled())
}

func TestParseProfileType(t *testing.T) {
	_, err := parseProfileType("cpu")
	assert.NoError(t, err)

	_, err = parseProfileType("heapish")
	assert.Error(t, err)
}

func TestSpanHelpersWithoutActiveSpan(t *testing.T) {
	ctx := context.Background()

	require.NotPanics(t, func() {
		RecordError(ctx, nil)
		RecordError(ctx, errors.New("boom"))
		SetAttributes(ctx, ClientIP("10.0.0.1"))
	})
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
}

func TestStartDispatchSpan(t *testing.T) {
	rec := recordSpans(t)

	ctx, send := StartDispatchSpan(context.Background(), SpanDispatch, "omero.render_thumbnail", "m-1")
	_, handle := StartDispatchSpan(ctx, SpanHandle, "omero.render_thumbnail", "m-1", FailureCode(404))
	handle.End()
	send.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)

	h, s := ended[0], ended[1]
	assert.Equal(t, SpanHandle, h.Name())
	assert.Equal(t, trace.SpanKindConsumer, h.SpanKind())
	assert.Equal(t, SpanDispatch, s.Name())
	assert.Equal(t, trace.SpanKindProducer, s.SpanKind())
	assert.Equal(t, s.SpanContext().TraceID(), h.SpanContext().TraceID())

	attrs := attrMap(h.Attributes())
	assert.Equal(t, "omero.render_thumbnail", attrs[AttrEndpoint].AsString())
	assert.Equal(t, "m-1", attrs[AttrMessageID].AsString())
	assert.Equal(t, int64(404), attrs[AttrFailureCode].AsInt64())
}

func TestStartRemoteAndStoreSpans(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartRemoteSpan(context.Background(), SpanJoinSession, RemoteHost("omero"), RemotePort(4064))
	assert.NotEmpty(t, TraceID(ctx))
	assert.NotEmpty(t, SpanID(ctx))
	RecordError(ctx, errors.New("denied"))
	span.End()

	_, store := StartStoreSpan(context.Background(), "redis")
	store.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, trace.SpanKindClient, ended[0].SpanKind())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, int64(4064), attrMap(ended[0].Attributes())[AttrRemotePort].AsInt64())
	assert.Equal(t, SpanSessionResolve, ended[1].Name())
	assert.Equal(t, "redis", attrMap(ended[1].Attributes())[AttrBackend].AsString())
}
