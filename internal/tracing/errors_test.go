package tracing

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
)

func newRecorder() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	recorder := tracetest.NewSpanRecorder()
	return recorder, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
}

func attrValue(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestRecordErrorSetsTypeAndStatus(t *testing.T) {
	recorder, tp := newRecorder()
	_, span := tp.Tracer("test").Start(context.Background(), "analyze")
	RecordError(span, errors.New("no text layer"), ErrorTypeAnalysis)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	v, ok := attrValue(spans[0], "error.type")
	require.True(t, ok)
	assert.Equal(t, "analysis", v.AsString())
}

func TestRecordHTTPErrorCategory(t *testing.T) {
	recorder, tp := newRecorder()
	_, span := tp.Tracer("test").Start(context.Background(), "fetch")
	RecordHTTPError(span, errors.New("bad gateway"), 502)
	span.End()

	v, ok := attrValue(recorder.Ended()[0], "error.category")
	require.True(t, ok)
	assert.Equal(t, "server_error", v.AsString())
}

func TestRecordErrorIgnoresNil(t *testing.T) {
	recorder, tp := newRecorder()
	_, span := tp.Tracer("test").Start(context.Background(), "noop")
	RecordError(span, nil, ErrorTypeDB)
	RecordError(nil, errors.New("x"), ErrorTypeDB)
	span.End()

	assert.Equal(t, codes.Unset, recorder.Ended()[0].Status().Code)
}
