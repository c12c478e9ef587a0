package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestSetup_DisabledStillPropagates(t *testing.T) {
	// ARRANGE
	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	defer shutdown(context.Background())

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	// ACT
	headers := map[string]string{}
	Inject(ctx, headers)
	back := trace.SpanContextFromContext(Extract(context.Background(), headers))

	// ASSERT
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", headers["traceparent"])
	assert.Equal(t, traceID, back.TraceID())
	assert.Equal(t, spanID, back.SpanID())
	assert.True(t, back.IsRemote())
}

func TestExtract_NoHeadersKeepsContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), struct{}{}, "x")
	assert.Equal(t, ctx, Extract(ctx, nil))
}
