package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan(t *testing.T) {
	t.Run("without tracer", func(t *testing.T) {
		SetTracer(nil)
		ctx, span := StartSpan(context.Background(), "noop")
		defer span.End()

		assert.Nil(t, GetActiveSpan(ctx))
		assert.Empty(t, GetTraceID(ctx))
		assert.Empty(t, GetTraceParent(ctx))
	})

	t.Run("with tracer", func(t *testing.T) {
		exporter := tracetest.NewInMemoryExporter()
		provider := Setup("iris-test", exporter)
		defer func() {
			SetTracer(nil)
			require.NoError(t, provider.Shutdown(context.Background()))
		}()

		ctx, span := StartSpan(context.Background(), "decide")
		RecordError(span, errors.New("failed"))
		span.End()

		assert.NotEmpty(t, GetTraceID(ctx))
		assert.Contains(t, GetTraceParent(ctx), GetTraceID(ctx))

		require.NoError(t, provider.ForceFlush(context.Background()))
		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "decide", spans[0].Name)
	})
}
