package otel

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestInitTracer(t *testing.T) {
	var out bytes.Buffer
	shutdown, err := InitTracer("gateway-test", zap.NewNop(), &out)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "POST /v1/messages")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), "POST /v1/messages")
	assert.Contains(t, out.String(), "gateway-test")
}
