package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupStdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), ModeStdout, "pdproute-test", &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "pdp.solve")
	span.End()
	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "pdp.solve")
	assert.Contains(t, buf.String(), "pdproute-test")
}

func TestSetupModes(t *testing.T) {
	shutdown, err := Setup(context.Background(), ModeNone, "x", nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = Setup(context.Background(), "otlp", "x", nil)
	assert.Error(t, err)
}
