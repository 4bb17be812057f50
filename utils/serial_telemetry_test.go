package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferPort struct {
	bytes.Buffer
	closed bool
}

func (b *bufferPort) Close() error {
	b.closed = true
	return nil
}

func TestSerialTelemetrySend(t *testing.T) {
	port := &bufferPort{}
	tel := NewSerialTelemetry(port)

	require.NoError(t, tel.Send(TelemetryLine{Error: -12.5, Proportional: -2.5, Derivative: 0.125, Distance: 240}))
	require.NoError(t, tel.Send(TelemetryLine{}))

	assert.Equal(t, "-12.500 -2.500 0.125 240.000\n0.000 0.000 0.000 0.000\n", port.String())
	assert.Equal(t, uint64(2), tel.Sent())
	require.NoError(t, tel.Close())
	assert.True(t, port.closed)
}

func TestParseNumbers(t *testing.T) {
	assert.Equal(t, []float64{-12.5, -2.5, 0.125, 240}, ParseNumbers("-12.500 -2.500 0.125 240.000", 4))
	assert.Equal(t, []float64{42}, ParseNumbers("dist=42mm extra 7", 1))
	assert.Equal(t, []float64{1e3}, ParseNumbers("1e3", 1))
	assert.Nil(t, ParseNumbers("1 2 3", 4))
	assert.Nil(t, ParseNumbers("booting...", 1))
}
