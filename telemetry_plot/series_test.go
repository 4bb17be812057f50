package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorParsesControlLines(t *testing.T) {
	c := NewCollector(controlSeries)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, c.AddLine(t0, "10.000 2.000 0.500 250.000"))
	assert.False(t, c.AddLine(t0.Add(time.Second), "boot ok"))
	assert.True(t, c.AddLine(t0.Add(2*time.Second), "-10.000 -2.000 -0.500 270.000"))

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, c.Skipped())
	assert.Equal(t, []float64{0, 2}, c.t)

	stats := c.Stats()
	require.Len(t, stats, 4)
	assert.Equal(t, "error", stats[0].Name)
	assert.InDelta(t, 0, stats[0].Mean, 1e-12)
	assert.InDelta(t, 14.142135, stats[0].Std, 1e-5)
	assert.Equal(t, 270.0, stats[3].Last)
}

func TestReadLinesAndSavePNG(t *testing.T) {
	c := NewCollector(singleSeries)
	input := "distance 120\n\nnoise\n118.5 mm\n121\n"
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time {
		clock = clock.Add(100 * time.Millisecond)
		return clock
	}

	require.NoError(t, ReadLines(context.Background(), strings.NewReader(input), c, now))
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 2, c.Skipped())
	assert.Equal(t, []float64{120, 118.5, 121}, c.values[0])

	out := filepath.Join(t.TempDir(), "graph.png")
	require.NoError(t, c.SavePNG(out, "distance"))
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSavePNGWithoutSamples(t *testing.T) {
	out := filepath.Join(t.TempDir(), "graph.png")
	require.NoError(t, NewCollector(singleSeries).SavePNG(out, ""))
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

// chunkReader returns one chunk per Read; empty chunks mimic a serial read
// timeout.
type chunkReader struct {
	chunks []string
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	chunk := r.chunks[0]
	r.chunks = r.chunks[1:]
	return copy(p, chunk), nil
}

func TestReadLinesKeepsLineSplitByTimeouts(t *testing.T) {
	chunks := []string{"10.0 2.0 ", ""}
	for i := 0; i < 150; i++ {
		chunks = append(chunks, "")
	}
	chunks = append(chunks, "0.5 250.0\n-1", "", "0.0 -2.0 -0.5 251.0\n")

	c := NewCollector(controlSeries)
	require.NoError(t, ReadLines(context.Background(), &chunkReader{chunks: chunks}, c, time.Now))

	assert.Equal(t, 2, c.Len())
	assert.Zero(t, c.Skipped())
	assert.Equal(t, []float64{10, -10}, c.values[0])
	assert.Equal(t, []float64{250, 251}, c.values[3])
}

type silentReader struct{}

func (silentReader) Read([]byte) (int, error) { return 0, nil }

func TestReadLinesStopsOnCancelWhileSilent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCollector(singleSeries)
	require.NoError(t, ReadLines(ctx, silentReader{}, c, time.Now))
	assert.Zero(t, c.Len())
}
