package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.einride.tech/can"

	"corridor-pilot/utils"
)

func loadMap(t *testing.T) *utils.CANMap {
	t.Helper()
	m, err := utils.LoadCANMap(filepath.Join("..", "config", "can", "can_map.csv"))
	require.NoError(t, err)
	return m
}

func testLogger() (*utils.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return utils.NewLogger(&buf, utils.TRACE), &buf
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// sliceReader replays a fixed list of frames.
type sliceReader struct {
	frames []can.Frame
	pos    int
	closed bool
}

func (r *sliceReader) Receive() bool {
	if r.closed || r.pos >= len(r.frames) {
		return false
	}
	r.pos++
	return true
}

func (r *sliceReader) Frame() can.Frame { return r.frames[r.pos-1] }
func (r *sliceReader) Err() error       { return nil }
func (r *sliceReader) Close() error {
	r.closed = true
	return nil
}

// captureWriter records every frame written.
type captureWriter struct {
	mu     sync.Mutex
	frames []can.Frame
	err    error
}

func (w *captureWriter) WriteFrame(ctx context.Context, f can.Frame) error {
	if _, ok := ctx.Deadline(); !ok {
		panic("write without deadline")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.frames = append(w.frames, f)
	return nil
}

func (w *captureWriter) Close() error { return nil }
