package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.einride.tech/can"

	control "corridor-pilot/closed_loop/corridor_control"
)

func rangeFrame(t *testing.T, a *CANSensorArray, name string, mm, status float64) can.Frame {
	t.Helper()
	f, err := a.cmap.EncodeFrame(name, map[string]float64{"distance_mm": mm, "range_status": status})
	require.NoError(t, err)
	return f
}

func TestCANSensorArrayConsumesFreshSamples(t *testing.T) {
	log, _ := testLogger()
	a, err := NewCANSensorArray(loadMap(t), &sliceReader{}, defaultSensorFrames, log)
	require.NoError(t, err)

	_, ok := a.Read(control.Front)
	assert.False(t, ok, "nothing received yet")

	require.True(t, a.handleFrame(rangeFrame(t, a, "TOF_FRONT", 812, 0), time.Now()))
	require.True(t, a.handleFrame(rangeFrame(t, a, "TOF_BACK_LEFT", 240, 0), time.Now()))

	mm, ok := a.Read(control.Front)
	assert.True(t, ok)
	assert.Equal(t, 812.0, mm)

	_, ok = a.Read(control.Front)
	assert.False(t, ok, "sample is consumed by the first read")

	mm, ok = a.Read(control.BackLeft)
	assert.True(t, ok)
	assert.Equal(t, 240.0, mm)
}

func TestCANSensorArrayDropsBadStatus(t *testing.T) {
	log, _ := testLogger()
	a, err := NewCANSensorArray(loadMap(t), &sliceReader{}, defaultSensorFrames, log)
	require.NoError(t, err)

	assert.False(t, a.handleFrame(rangeFrame(t, a, "TOF_FRONT_RIGHT", 300, 4), time.Now()))
	_, ok := a.Read(control.FrontRight)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), a.Rejected())

	drive, err := a.cmap.EncodeFrame("DRIVE_CMD", nil)
	require.NoError(t, err)
	assert.False(t, a.handleFrame(drive, time.Now()), "non-sensor frames are ignored")
}

func TestCANSensorArrayReceiveLoop(t *testing.T) {
	log, _ := testLogger()
	cmap := loadMap(t)
	reader := &sliceReader{}
	a, err := NewCANSensorArray(cmap, reader, defaultSensorFrames, log)
	require.NoError(t, err)
	reader.frames = []can.Frame{
		rangeFrame(t, a, "TOF_FRONT", 500, 0),
		rangeFrame(t, a, "TOF_FRONT", 450, 0),
	}

	a.receiveLoop()

	mm, ok := a.Read(control.Front)
	assert.True(t, ok)
	assert.Equal(t, 450.0, mm, "latest frame wins")
}

func TestNewCANSensorArrayValidatesBindings(t *testing.T) {
	log, _ := testLogger()
	cmap := loadMap(t)

	_, err := NewCANSensorArray(cmap, &sliceReader{}, map[control.SensorID]string{control.Front: "TOF_FRONT"}, log)
	assert.ErrorContains(t, err, "no frame bound to sensor f_left")

	frames := map[control.SensorID]string{}
	for id, name := range defaultSensorFrames {
		frames[id] = name
	}
	frames[control.BackRight] = "STEER_CMD"
	_, err = NewCANSensorArray(cmap, &sliceReader{}, frames, log)
	assert.ErrorContains(t, err, "no distance_mm signal")
}
