package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.einride.tech/can"

	control "corridor-pilot/closed_loop/corridor_control"
	"corridor-pilot/utils"
)

const (
	distanceSignal = "distance_mm"
	statusSignal   = "range_status"
)

// defaultSensorFrames binds each range sensor to its CAN frame.
var defaultSensorFrames = map[control.SensorID]string{
	control.Front:      "TOF_FRONT",
	control.FrontLeft:  "TOF_FRONT_LEFT",
	control.FrontRight: "TOF_FRONT_RIGHT",
	control.BackLeft:   "TOF_BACK_LEFT",
	control.BackRight:  "TOF_BACK_RIGHT",
}

type sensorSample struct {
	distanceMM float64
	at         time.Time
	fresh      bool
}

// CANSensorArray keeps the latest range frame of every sensor. A sample is
// consumed by the first Read after it arrives, so a sensor that stops
// publishing reads as unavailable instead of repeating its last value.
type CANSensorArray struct {
	cmap   *utils.CANMap
	reader utils.CANReader
	log    *utils.Logger

	byID map[uint32]control.SensorID

	mu       sync.Mutex
	latest   [control.NumSensors]sensorSample
	rejected uint64
}

func NewCANSensorArray(cmap *utils.CANMap, reader utils.CANReader, frames map[control.SensorID]string, log *utils.Logger) (*CANSensorArray, error) {
	a := &CANSensorArray{
		cmap:   cmap,
		reader: reader,
		log:    log,
		byID:   make(map[uint32]control.SensorID, len(frames)),
	}
	for _, id := range control.AllSensors {
		name, ok := frames[id]
		if !ok {
			return nil, fmt.Errorf("no frame bound to sensor %s", id)
		}
		fd, err := cmap.FrameByName(name)
		if err != nil {
			return nil, fmt.Errorf("sensor %s: %w", id, err)
		}
		if _, ok := fd.Signal(distanceSignal); !ok {
			return nil, fmt.Errorf("frame %s has no %s signal", fd.Name, distanceSignal)
		}
		a.byID[fd.ID] = id
	}
	return a, nil
}

// Start receives frames until ctx is canceled or the reader fails.
func (a *CANSensorArray) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = a.reader.Close()
	}()
	go a.receiveLoop()
}

func (a *CANSensorArray) receiveLoop() {
	for a.reader.Receive() {
		a.handleFrame(a.reader.Frame(), time.Now())
	}
	if err := a.reader.Err(); err != nil {
		a.log.Error("CAN receive stopped: %v", err)
		return
	}
	a.log.Debug("CAN receive loop finished")
}

// handleFrame stores a range frame. Frames for other ids are ignored, frames
// with a non-zero range status are counted and dropped.
func (a *CANSensorArray) handleFrame(f can.Frame, at time.Time) bool {
	id, ok := a.byID[f.ID]
	if !ok {
		return false
	}
	_, values, err := a.cmap.DecodeFrame(f)
	if err != nil {
		a.log.Warn("decode 0x%X: %v", f.ID, err)
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if values[statusSignal] != 0 {
		a.rejected++
		a.log.Trace("sensor %s status=%.0f dropped", id, values[statusSignal])
		return false
	}
	a.latest[id] = sensorSample{distanceMM: values[distanceSignal], at: at, fresh: true}
	return true
}

func (a *CANSensorArray) Read(id control.SensorID) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := &a.latest[id]
	if !s.fresh {
		return 0, false
	}
	s.fresh = false
	return s.distanceMM, true
}

// Rejected returns how many frames were dropped for a bad range status.
func (a *CANSensorArray) Rejected() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rejected
}
